package models

// Voter is the coordinator's view of a registered voter.
type Voter struct {
	ID       string `json:"voter_id"`
	HasVoted bool   `json:"has_voted"`
}

// VoterRecord is the ledger encoding returned by queryVoter. Voted is a pointer
// so a payload without the field can be told apart from {"voted":false}.
type VoterRecord struct {
	Voted *bool `json:"voted"`
}
