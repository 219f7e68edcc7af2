package models

// VoteReceipt describes a vote the ledger accepted.
type VoteReceipt struct {
	RequestID      string `json:"request_id"`
	VoterID        string `json:"voter_id"`
	CandidateID    string `json:"candidate_id"`
	TransactionID  string `json:"transaction_id,omitempty"`
	Acknowledgment string `json:"acknowledgment"`
}
