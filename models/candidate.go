package models

// Candidate is a candidate together with the votes the ledger has counted for it.
type Candidate struct {
	ID        string `json:"candidate_id"`
	Name      string `json:"name"`
	Party     string `json:"party"`
	VoteCount int    `json:"vote_count"`
}

// CandidateRecord is the value stored under a candidate key on the ledger.
type CandidateRecord struct {
	Name  string `json:"name"`
	Party string `json:"party"`
	Votes int    `json:"votes"`
}

// CandidateEntry is one element of the queryAllCandidates payload.
type CandidateEntry struct {
	Key    string          `json:"Key"`
	Record CandidateRecord `json:"Record"`
}
