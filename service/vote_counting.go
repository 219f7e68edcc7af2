package service

import (
	"context"
	"sort"
	"time"

	"election-coordinator/ledger"
	"election-coordinator/models"
)

// VotingResults is a ranked tally computed fresh from the ledger.
type VotingResults struct {
	Phase      models.Phase       `json:"phase"`
	Candidates []models.Candidate `json:"candidates"`
	TotalVotes int                `json:"total_votes"`
	CountedAt  time.Time          `json:"counted_at"`
}

// ElectionStatus summarises the election for a landing page.
type ElectionStatus struct {
	Phase          models.Phase `json:"phase"`
	CandidateCount int          `json:"candidate_count"`
	TotalVotes     int          `json:"total_votes"`
}

// Project ranks candidates by vote count, highest first, breaking ties by
// candidate ID. The input slice is not modified.
func Project(candidates []models.Candidate) []models.Candidate {
	ranked := make([]models.Candidate, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].VoteCount != ranked[j].VoteCount {
			return ranked[i].VoteCount > ranked[j].VoteCount
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked
}

func totalVotes(candidates []models.Candidate) int {
	total := 0
	for _, c := range candidates {
		total += c.VoteCount
	}
	return total
}

// Results reads the phase and candidate list on one session and ranks them.
func (vs *VotingService) Results(ctx context.Context) (results *VotingResults, err error) {
	defer vs.observe("results", time.Now(), &err)

	err = vs.withSession(ctx, "results", func(ctx context.Context, sess ledger.Session) error {
		phase, err := vs.readPhase(ctx, sess, "results")
		if err != nil {
			return err
		}
		candidates, err := vs.listCandidates(ctx, sess, "results")
		if err != nil {
			return err
		}

		results = &VotingResults{
			Phase:      phase,
			Candidates: Project(candidates),
			TotalVotes: totalVotes(candidates),
			CountedAt:  vs.now(),
		}
		return nil
	})
	return results, err
}

func (vs *VotingService) Status(ctx context.Context) (status *ElectionStatus, err error) {
	defer vs.observe("status", time.Now(), &err)

	err = vs.withSession(ctx, "status", func(ctx context.Context, sess ledger.Session) error {
		phase, err := vs.readPhase(ctx, sess, "status")
		if err != nil {
			return err
		}
		candidates, err := vs.listCandidates(ctx, sess, "status")
		if err != nil {
			return err
		}

		status = &ElectionStatus{
			Phase:          phase,
			CandidateCount: len(candidates),
			TotalVotes:     totalVotes(candidates),
		}
		return nil
	})
	return status, err
}
