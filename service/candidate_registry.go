package service

import (
	"context"
	"encoding/json"
	"time"

	"election-coordinator/ledger"
	"election-coordinator/models"

	"github.com/pkg/errors"
)

func (vs *VotingService) listCandidates(ctx context.Context, sess ledger.Session, op string) ([]models.Candidate, error) {
	payload, err := sess.Evaluate(ctx, ledger.TxQueryAllCandidates)
	if err != nil {
		return nil, opError(op, ErrLedgerUnavailable, err)
	}

	var entries []models.CandidateEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, vs.malformed(ctx, op, ledger.TxQueryAllCandidates, payload, err)
	}

	candidates := make([]models.Candidate, 0, len(entries))
	for i, entry := range entries {
		if entry.Key == "" {
			return nil, vs.malformed(ctx, op, ledger.TxQueryAllCandidates, payload, errors.Errorf("entry %d has no key", i))
		}
		if entry.Record.Votes < 0 {
			return nil, vs.malformed(ctx, op, ledger.TxQueryAllCandidates, payload, errors.Errorf("candidate %s has negative vote count", entry.Key))
		}
		candidates = append(candidates, models.Candidate{
			ID:        entry.Key,
			Name:      entry.Record.Name,
			Party:     entry.Record.Party,
			VoteCount: entry.Record.Votes,
		})
	}
	return candidates, nil
}

func (vs *VotingService) candidateExists(ctx context.Context, sess ledger.Session, op, candidateID string) (bool, error) {
	candidates, err := vs.listCandidates(ctx, sess, op)
	if err != nil {
		return false, err
	}
	for _, c := range candidates {
		if c.ID == candidateID {
			return true, nil
		}
	}
	return false, nil
}

// ListCandidates returns all candidates in ledger order.
func (vs *VotingService) ListCandidates(ctx context.Context) (candidates []models.Candidate, err error) {
	defer vs.observe("list_candidates", time.Now(), &err)

	err = vs.withSession(ctx, "list_candidates", func(ctx context.Context, sess ledger.Session) error {
		candidates, err = vs.listCandidates(ctx, sess, "list_candidates")
		return err
	})
	return candidates, err
}

func (vs *VotingService) CandidateExists(ctx context.Context, candidateID string) (exists bool, err error) {
	defer vs.observe("candidate_exists", time.Now(), &err)

	candidateID, err = requireField("candidate_exists", "candidate ID", candidateID)
	if err != nil {
		return false, err
	}

	err = vs.withSession(ctx, "candidate_exists", func(ctx context.Context, sess ledger.Session) error {
		exists, err = vs.candidateExists(ctx, sess, "candidate_exists", candidateID)
		return err
	})
	return exists, err
}
