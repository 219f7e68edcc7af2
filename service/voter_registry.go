package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"election-coordinator/ledger"
	"election-coordinator/models"

	"github.com/pkg/errors"
)

func (vs *VotingService) lookupVoter(ctx context.Context, sess ledger.Session, op, voterID string) (models.Voter, error) {
	payload, err := sess.Evaluate(ctx, ledger.TxQueryVoter, voterID)
	if err != nil {
		return models.Voter{}, opError(op, ErrLedgerUnavailable, err)
	}
	if len(strings.TrimSpace(string(payload))) == 0 {
		return models.Voter{}, &OpError{Op: op, Kind: ErrUnknownVoter, Detail: voterID}
	}

	var record models.VoterRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return models.Voter{}, vs.malformed(ctx, op, ledger.TxQueryVoter, payload, err)
	}
	if record.Voted == nil {
		return models.Voter{}, vs.malformed(ctx, op, ledger.TxQueryVoter, payload, errors.New("missing voted field"))
	}

	return models.Voter{ID: voterID, HasVoted: *record.Voted}, nil
}

// LookupVoter resolves a voter ID against the ledger. Unregistered voters
// yield ErrUnknownVoter.
func (vs *VotingService) LookupVoter(ctx context.Context, voterID string) (voter models.Voter, err error) {
	defer vs.observe("lookup_voter", time.Now(), &err)

	voterID, err = requireField("lookup_voter", "voter ID", voterID)
	if err != nil {
		return models.Voter{}, err
	}

	err = vs.withSession(ctx, "lookup_voter", func(ctx context.Context, sess ledger.Session) error {
		voter, err = vs.lookupVoter(ctx, sess, "lookup_voter", voterID)
		return err
	})
	return voter, err
}

func requireField(op, name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", &OpError{Op: op, Kind: ErrInvalidInput, Detail: name + " is required"}
	}
	return value, nil
}
