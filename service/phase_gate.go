package service

import (
	"context"
	"time"

	"election-coordinator/ledger"
	"election-coordinator/models"

	"github.com/pkg/errors"
)

func (vs *VotingService) readPhase(ctx context.Context, sess ledger.Session, op string) (models.Phase, error) {
	payload, err := sess.Evaluate(ctx, ledger.TxCheckElectionStatus)
	if err != nil {
		return "", opError(op, ErrLedgerUnavailable, err)
	}
	phase, ok := models.ParsePhase(string(payload))
	if !ok {
		return "", vs.malformed(ctx, op, ledger.TxCheckElectionStatus, payload, errors.Errorf("unrecognised election status %q", payload))
	}
	return phase, nil
}

func (vs *VotingService) requireOpen(ctx context.Context, sess ledger.Session, op string) (models.Phase, error) {
	phase, err := vs.readPhase(ctx, sess, op)
	if err != nil {
		return phase, err
	}
	if !phase.AcceptsVotes() {
		return phase, &OpError{Op: op, Kind: ErrElectionNotOpen, Detail: "phase is " + phase.String()}
	}
	return phase, nil
}

// Phase reports the current election phase.
func (vs *VotingService) Phase(ctx context.Context) (phase models.Phase, err error) {
	defer vs.observe("phase", time.Now(), &err)

	err = vs.withSession(ctx, "phase", func(ctx context.Context, sess ledger.Session) error {
		phase, err = vs.readPhase(ctx, sess, "phase")
		return err
	})
	return phase, err
}

// RequireOpen fails with ErrElectionNotOpen unless votes are being accepted.
func (vs *VotingService) RequireOpen(ctx context.Context) (err error) {
	defer vs.observe("require_open", time.Now(), &err)

	return vs.withSession(ctx, "require_open", func(ctx context.Context, sess ledger.Session) error {
		_, err := vs.requireOpen(ctx, sess, "require_open")
		return err
	})
}
