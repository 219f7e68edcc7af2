package service

import (
	"context"
	"strings"
	"time"

	"election-coordinator/ledger"
	"election-coordinator/models"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// VotingService coordinates the election workflows. It keeps no election
// state of its own: every call reads from and writes to the ledger through a
// session opened for that call.
type VotingService struct {
	connector      ledger.Connector
	log            logrus.FieldLogger
	metrics        *MetricsCollector
	requestTimeout time.Duration
	now            func() time.Time
}

type Option func(*VotingService)

// WithRequestTimeout bounds every operation, including its ledger calls.
func WithRequestTimeout(d time.Duration) Option {
	return func(vs *VotingService) { vs.requestTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(vs *VotingService) { vs.now = now }
}

func NewVotingService(connector ledger.Connector, logger logrus.FieldLogger, opts ...Option) *VotingService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	vs := &VotingService{
		connector: connector,
		log:       logger.WithField("component", "voting-service"),
		metrics:   NewMetricsCollector(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(vs)
	}
	return vs
}

func (vs *VotingService) Metrics() *MetricsCollector {
	return vs.metrics
}

// CastVote records one vote. Pre-checks run against the same session as the
// submit, which is issued exactly once and never retried. The ledger decides
// any race between concurrent votes for the same voter.
func (vs *VotingService) CastVote(ctx context.Context, voterID, candidateID string) (receipt *models.VoteReceipt, err error) {
	const op = "cast_vote"
	defer vs.observe(op, time.Now(), &err)

	if voterID, err = requireField(op, "voter ID", voterID); err != nil {
		return nil, err
	}
	if candidateID, err = requireField(op, "candidate ID", candidateID); err != nil {
		return nil, err
	}

	ctx, requestID := ensureRequestID(ctx)
	logger := vs.logger(ctx).WithFields(logrus.Fields{
		"event":        "cast_vote",
		"voter_id":     voterID,
		"candidate_id": candidateID,
	})

	err = vs.withSession(ctx, op, func(ctx context.Context, sess ledger.Session) error {
		if _, err := vs.requireOpen(ctx, sess, op); err != nil {
			return err
		}

		voter, err := vs.lookupVoter(ctx, sess, op, voterID)
		if err != nil {
			return err
		}
		if voter.HasVoted {
			return &OpError{Op: op, Kind: ErrAlreadyVoted, Detail: voterID}
		}

		exists, err := vs.candidateExists(ctx, sess, op, candidateID)
		if err != nil {
			return err
		}
		if !exists {
			return &OpError{Op: op, Kind: ErrUnknownCandidate, Detail: candidateID}
		}

		commit, err := sess.Submit(ctx, ledger.TxCastVote, voterID, candidateID)
		if err != nil {
			return classifySubmit(op, err)
		}

		ack := string(commit.Payload)
		if kind := legacyRejection(ack); kind != nil {
			return &OpError{Op: op, Kind: kind, Detail: ack}
		}

		receipt = &models.VoteReceipt{
			RequestID:      requestID,
			VoterID:        voterID,
			CandidateID:    candidateID,
			TransactionID:  commit.TransactionID,
			Acknowledgment: ack,
		}
		return nil
	})

	switch {
	case err == nil:
		logger.WithField("tx_id", receipt.TransactionID).Info("vote recorded")
	case errors.Is(err, ErrAmbiguousOutcome):
		logger.WithError(err).Warn("vote outcome unknown, voter must be re-queried before retrying")
	default:
		logger.WithField("kind", Kind(err)).WithError(err).Info("vote refused")
	}
	return receipt, err
}

// classifySubmit maps a failed submit onto the taxonomy. Failures the adapter
// could not attribute to a stage are treated as ambiguous, since the
// transaction may already have been ordered.
func classifySubmit(op string, err error) error {
	reason := ledger.Reason(err)
	switch {
	case errors.Is(err, ledger.ErrRejected):
		if kind := rejectionKind(reason); kind != nil {
			return &OpError{Op: op, Kind: kind, Detail: reason, Err: err}
		}
		return &OpError{Op: op, Kind: ErrLedgerUnavailable, Detail: reason, Err: err}
	case errors.Is(err, ledger.ErrConflict):
		return &OpError{Op: op, Kind: ErrLedgerConflict, Detail: reason, Err: err}
	case errors.Is(err, ledger.ErrUnavailable):
		return opError(op, ErrLedgerUnavailable, err)
	default:
		return opError(op, ErrAmbiguousOutcome, err)
	}
}

// legacyRejection detects chaincode that reports a refused vote as a
// successful transaction carrying the refusal text.
func legacyRejection(ack string) error {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(ack)), "successfully") {
		return nil
	}
	return rejectionKind(ack)
}

func (vs *VotingService) malformed(ctx context.Context, op, tx string, payload []byte, cause error) error {
	vs.logger(ctx).WithFields(logrus.Fields{
		"op":      op,
		"tx":      tx,
		"payload": truncate(string(payload), 256),
	}).WithError(cause).Error("malformed ledger payload")
	return opError(op, ErrMalformedPayload, errors.Wrapf(cause, "decode %s", tx))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func (vs *VotingService) observe(op string, start time.Time, errp *error) {
	if vs.metrics == nil {
		return
	}
	vs.metrics.Record(op, time.Since(start), *errp)
}
