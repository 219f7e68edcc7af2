package service

import (
	"context"
	"strings"
	"time"

	"election-coordinator/ledger"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// AdminResult is the verbatim ledger response to an administrative submit.
type AdminResult struct {
	TransactionID string `json:"transaction_id,omitempty"`
	Message       string `json:"message"`
}

func (vs *VotingService) CreateCandidate(ctx context.Context, candidateID, name, party string) (*AdminResult, error) {
	const op = "create_candidate"
	var err error
	if candidateID, err = requireField(op, "candidate ID", candidateID); err != nil {
		return nil, err
	}
	if name, err = requireField(op, "candidate name", name); err != nil {
		return nil, err
	}
	return vs.submitAdmin(ctx, op, ledger.TxCreateCandidate, candidateID, name, party)
}

func (vs *VotingService) StartElection(ctx context.Context) (*AdminResult, error) {
	return vs.submitAdmin(ctx, "start_election", ledger.TxStartElection)
}

func (vs *VotingService) EndElection(ctx context.Context) (*AdminResult, error) {
	return vs.submitAdmin(ctx, "end_election", ledger.TxEndElection)
}

// InitLedger seeds an empty ledger with its initial candidates and voters.
func (vs *VotingService) InitLedger(ctx context.Context) (*AdminResult, error) {
	return vs.submitAdmin(ctx, "init_ledger", ledger.TxInitLedger)
}

// submitAdmin issues one administrative transaction. A successful payload is
// returned as is, except where adminRefusal recognises it as a refusal.
func (vs *VotingService) submitAdmin(ctx context.Context, op, tx string, args ...string) (result *AdminResult, err error) {
	defer vs.observe(op, time.Now(), &err)

	ctx, _ = ensureRequestID(ctx)
	logger := vs.logger(ctx).WithFields(logrus.Fields{"event": op, "tx": tx})

	err = vs.withSession(ctx, op, func(ctx context.Context, sess ledger.Session) error {
		commit, err := sess.Submit(ctx, tx, args...)
		if err != nil {
			return classifyAdminSubmit(op, err)
		}
		payload := string(commit.Payload)
		if kind := adminRefusal(tx, payload); kind != nil {
			return &OpError{Op: op, Kind: kind, Detail: payload}
		}
		result = &AdminResult{TransactionID: commit.TransactionID, Message: payload}
		return nil
	})
	if err != nil {
		logger.WithField("kind", Kind(err)).WithError(err).Warn("administrative transaction failed")
		return nil, err
	}

	logger.WithField("tx_id", result.TransactionID).Info(result.Message)
	return result, nil
}

func classifyAdminSubmit(op string, err error) error {
	if errors.Is(err, ledger.ErrRejected) && rejectionKind(ledger.Reason(err)) == nil {
		return &OpError{Op: op, Kind: ErrRejected, Detail: ledger.Reason(err), Err: err}
	}
	return classifySubmit(op, err)
}

// adminRefusal detects chaincode that answers a refused administrative
// transaction with a successful payload. "Election ended" is the expected
// answer to endElection and a refusal everywhere else.
func adminRefusal(tx, payload string) error {
	text := strings.ToLower(strings.TrimSpace(payload))
	switch tx {
	case ledger.TxCreateCandidate:
		if strings.HasPrefix(text, "successfully") {
			return nil
		}
		if kind := rejectionKind(text); kind != nil {
			return kind
		}
		return ErrRejected
	case ledger.TxStartElection:
		if strings.Contains(text, "already started") {
			return ErrRejected
		}
		if strings.Contains(text, "election ended") {
			return ErrElectionNotOpen
		}
	case ledger.TxEndElection:
		if strings.Contains(text, "not started") {
			return ErrElectionNotOpen
		}
	}
	return nil
}
