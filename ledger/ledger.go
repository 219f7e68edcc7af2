// Package ledger defines the boundary between the election coordinator and the
// external ledger that owns all election state.
package ledger

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Transaction names understood by the vote chaincode.
const (
	TxCheckElectionStatus = "checkElectionStatus"
	TxQueryAllCandidates  = "queryAllCandidates"
	TxQueryCandidate      = "queryCandidate"
	TxQueryVoter          = "queryVoter"
	TxCastVote            = "castVote"
	TxCreateCandidate     = "createCandidate"
	TxStartElection       = "startElection"
	TxEndElection         = "endElection"
	TxInitLedger          = "initLedger"
)

// Failure classes a Session reports. Adapters wrap them in *TxError.
var (
	// ErrUnavailable means the ledger could not be reached or the request could
	// not be evaluated. A submit failing with it was never ordered.
	ErrUnavailable = errors.New("ledger unavailable")
	// ErrRejected means the chaincode refused the transaction; nothing was written.
	ErrRejected = errors.New("transaction rejected")
	// ErrConflict means the transaction was invalidated by a concurrent update.
	ErrConflict = errors.New("transaction conflicted with a concurrent update")
	// ErrAmbiguous means the transaction may or may not have been committed.
	ErrAmbiguous = errors.New("transaction outcome unknown")
)

// Commit is the result of a successful submit.
type Commit struct {
	TransactionID string
	Payload       []byte
}

// Session is a scoped, authorised connection to the ledger. Sessions are not
// shared between requests and must be closed on every exit path.
type Session interface {
	// Evaluate runs a read-only transaction.
	Evaluate(ctx context.Context, name string, args ...string) ([]byte, error)
	// Submit runs a state-mutating transaction as one atomic unit.
	Submit(ctx context.Context, name string, args ...string) (*Commit, error)
	Close() error
}

// Connector hands out sessions. Implementations may pool the underlying connection.
type Connector interface {
	Connect(ctx context.Context) (Session, error)
	Close() error
}

// TxError is a classified ledger failure.
type TxError struct {
	Tx            string
	Kind          error
	TransactionID string
	// Message is the chaincode or gateway message, if any.
	Message string
	Err     error
}

func (e *TxError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Tx, e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" (%v)", e.Err)
	}
	return msg
}

func (e *TxError) Is(target error) bool {
	return target == e.Kind
}

func (e *TxError) Unwrap() error {
	return e.Err
}

// Unavailable builds an ErrUnavailable failure for tx.
func Unavailable(tx string, err error) error {
	return &TxError{Tx: tx, Kind: ErrUnavailable, Err: err}
}

// Rejected builds an ErrRejected failure carrying the chaincode message.
func Rejected(tx, message string) error {
	return &TxError{Tx: tx, Kind: ErrRejected, Message: message}
}

// Reason returns the chaincode message carried by err, or "".
func Reason(err error) string {
	var txErr *TxError
	if errors.As(err, &txErr) {
		return txErr.Message
	}
	return ""
}
