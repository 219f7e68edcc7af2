package service

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Failure taxonomy. Every error returned by VotingService matches exactly one
// of these with errors.Is.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrLedgerUnavailable = errors.New("ledger unavailable")
	ErrUnknownVoter      = errors.New("unknown voter")
	ErrUnknownCandidate  = errors.New("unknown candidate")
	ErrAlreadyVoted      = errors.New("voter has already voted")
	ErrElectionNotOpen   = errors.New("election is not open")
	ErrMalformedPayload  = errors.New("malformed ledger payload")
	// ErrAmbiguousOutcome means the vote may or may not have been recorded.
	// Callers should look the voter up again before retrying.
	ErrAmbiguousOutcome = errors.New("ledger outcome unknown")
	ErrLedgerConflict   = errors.New("ledger conflict")
	// ErrRejected is returned by administrative operations the chaincode
	// refused for a reason outside the taxonomy above.
	ErrRejected = errors.New("rejected by ledger")
)

var kindNames = map[error]string{
	ErrInvalidInput:      "invalid_input",
	ErrLedgerUnavailable: "ledger_unavailable",
	ErrUnknownVoter:      "unknown_voter",
	ErrUnknownCandidate:  "unknown_candidate",
	ErrAlreadyVoted:      "already_voted",
	ErrElectionNotOpen:   "election_not_open",
	ErrMalformedPayload:  "malformed_payload",
	ErrAmbiguousOutcome:  "ambiguous_outcome",
	ErrLedgerConflict:    "ledger_conflict",
	ErrRejected:          "rejected",
}

// OpError records which operation failed and how.
type OpError struct {
	Op   string
	Kind error
	// Detail is the chaincode message or other context, if any.
	Detail string
	Err    error
}

func (e *OpError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" (%v)", e.Err)
	}
	return msg
}

func (e *OpError) Is(target error) bool {
	return target == e.Kind
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func opError(op string, kind, err error) error {
	return &OpError{Op: op, Kind: kind, Err: err}
}

// Kind returns a stable name for the taxonomy class of err, "" for nil and
// "internal" for errors outside the taxonomy.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		if name, ok := kindNames[opErr.Kind]; ok {
			return name
		}
	}
	for kind, name := range kindNames {
		if errors.Is(err, kind) {
			return name
		}
	}
	return "internal"
}

// rejectionKind maps a chaincode rejection message onto the taxonomy. It
// returns nil when the message is not recognised.
func rejectionKind(msg string) error {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "already voted"):
		return ErrAlreadyVoted
	case strings.Contains(msg, "invalid voter"):
		return ErrUnknownVoter
	case strings.Contains(msg, "invalid candidate"):
		return ErrUnknownCandidate
	case strings.Contains(msg, "not started"), strings.Contains(msg, "election ended"):
		return ErrElectionNotOpen
	}
	return nil
}
