package fabric

import (
	"context"

	"election-coordinator/ledger"

	"github.com/hyperledger/fabric-protos-go-apiv2/gateway"
	"github.com/hyperledger/fabric-protos-go-apiv2/peer"
	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// classifyBeforeOrdering handles evaluate and endorse failures. Nothing has
// been sent to the orderer at this point, so the transaction was not committed.
func classifyBeforeOrdering(tx, txID string, err error) error {
	st := status.Convert(err)
	kind := ledger.ErrRejected
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = ledger.ErrUnavailable
	case st.Code() == codes.Unavailable, st.Code() == codes.DeadlineExceeded,
		st.Code() == codes.Canceled, st.Code() == codes.PermissionDenied,
		st.Code() == codes.Unauthenticated, st.Code() == codes.NotFound:
		kind = ledger.ErrUnavailable
	}

	return &ledger.TxError{
		Tx:            tx,
		Kind:          kind,
		TransactionID: txID,
		Message:       chaincodeMessage(st),
		Err:           err,
	}
}

func ambiguous(tx, txID string, err error) error {
	return &ledger.TxError{
		Tx:            tx,
		Kind:          ledger.ErrAmbiguous,
		TransactionID: txID,
		Message:       status.Convert(err).Message(),
		Err:           err,
	}
}

// invalidated reports a transaction the committing peers marked invalid.
func invalidated(tx, txID string, code peer.TxValidationCode) error {
	kind := ledger.ErrRejected
	if code == peer.TxValidationCode_MVCC_READ_CONFLICT || code == peer.TxValidationCode_PHANTOM_READ_CONFLICT {
		kind = ledger.ErrConflict
	}
	return &ledger.TxError{
		Tx:            tx,
		Kind:          kind,
		TransactionID: txID,
		Message:       code.String(),
	}
}

// chaincodeMessage prefers the message the chaincode returned, which the
// gateway forwards in the error details of each endorsing peer.
func chaincodeMessage(st *status.Status) string {
	for _, detail := range st.Details() {
		if d, ok := detail.(*gateway.ErrorDetail); ok && d.GetMessage() != "" {
			return d.GetMessage()
		}
	}
	return st.Message()
}
