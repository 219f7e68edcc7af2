package service

import (
	"context"

	"election-coordinator/ledger"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type requestIDKey struct{}

// WithRequestID attaches a correlation ID to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the correlation ID carried by ctx, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func ensureRequestID(ctx context.Context) (context.Context, string) {
	if id := RequestIDFrom(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return WithRequestID(ctx, id), id
}

// withSession runs fn on a ledger session scoped to one request. The session
// is closed on every exit path, including panics in fn.
func (vs *VotingService) withSession(ctx context.Context, op string, fn func(context.Context, ledger.Session) error) error {
	if vs.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, vs.requestTimeout)
		defer cancel()
	}

	sess, err := vs.connector.Connect(ctx)
	if err != nil {
		return opError(op, ErrLedgerUnavailable, err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			vs.logger(ctx).WithFields(logrus.Fields{"op": op}).WithError(cerr).Warn("failed to close ledger session")
		}
	}()

	return fn(ctx, sess)
}

func (vs *VotingService) logger(ctx context.Context) logrus.FieldLogger {
	if id := RequestIDFrom(ctx); id != "" {
		return vs.log.WithField("request_id", id)
	}
	return vs.log
}
