// Package local is an in-process stand-in for the election ledger. It runs the
// vote chaincode's transactions atomically, keeps a signed, hash-linked block
// log of every committed submit and optionally persists both to disk. It is
// meant for development and tests, not as a replacement for a Fabric network.
package local

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"election-coordinator/ledger"
	"election-coordinator/models"
	"election-coordinator/signing"
	"election-coordinator/storage"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const defaultSnapshotName = "vote"

type Config struct {
	// DataDir enables persistence when set.
	DataDir    string
	Name       string
	Difficulty uint8
	// Seed is what initLedger writes. Nil means DefaultSeed.
	Seed   *Seed
	Signer *signing.Signer
	Clock  func() time.Time
}

type snapshotStore interface {
	Load(name string) (*storage.Snapshot, error)
	Save(name string, snapshot *storage.Snapshot) error
}

type Ledger struct {
	mu         sync.RWMutex
	state      map[string][]byte
	blocks     []*models.Block
	store      snapshotStore
	name       string
	signer     *signing.Signer
	difficulty uint8
	seed       *Seed
	now        func() time.Time
	log        logrus.FieldLogger
	closed     atomic.Bool
}

func New(cfg Config, logger logrus.FieldLogger) (*Ledger, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	l := &Ledger{
		state:      make(map[string][]byte),
		blocks:     make([]*models.Block, 0),
		name:       cfg.Name,
		signer:     cfg.Signer,
		difficulty: cfg.Difficulty,
		seed:       cfg.Seed,
		now:        cfg.Clock,
		log:        logger.WithField("component", "local-ledger"),
	}
	if l.name == "" {
		l.name = defaultSnapshotName
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.signer == nil {
		signer, err := signing.GenerateSigner()
		if err != nil {
			return nil, err
		}
		l.signer = signer
	}

	if cfg.DataDir != "" {
		store, err := storage.NewJSONStore(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		snapshot, err := store.Load(l.name)
		if err != nil {
			return nil, err
		}
		replayed, err := verifyBlocks(snapshot.Blocks)
		if err != nil {
			return nil, errors.Wrap(err, "stored block log failed verification")
		}
		for key, value := range snapshot.State {
			compacted, err := compactJSON(value)
			if err != nil {
				return nil, errors.Wrapf(err, "stored state for %s is not valid JSON", key)
			}
			l.state[key] = compacted
		}
		if !sameState(replayed, l.state) {
			return nil, errors.New("stored world state does not match its block log")
		}
		l.store = store
		l.blocks = snapshot.Blocks
	}

	l.log.WithFields(logrus.Fields{
		"height":  len(l.blocks),
		"keys":    len(l.state),
		"creator": l.signer.Address(),
	}).Info("local ledger ready")
	return l, nil
}

// Connect returns a session bound to this ledger.
func (l *Ledger) Connect(ctx context.Context) (ledger.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, ledger.Unavailable("connect", err)
	}
	if l.closed.Load() {
		return nil, ledger.Unavailable("connect", errors.New("ledger is closed"))
	}
	return &session{ledger: l}, nil
}

func (l *Ledger) Close() error {
	l.closed.Store(true)
	return nil
}

// Height is the number of committed transactions.
func (l *Ledger) Height() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.blocks)
}

// Blocks returns a copy of the block log.
func (l *Ledger) Blocks() []*models.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()

	blocks := make([]*models.Block, len(l.blocks))
	copy(blocks, l.blocks)
	return blocks
}

// VerifyChain validates every block and signature and checks that replaying
// the log reproduces the current world state.
func (l *Ledger) VerifyChain() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	replayed, err := verifyBlocks(l.blocks)
	if err != nil {
		return err
	}
	if !sameState(replayed, l.state) {
		return errors.New("world state does not match the block log")
	}
	return nil
}

func (l *Ledger) evaluate(ctx context.Context, name string, args []string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, ledger.Unavailable(name, err)
	}
	h, ok := chaincode[name]
	if !ok {
		return nil, ledger.Rejected(name, "Invalid Smart Contract function name.")
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	payload, err := h.run(newTxContext(l.state, l.seed), args)
	if err != nil {
		return nil, classify(name, err)
	}
	return payload, nil
}

func (l *Ledger) submit(ctx context.Context, name string, args []string) (*ledger.Commit, error) {
	if err := ctx.Err(); err != nil {
		return nil, ledger.Unavailable(name, err)
	}
	h, ok := chaincode[name]
	if !ok {
		return nil, ledger.Rejected(name, "Invalid Smart Contract function name.")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, ledger.Unavailable(name, err)
	}

	tx := newTxContext(l.state, l.seed)
	payload, err := h.run(tx, args)
	if err != nil {
		return nil, classify(name, err)
	}
	if !h.mutates || len(tx.writes) == 0 {
		return &ledger.Commit{Payload: payload}, nil
	}

	nonce, err := signing.NewNonce()
	if err != nil {
		return nil, ledger.Unavailable(name, err)
	}
	record := &models.Transaction{
		ID:        signing.TransactionID(nonce, l.signer.Creator()),
		Name:      name,
		Args:      append([]string(nil), args...),
		Creator:   l.signer.Creator(),
		Nonce:     nonce,
		Timestamp: l.nextTimestamp(),
		Writes:    make(map[string]json.RawMessage, len(tx.writes)),
		Result:    string(payload),
	}
	for key, value := range tx.writes {
		record.Writes[key] = value
	}

	block, err := l.sealTransaction(record)
	if err != nil {
		return nil, ledger.Unavailable(name, err)
	}

	if l.store != nil {
		if err := l.persist(tx.writes, block); err != nil {
			if !errors.Is(err, storage.ErrNotDurable) {
				return nil, ledger.Unavailable(name, err)
			}
			// The snapshot on disk already holds the block, so memory follows
			// it and the caller is told the outcome is unknown.
			l.apply(tx.writes, block)
			l.log.WithError(err).WithField("tx_id", record.ID).Warn("transaction written but not synced")
			return nil, &ledger.TxError{Tx: name, Kind: ledger.ErrAmbiguous, TransactionID: record.ID, Err: err}
		}
	}

	l.apply(tx.writes, block)

	l.log.WithFields(logrus.Fields{
		"tx":    name,
		"tx_id": record.ID,
		"block": block.Index,
	}).Debug("transaction committed")

	return &ledger.Commit{TransactionID: record.ID, Payload: payload}, nil
}

func (l *Ledger) apply(writes map[string][]byte, block *models.Block) {
	for key, value := range writes {
		l.state[key] = value
	}
	l.blocks = append(l.blocks, block)
}

// persist writes the state that results from applying writes and block. The
// in-memory ledger is only updated after this succeeds.
func (l *Ledger) persist(writes map[string][]byte, block *models.Block) error {
	snapshot := &storage.Snapshot{
		State:  make(map[string]json.RawMessage, len(l.state)+len(writes)),
		Blocks: append(append(make([]*models.Block, 0, len(l.blocks)+1), l.blocks...), block),
	}
	for key, value := range l.state {
		snapshot.State[key] = value
	}
	for key, value := range writes {
		snapshot.State[key] = value
	}
	return l.store.Save(l.name, snapshot)
}

func classify(name string, err error) error {
	var rej rejection
	if errors.As(err, &rej) {
		return ledger.Rejected(name, string(rej))
	}
	return &ledger.TxError{Tx: name, Kind: ledger.ErrRejected, Message: err.Error()}
}

type session struct {
	ledger *Ledger
	closed atomic.Bool
}

func (s *session) Evaluate(ctx context.Context, name string, args ...string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ledger.Unavailable(name, errors.New("session is closed"))
	}
	return s.ledger.evaluate(ctx, name, args)
}

func (s *session) Submit(ctx context.Context, name string, args ...string) (*ledger.Commit, error) {
	if s.closed.Load() {
		return nil, ledger.Unavailable(name, errors.New("session is closed"))
	}
	return s.ledger.submit(ctx, name, args)
}

func (s *session) Close() error {
	s.closed.Store(true)
	return nil
}
