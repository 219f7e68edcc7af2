package service

import (
	"context"
	"sync"

	"election-coordinator/ledger"
)

// fakeLedger answers evaluates from canned payloads and counts every call.
type fakeLedger struct {
	mu sync.Mutex

	phase      string
	voters     map[string]string
	candidates string
	evalErr    map[string]error
	connectErr error

	submitPayload string
	submitTxID    string
	submitErr     error

	opened    int
	closed    int
	evaluates map[string]int
	submits   []string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		phase: "Open",
		voters: map[string]string{
			"VOTER1": `{"voted":false}`,
			"VOTER2": `{"voted":true}`,
		},
		candidates: `[{"Key":"CANDIDATE1","Record":{"name":"Ada","party":"Engines","votes":3}},` +
			`{"Key":"CANDIDATE2","Record":{"name":"Grace","party":"Compilers","votes":5}}]`,
		evalErr:       make(map[string]error),
		evaluates:     make(map[string]int),
		submitPayload: "Successfully voted for CANDIDATE1",
		submitTxID:    "tx-1",
	}
}

func (f *fakeLedger) Connect(ctx context.Context) (ledger.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	f.opened++
	return &fakeSession{ledger: f}, nil
}

func (f *fakeLedger) Close() error { return nil }

func (f *fakeLedger) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submits)
}

func (f *fakeLedger) sessions() (opened, closed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened, f.closed
}

type fakeSession struct {
	ledger *fakeLedger
}

func (s *fakeSession) Evaluate(ctx context.Context, name string, args ...string) ([]byte, error) {
	f := s.ledger
	f.mu.Lock()
	defer f.mu.Unlock()

	f.evaluates[name]++
	if err := f.evalErr[name]; err != nil {
		return nil, err
	}
	switch name {
	case ledger.TxCheckElectionStatus:
		return []byte(f.phase), nil
	case ledger.TxQueryAllCandidates:
		return []byte(f.candidates), nil
	case ledger.TxQueryVoter:
		return []byte(f.voters[args[0]]), nil
	}
	return nil, ledger.Rejected(name, "unknown function")
}

func (s *fakeSession) Submit(ctx context.Context, name string, args ...string) (*ledger.Commit, error) {
	f := s.ledger
	f.mu.Lock()
	defer f.mu.Unlock()

	f.submits = append(f.submits, name)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &ledger.Commit{TransactionID: f.submitTxID, Payload: []byte(f.submitPayload)}, nil
}

func (s *fakeSession) Close() error {
	s.ledger.mu.Lock()
	defer s.ledger.mu.Unlock()
	s.ledger.closed++
	return nil
}
