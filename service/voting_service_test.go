package service

import (
	"context"
	"testing"
	"time"

	"election-coordinator/ledger"
	"election-coordinator/models"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, connector ledger.Connector) (*VotingService, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	return NewVotingService(connector, logger), hook
}

func assertSessionsReleased(t *testing.T, f *fakeLedger) {
	t.Helper()
	opened, closed := f.sessions()
	assert.Equal(t, opened, closed, "every session must be closed")
}

func TestCastVoteSuccess(t *testing.T) {
	f := newFakeLedger()
	vs, _ := newTestService(t, f)

	ctx := WithRequestID(context.Background(), "req-42")
	receipt, err := vs.CastVote(ctx, " VOTER1 ", "CANDIDATE1")
	require.NoError(t, err)

	assert.Equal(t, &models.VoteReceipt{
		RequestID:      "req-42",
		VoterID:        "VOTER1",
		CandidateID:    "CANDIDATE1",
		TransactionID:  "tx-1",
		Acknowledgment: "Successfully voted for CANDIDATE1",
	}, receipt)
	assert.Equal(t, []string{ledger.TxCastVote}, f.submits)
	opened, _ := f.sessions()
	assert.Equal(t, 1, opened, "all steps share one session")
	assertSessionsReleased(t, f)
}

func TestCastVoteGeneratesRequestID(t *testing.T) {
	vs, _ := newTestService(t, newFakeLedger())

	receipt, err := vs.CastVote(context.Background(), "VOTER1", "CANDIDATE1")
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.RequestID)
}

func TestCastVoteInvalidInputMakesNoLedgerCalls(t *testing.T) {
	cases := []struct{ voter, candidate string }{
		{"", "CANDIDATE1"},
		{"VOTER1", ""},
		{"   ", "CANDIDATE1"},
		{"VOTER1", "\t"},
	}
	for _, tc := range cases {
		f := newFakeLedger()
		vs, _ := newTestService(t, f)

		_, err := vs.CastVote(context.Background(), tc.voter, tc.candidate)
		assert.True(t, errors.Is(err, ErrInvalidInput), "%q/%q: %v", tc.voter, tc.candidate, err)
		opened, _ := f.sessions()
		assert.Zero(t, opened)
	}
}

func TestCastVotePreconditionFailuresNeverSubmit(t *testing.T) {
	cases := []struct {
		name    string
		setup   func(f *fakeLedger)
		voter   string
		want    error
		noEvals []string
	}{
		{
			name:    "election not started",
			setup:   func(f *fakeLedger) { f.phase = "Election has not started yet" },
			voter:   "VOTER1",
			want:    ErrElectionNotOpen,
			noEvals: []string{ledger.TxQueryVoter, ledger.TxQueryAllCandidates},
		},
		{
			name:  "election closed",
			setup: func(f *fakeLedger) { f.phase = "CLOSED" },
			voter: "VOTER1",
			want:  ErrElectionNotOpen,
		},
		{
			name:    "unknown voter",
			setup:   func(f *fakeLedger) {},
			voter:   "VOTER9",
			want:    ErrUnknownVoter,
			noEvals: []string{ledger.TxQueryAllCandidates},
		},
		{
			name:    "already voted",
			setup:   func(f *fakeLedger) {},
			voter:   "VOTER2",
			want:    ErrAlreadyVoted,
			noEvals: []string{ledger.TxQueryAllCandidates},
		},
		{
			name:  "malformed voter payload",
			setup: func(f *fakeLedger) { f.voters["VOTER1"] = `{"registered":true}` },
			voter: "VOTER1",
			want:  ErrMalformedPayload,
		},
		{
			name:  "phase unavailable",
			setup: func(f *fakeLedger) { f.evalErr[ledger.TxCheckElectionStatus] = ledger.Unavailable("x", context.DeadlineExceeded) },
			voter: "VOTER1",
			want:  ErrLedgerUnavailable,
		},
		{
			name:  "candidates unavailable",
			setup: func(f *fakeLedger) { f.evalErr[ledger.TxQueryAllCandidates] = errors.New("boom") },
			voter: "VOTER1",
			want:  ErrLedgerUnavailable,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeLedger()
			tc.setup(f)
			vs, _ := newTestService(t, f)

			receipt, err := vs.CastVote(context.Background(), tc.voter, "CANDIDATE1")
			assert.Nil(t, receipt)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
			assert.Zero(t, f.submitCount())
			for _, name := range tc.noEvals {
				assert.Zero(t, f.evaluates[name], name)
			}
			assertSessionsReleased(t, f)
		})
	}
}

func TestCastVoteUnknownCandidateNeverSubmits(t *testing.T) {
	f := newFakeLedger()
	vs, _ := newTestService(t, f)

	_, err := vs.CastVote(context.Background(), "VOTER1", "CANDIDATE7")
	assert.True(t, errors.Is(err, ErrUnknownCandidate))
	assert.Zero(t, f.submitCount())
	assertSessionsReleased(t, f)
}

func TestCastVoteConnectFailure(t *testing.T) {
	f := newFakeLedger()
	f.connectErr = ledger.Unavailable("connect", errors.New("connection refused"))
	vs, _ := newTestService(t, f)

	_, err := vs.CastVote(context.Background(), "VOTER1", "CANDIDATE1")
	assert.True(t, errors.Is(err, ErrLedgerUnavailable))
}

func TestCastVoteSubmitClassification(t *testing.T) {
	cases := []struct {
		name      string
		submitErr error
		want      error
	}{
		{"already voted", ledger.Rejected(ledger.TxCastVote, "You have already voted"), ErrAlreadyVoted},
		{"invalid voter", ledger.Rejected(ledger.TxCastVote, "Invalid Voter ID"), ErrUnknownVoter},
		{"invalid candidate", ledger.Rejected(ledger.TxCastVote, "Invalid Candidate ID"), ErrUnknownCandidate},
		{"ended", ledger.Rejected(ledger.TxCastVote, "Election ended"), ErrElectionNotOpen},
		{"unrecognised rejection", ledger.Rejected(ledger.TxCastVote, "chaincode panic"), ErrLedgerUnavailable},
		{"conflict", &ledger.TxError{Tx: ledger.TxCastVote, Kind: ledger.ErrConflict}, ErrLedgerConflict},
		{"ambiguous", &ledger.TxError{Tx: ledger.TxCastVote, Kind: ledger.ErrAmbiguous}, ErrAmbiguousOutcome},
		{"not ordered", ledger.Unavailable(ledger.TxCastVote, errors.New("endorse timeout")), ErrLedgerUnavailable},
		{"deadline", context.DeadlineExceeded, ErrAmbiguousOutcome},
		{"unclassified", errors.New("stream reset"), ErrAmbiguousOutcome},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeLedger()
			f.submitErr = tc.submitErr
			vs, _ := newTestService(t, f)

			receipt, err := vs.CastVote(context.Background(), "VOTER1", "CANDIDATE1")
			assert.Nil(t, receipt)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
			assert.Equal(t, 1, f.submitCount(), "submit is never retried")
			assertSessionsReleased(t, f)
		})
	}
}

func TestCastVoteLegacyRejectionPayloads(t *testing.T) {
	cases := map[string]error{
		"You have already voted":       ErrAlreadyVoted,
		"Invalid Voter ID":             ErrUnknownVoter,
		"Invalid Candidate ID":         ErrUnknownCandidate,
		"Election has not started yet": ErrElectionNotOpen,
		"Election ended":               ErrElectionNotOpen,
	}
	for payload, want := range cases {
		f := newFakeLedger()
		f.submitPayload = payload
		vs, _ := newTestService(t, f)

		receipt, err := vs.CastVote(context.Background(), "VOTER1", "CANDIDATE1")
		assert.Nil(t, receipt, payload)
		assert.True(t, errors.Is(err, want), "%s: got %v", payload, err)
	}
}

func TestCastVoteAmbiguousOutcomeIsLogged(t *testing.T) {
	f := newFakeLedger()
	f.submitErr = &ledger.TxError{Tx: ledger.TxCastVote, Kind: ledger.ErrAmbiguous}
	vs, hook := newTestService(t, f)

	_, err := vs.CastVote(context.Background(), "VOTER1", "CANDIDATE1")
	require.Error(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "VOTER1", entry.Data["voter_id"])
	assert.NotEmpty(t, entry.Data["request_id"])
}

func TestMalformedPayloadLoggedAtErrorLevel(t *testing.T) {
	f := newFakeLedger()
	f.phase = "Paused"
	vs, hook := newTestService(t, f)

	_, err := vs.Phase(context.Background())
	assert.True(t, errors.Is(err, ErrMalformedPayload))

	var found bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel {
			found = true
			assert.Equal(t, ledger.TxCheckElectionStatus, entry.Data["tx"])
		}
	}
	assert.True(t, found)
}

func TestLookupVoter(t *testing.T) {
	f := newFakeLedger()
	vs, _ := newTestService(t, f)
	ctx := context.Background()

	voter, err := vs.LookupVoter(ctx, "VOTER2")
	require.NoError(t, err)
	assert.Equal(t, models.Voter{ID: "VOTER2", HasVoted: true}, voter)

	_, err = vs.LookupVoter(ctx, "NOBODY")
	assert.True(t, errors.Is(err, ErrUnknownVoter))

	f.voters["BROKEN"] = "{"
	_, err = vs.LookupVoter(ctx, "BROKEN")
	assert.True(t, errors.Is(err, ErrMalformedPayload))

	_, err = vs.LookupVoter(ctx, " ")
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assertSessionsReleased(t, f)
}

func TestListCandidatesMalformed(t *testing.T) {
	payloads := []string{
		`not json`,
		`[{"Key":"","Record":{"name":"Ada","party":"X","votes":1}}]`,
		`[{"Key":"CANDIDATE1","Record":{"name":"Ada","party":"X","votes":-1}}]`,
	}
	for _, payload := range payloads {
		f := newFakeLedger()
		f.candidates = payload
		vs, _ := newTestService(t, f)

		_, err := vs.ListCandidates(context.Background())
		assert.True(t, errors.Is(err, ErrMalformedPayload), payload)
	}
}

func TestListCandidatesKeepsLedgerOrder(t *testing.T) {
	vs, _ := newTestService(t, newFakeLedger())

	candidates, err := vs.ListCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "CANDIDATE1", candidates[0].ID)
	assert.Equal(t, "CANDIDATE2", candidates[1].ID)

	exists, err := vs.CandidateExists(context.Background(), "CANDIDATE2")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestResultsAndStatus(t *testing.T) {
	logger, _ := test.NewNullLogger()
	countedAt := time.Date(2024, 11, 5, 20, 0, 0, 0, time.UTC)
	vs := NewVotingService(newFakeLedger(), logger, WithClock(func() time.Time { return countedAt }))
	ctx := context.Background()

	results, err := vs.Results(ctx)
	require.NoError(t, err)
	assert.Equal(t, countedAt, results.CountedAt)
	assert.Equal(t, models.PhaseOpen, results.Phase)
	assert.Equal(t, 8, results.TotalVotes)
	assert.Equal(t, "CANDIDATE2", results.Candidates[0].ID)

	status, err := vs.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, &ElectionStatus{Phase: models.PhaseOpen, CandidateCount: 2, TotalVotes: 8}, status)
}

func TestAdminSubmitReturnsPayloadVerbatim(t *testing.T) {
	f := newFakeLedger()
	f.submitPayload = "Election ended"
	vs, _ := newTestService(t, f)

	result, err := vs.EndElection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Election ended", result.Message)
	assert.Equal(t, []string{ledger.TxEndElection}, f.submits)
}

func TestAdminRefusalPayloads(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		call    func(*VotingService) (*AdminResult, error)
		kind    error
	}{
		{
			name:    "candidate after election ended",
			payload: "Election ended",
			call: func(vs *VotingService) (*AdminResult, error) {
				return vs.CreateCandidate(context.Background(), "CANDIDATE9", "Linus", "Kernel")
			},
			kind: ErrElectionNotOpen,
		},
		{
			name:    "candidate before election started",
			payload: "Election has not started yet",
			call: func(vs *VotingService) (*AdminResult, error) {
				return vs.CreateCandidate(context.Background(), "CANDIDATE9", "Linus", "Kernel")
			},
			kind: ErrElectionNotOpen,
		},
		{
			name:    "candidate with unknown answer",
			payload: "Candidate already exists",
			call: func(vs *VotingService) (*AdminResult, error) {
				return vs.CreateCandidate(context.Background(), "CANDIDATE9", "Linus", "Kernel")
			},
			kind: ErrRejected,
		},
		{
			name:    "end before start",
			payload: "Election has not started yet",
			call:    func(vs *VotingService) (*AdminResult, error) { return vs.EndElection(context.Background()) },
			kind:    ErrElectionNotOpen,
		},
		{
			name:    "start after end",
			payload: "Election ended",
			call:    func(vs *VotingService) (*AdminResult, error) { return vs.StartElection(context.Background()) },
			kind:    ErrElectionNotOpen,
		},
		{
			name:    "start twice",
			payload: "Election already started",
			call:    func(vs *VotingService) (*AdminResult, error) { return vs.StartElection(context.Background()) },
			kind:    ErrRejected,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeLedger()
			f.submitPayload = tc.payload
			vs, _ := newTestService(t, f)

			result, err := tc.call(vs)
			assert.Nil(t, result)
			assert.True(t, errors.Is(err, tc.kind), "got %v", err)
			assert.Contains(t, err.Error(), tc.payload)
			assert.Equal(t, 1, f.submitCount())
		})
	}
}

func TestAdminSuccessPayloads(t *testing.T) {
	f := newFakeLedger()
	f.submitPayload = "Successfully created candidate"
	vs, _ := newTestService(t, f)

	result, err := vs.CreateCandidate(context.Background(), "CANDIDATE9", "Linus", "Kernel")
	require.NoError(t, err)
	assert.Equal(t, "Successfully created candidate", result.Message)

	f.submitPayload = "Election started"
	result, err = vs.StartElection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Election started", result.Message)
}

func TestAdminUnrecognisedRejection(t *testing.T) {
	f := newFakeLedger()
	f.submitErr = ledger.Rejected(ledger.TxCreateCandidate, "Candidate already exists")
	vs, _ := newTestService(t, f)

	_, err := vs.CreateCandidate(context.Background(), "CANDIDATE1", "Ada", "Engines")
	assert.True(t, errors.Is(err, ErrRejected))
	assert.Contains(t, err.Error(), "Candidate already exists")

	_, err = vs.CreateCandidate(context.Background(), "CANDIDATE3", "", "Engines")
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Equal(t, 1, f.submitCount())
}

func TestMetricsRecordOutcomes(t *testing.T) {
	f := newFakeLedger()
	vs, _ := newTestService(t, f)
	ctx := context.Background()

	_, err := vs.CastVote(ctx, "VOTER1", "CANDIDATE1")
	require.NoError(t, err)
	_, err = vs.CastVote(ctx, "VOTER2", "CANDIDATE1")
	require.Error(t, err)
	_, err = vs.CastVote(ctx, "", "CANDIDATE1")
	require.Error(t, err)

	m := vs.Metrics().GetOperationMetrics("cast_vote")
	assert.Equal(t, 3, m.Count)
	assert.Equal(t, 2, m.Failures)
	assert.Equal(t, map[string]int{"already_voted": 1, "invalid_input": 1}, m.Outcomes)

	vs.Metrics().Reset()
	assert.Empty(t, vs.Metrics().GetMetrics().Operations)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "", Kind(nil))
	assert.Equal(t, "internal", Kind(errors.New("boom")))
	assert.Equal(t, "already_voted", Kind(&OpError{Op: "x", Kind: ErrAlreadyVoted}))
	assert.Equal(t, "ledger_unavailable", Kind(errors.Wrap(ErrLedgerUnavailable, "context")))
}
