package local

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"election-coordinator/ledger"
	"election-coordinator/models"
)

const (
	electionKey         = "ELECTION"
	candidatePrefix     = "CANDIDATE"
	candidateRangeStart = "CANDIDATE0"
	candidateRangeEnd   = "CANDIDATE999"
)

// Rejection messages use the vote chaincode's wording so coordinators see the
// same reasons from this ledger as from a Fabric network.
const (
	msgNotStarted         = "Election has not started yet"
	msgEnded              = "Election ended"
	msgAlreadyStarted     = "Election already started"
	msgInvalidVoter       = "Invalid Voter ID"
	msgAlreadyVoted       = "You have already voted"
	msgInvalidCandidate   = "Invalid Candidate ID"
	msgCandidateExists    = "Candidate already exists"
	msgAlreadyInitialised = "Ledger already initialised"
)

// rejection is a deterministic chaincode refusal. It never leaves writes behind.
type rejection string

func (r rejection) Error() string {
	return string(r)
}

// inCandidateRange reports whether queryAllCandidates will see the key.
func inCandidateRange(id string) bool {
	return strings.HasPrefix(id, candidatePrefix) && id >= candidateRangeStart && id < candidateRangeEnd
}

type electionRecord struct {
	Ended bool `json:"ended"`
}

// txContext stages the writes of one transaction over a read-only view of the
// world state, like a chaincode stub does.
type txContext struct {
	state  map[string][]byte
	writes map[string][]byte
	seed   *Seed
}

func newTxContext(state map[string][]byte, seed *Seed) *txContext {
	return &txContext{
		state:  state,
		writes: make(map[string][]byte),
		seed:   seed,
	}
}

func (tx *txContext) get(key string) []byte {
	if value, ok := tx.writes[key]; ok {
		return value
	}
	return tx.state[key]
}

func (tx *txContext) put(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	tx.writes[key] = data
	return nil
}

func (tx *txContext) empty() bool {
	return len(tx.state) == 0 && len(tx.writes) == 0
}

// keysInRange returns the keys in [start, end) in ascending order.
func (tx *txContext) keysInRange(start, end string) []string {
	seen := make(map[string]bool)
	var keys []string
	collect := func(m map[string][]byte) {
		for key := range m {
			if key >= start && key < end && !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	collect(tx.state)
	collect(tx.writes)
	sort.Strings(keys)
	return keys
}

func (tx *txContext) election() (*electionRecord, error) {
	raw := tx.get(electionKey)
	if len(raw) == 0 {
		return nil, nil
	}
	var election electionRecord
	if err := json.Unmarshal(raw, &election); err != nil {
		return nil, fmt.Errorf("corrupt election record: %v", err)
	}
	return &election, nil
}

func (tx *txContext) voter(id string) (*models.VoterRecord, bool) {
	raw := tx.get(id)
	if len(raw) == 0 || id == electionKey || strings.HasPrefix(id, candidatePrefix) {
		return nil, false
	}
	var voter models.VoterRecord
	if err := json.Unmarshal(raw, &voter); err != nil || voter.Voted == nil {
		return nil, false
	}
	return &voter, true
}

func (tx *txContext) candidate(id string) (*models.CandidateRecord, bool) {
	if !strings.HasPrefix(id, candidatePrefix) {
		return nil, false
	}
	raw := tx.get(id)
	if len(raw) == 0 {
		return nil, false
	}
	var candidate models.CandidateRecord
	if err := json.Unmarshal(raw, &candidate); err != nil {
		return nil, false
	}
	return &candidate, true
}

type handler struct {
	run     func(tx *txContext, args []string) ([]byte, error)
	mutates bool
}

var chaincode = map[string]handler{
	ledger.TxInitLedger:          {run: initLedger, mutates: true},
	ledger.TxCheckElectionStatus: {run: checkElectionStatus},
	ledger.TxQueryCandidate:      {run: queryCandidate},
	ledger.TxQueryAllCandidates:  {run: queryAllCandidates},
	ledger.TxQueryVoter:          {run: queryVoter},
	ledger.TxCreateCandidate:     {run: createCandidate, mutates: true},
	ledger.TxStartElection:       {run: startElection, mutates: true},
	ledger.TxEndElection:         {run: endElection, mutates: true},
	ledger.TxCastVote:            {run: castVote, mutates: true},
}

func expectArgs(args []string, n int) error {
	if len(args) != n {
		return rejection(fmt.Sprintf("Incorrect number of arguments. Expecting %d", n))
	}
	return nil
}

func initLedger(tx *txContext, args []string) ([]byte, error) {
	if err := expectArgs(args, 0); err != nil {
		return nil, err
	}
	if !tx.empty() {
		return nil, rejection(msgAlreadyInitialised)
	}

	seed := tx.seed
	if seed == nil {
		seed = DefaultSeed()
	}
	for _, c := range seed.Candidates {
		if err := tx.put(c.ID, models.CandidateRecord{Name: c.Name, Party: c.Party}); err != nil {
			return nil, err
		}
	}
	notVoted := false
	for _, id := range seed.Voters {
		if err := tx.put(id, models.VoterRecord{Voted: &notVoted}); err != nil {
			return nil, err
		}
	}
	if seed.StartElection {
		if err := tx.put(electionKey, electionRecord{}); err != nil {
			return nil, err
		}
	}

	return []byte(fmt.Sprintf("Ledger initiated with %d candidates and %d voters",
		len(seed.Candidates), len(seed.Voters))), nil
}

func checkElectionStatus(tx *txContext, args []string) ([]byte, error) {
	if err := expectArgs(args, 0); err != nil {
		return nil, err
	}
	election, err := tx.election()
	if err != nil {
		return nil, err
	}
	switch {
	case election == nil:
		return []byte(models.PhaseNotStarted), nil
	case election.Ended:
		return []byte(models.PhaseClosed), nil
	default:
		return []byte(models.PhaseOpen), nil
	}
}

func queryCandidate(tx *txContext, args []string) ([]byte, error) {
	if err := expectArgs(args, 1); err != nil {
		return nil, err
	}
	if _, ok := tx.candidate(args[0]); !ok {
		return nil, nil
	}
	return tx.get(args[0]), nil
}

// queryVoter returns an empty payload for ids that are not voters.
func queryVoter(tx *txContext, args []string) ([]byte, error) {
	if err := expectArgs(args, 1); err != nil {
		return nil, err
	}
	if _, ok := tx.voter(args[0]); !ok {
		return nil, nil
	}
	return tx.get(args[0]), nil
}

func queryAllCandidates(tx *txContext, args []string) ([]byte, error) {
	if err := expectArgs(args, 0); err != nil {
		return nil, err
	}

	type entry struct {
		Key    string          `json:"Key"`
		Record json.RawMessage `json:"Record"`
	}
	entries := make([]entry, 0)
	for _, key := range tx.keysInRange(candidateRangeStart, candidateRangeEnd) {
		if _, ok := tx.candidate(key); ok {
			entries = append(entries, entry{Key: key, Record: tx.get(key)})
		}
	}
	return json.Marshal(entries)
}

func createCandidate(tx *txContext, args []string) ([]byte, error) {
	if err := expectArgs(args, 3); err != nil {
		return nil, err
	}
	election, err := tx.election()
	if err != nil {
		return nil, err
	}
	if election != nil && election.Ended {
		return nil, rejection(msgEnded)
	}

	id, name, party := args[0], strings.TrimSpace(args[1]), strings.TrimSpace(args[2])
	if !inCandidateRange(id) {
		return nil, rejection("Candidate ID must be between " + candidateRangeStart + " and " + candidateRangeEnd)
	}
	if name == "" {
		return nil, rejection("Candidate name is required")
	}
	if len(tx.get(id)) != 0 {
		return nil, rejection(msgCandidateExists)
	}

	if err := tx.put(id, models.CandidateRecord{Name: name, Party: party}); err != nil {
		return nil, err
	}
	return []byte("Successfully created candidate"), nil
}

func startElection(tx *txContext, args []string) ([]byte, error) {
	if err := expectArgs(args, 0); err != nil {
		return nil, err
	}
	election, err := tx.election()
	if err != nil {
		return nil, err
	}
	if election != nil {
		if election.Ended {
			return nil, rejection(msgEnded)
		}
		return nil, rejection(msgAlreadyStarted)
	}

	if err := tx.put(electionKey, electionRecord{}); err != nil {
		return nil, err
	}
	return []byte("Election started"), nil
}

func endElection(tx *txContext, args []string) ([]byte, error) {
	if err := expectArgs(args, 0); err != nil {
		return nil, err
	}
	election, err := tx.election()
	if err != nil {
		return nil, err
	}
	if election == nil {
		return nil, rejection(msgNotStarted)
	}
	if election.Ended {
		return nil, rejection(msgEnded)
	}

	if err := tx.put(electionKey, electionRecord{Ended: true}); err != nil {
		return nil, err
	}
	return []byte("Election ended"), nil
}

// castVote marks the voter as voted and counts the vote in one transaction.
// Every check runs against the same view the writes are staged on, so a voter
// can only ever be counted once.
func castVote(tx *txContext, args []string) ([]byte, error) {
	if err := expectArgs(args, 2); err != nil {
		return nil, err
	}
	election, err := tx.election()
	if err != nil {
		return nil, err
	}
	if election == nil {
		return nil, rejection(msgNotStarted)
	}
	if election.Ended {
		return nil, rejection(msgEnded)
	}

	voterID, candidateID := args[0], args[1]
	voter, ok := tx.voter(voterID)
	if !ok {
		return nil, rejection(msgInvalidVoter)
	}
	if *voter.Voted {
		return nil, rejection(msgAlreadyVoted)
	}
	candidate, ok := tx.candidate(candidateID)
	if !ok {
		return nil, rejection(msgInvalidCandidate)
	}

	voted := true
	if err := tx.put(voterID, models.VoterRecord{Voted: &voted}); err != nil {
		return nil, err
	}
	candidate.Votes++
	if err := tx.put(candidateID, candidate); err != nil {
		return nil, err
	}

	return []byte("Successfully voted for " + candidateID), nil
}
