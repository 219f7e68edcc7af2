package local

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Seed is the initial population written by initLedger.
type Seed struct {
	Candidates    []SeedCandidate `json:"candidates"`
	Voters        []string        `json:"voters"`
	StartElection bool            `json:"start_election"`
}

type SeedCandidate struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Party string `json:"party"`
}

// DefaultSeed mirrors the population the vote chaincode creates in initLedger.
func DefaultSeed() *Seed {
	seed := &Seed{
		Candidates: []SeedCandidate{
			{Name: "Mark Zuckerberg", Party: "Facebook"},
			{Name: "Sundar Pitchai", Party: "Google"},
			{Name: "Satya Nadella", Party: "Microsoft"},
			{Name: "Tim Cook", Party: "Apple"},
			{Name: "Jeff Bezos", Party: "Amazon"},
		},
	}
	for i := range seed.Candidates {
		seed.Candidates[i].ID = candidatePrefix + strconv.Itoa(i)
	}
	for i := 0; i < 10; i++ {
		seed.Voters = append(seed.Voters, "VOTER"+strconv.Itoa(i))
	}
	return seed
}

// LoadSeed reads a seed file, writing DefaultSeed to path first when it does not exist.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return createDefaultSeedFile(path)
		}
		return nil, errors.Wrap(err, "failed to read seed file")
	}

	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal seed file")
	}
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

func createDefaultSeedFile(path string) (*Seed, error) {
	seed := DefaultSeed()
	data, err := json.MarshalIndent(seed, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal default seed")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create seed directory")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, errors.Wrap(err, "failed to save default seed file")
	}
	return seed, nil
}

// Validate rejects seeds whose keys would collide or be invisible to range queries.
func (s *Seed) Validate() error {
	keys := make(map[string]bool)
	for _, c := range s.Candidates {
		if !inCandidateRange(c.ID) {
			return fmt.Errorf("candidate id %q must be between %s and %s", c.ID, candidateRangeStart, candidateRangeEnd)
		}
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("candidate %s has no name", c.ID)
		}
		if keys[c.ID] {
			return fmt.Errorf("duplicate key %s", c.ID)
		}
		keys[c.ID] = true
	}
	for _, id := range s.Voters {
		if id == "" || id != strings.TrimSpace(id) || id == electionKey || strings.HasPrefix(id, candidatePrefix) {
			return fmt.Errorf("invalid voter id %q", id)
		}
		if keys[id] {
			return fmt.Errorf("duplicate key %s", id)
		}
		keys[id] = true
	}
	return nil
}
