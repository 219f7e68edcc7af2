package service

import (
	"testing"

	"election-coordinator/models"

	"github.com/stretchr/testify/assert"
)

func TestProjectRanksByVotesThenID(t *testing.T) {
	input := []models.Candidate{
		{ID: "CANDIDATE3", VoteCount: 2},
		{ID: "CANDIDATE1", VoteCount: 5},
		{ID: "CANDIDATE2", VoteCount: 2},
		{ID: "CANDIDATE0", VoteCount: 0},
	}
	original := append([]models.Candidate(nil), input...)

	ranked := Project(input)

	ids := make([]string, len(ranked))
	for i, c := range ranked {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"CANDIDATE1", "CANDIDATE2", "CANDIDATE3", "CANDIDATE0"}, ids)
	assert.Equal(t, original, input, "input must not be modified")

	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].VoteCount, ranked[i].VoteCount)
	}
}

func TestProjectIsIdempotent(t *testing.T) {
	input := []models.Candidate{
		{ID: "B", VoteCount: 1},
		{ID: "A", VoteCount: 1},
		{ID: "C", VoteCount: 4},
	}
	once := Project(input)
	assert.Equal(t, once, Project(once))
}

func TestProjectTieOrderDoesNotDependOnInputOrder(t *testing.T) {
	a := []models.Candidate{{ID: "X", VoteCount: 3}, {ID: "Y", VoteCount: 3}}
	b := []models.Candidate{{ID: "Y", VoteCount: 3}, {ID: "X", VoteCount: 3}}
	assert.Equal(t, Project(a), Project(b))
}

func TestProjectEmpty(t *testing.T) {
	assert.Empty(t, Project(nil))
}
