package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"election-coordinator/models"
	"election-coordinator/service"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCode(t *testing.T) {
	ambiguous := &service.OpError{Op: "cast_vote", Kind: service.ErrAmbiguousOutcome}
	assert.Equal(t, 3, exitCode(ambiguous))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
}

func TestLoadConfigAppliesFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().AddFlagSet(rootCmd.PersistentFlags())
	require.NoError(t, cmd.Flags().Parse([]string{"--driver", "fabric", "--storage", "/tmp/ledger", "--listen", ":9000"}))
	defer func() { opts = rootOptions{} }()

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "fabric", cfg.Ledger.Driver)
	assert.Equal(t, "/tmp/ledger", cfg.Ledger.Local.DataDir)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "info", cfg.Log.Level, "unset flags keep the configured value")
}

func TestLedgerInitOnFreshStorage(t *testing.T) {
	color.NoColor = true
	tmp := t.TempDir()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	defer func() {
		opts = rootOptions{}
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		for _, name := range []string{"driver", "storage", "seed", "log-level"} {
			rootCmd.PersistentFlags().Lookup(name).Changed = false
		}
	}()

	args := []string{"ledger", "init",
		"--driver", "local",
		"--storage", tmp,
		"--seed", filepath.Join(tmp, "seed.json"),
		"--log-level", "error",
	}
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Ledger initiated with 5 candidates and 10 voters")

	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	assert.True(t, errors.Is(err, service.ErrRejected), "got %v", err)
	assert.Contains(t, err.Error(), "Ledger already initialised")
}

func TestPrintResults(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer

	err := printResults(&buf, &service.VotingResults{
		Phase: models.PhaseClosed,
		Candidates: []models.Candidate{
			{ID: "CANDIDATE2", Name: "Grace", Party: "Compilers", VoteCount: 4},
			{ID: "CANDIDATE1", Name: "Ada", Party: "Engines", VoteCount: 1},
		},
		TotalVotes: 5,
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Election Closed, 5 votes counted")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("CANDIDATE2")), bytes.Index(buf.Bytes(), []byte("CANDIDATE1")))
}
