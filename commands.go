package main

import (
	"election-coordinator/app"
	"election-coordinator/service"

	"github.com/spf13/cobra"
)

var errAmbiguous = service.ErrAmbiguousOutcome

func init() {
	candidateCmd.AddCommand(candidateCreateCmd)
	electionCmd.AddCommand(electionStartCmd, electionEndCmd)
	ledgerCmd.AddCommand(ledgerInitCmd, ledgerVerifyCmd)

	rootCmd.AddCommand(
		voteCmd,
		voterCmd,
		candidatesCmd,
		resultsCmd,
		statusCmd,
		candidateCmd,
		electionCmd,
		ledgerCmd,
	)
}

var voteCmd = &cobra.Command{
	Use:   "vote VOTER_ID CANDIDATE_ID",
	Short: "Cast a vote",
	Args:  cobra.ExactArgs(2),
	RunE: withService(func(cmd *cobra.Command, svc *service.VotingService, args []string) error {
		receipt, err := svc.CastVote(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return printReceipt(cmd.OutOrStdout(), receipt)
	}),
}

var voterCmd = &cobra.Command{
	Use:   "voter VOTER_ID",
	Short: "Show whether a voter has voted",
	Args:  cobra.ExactArgs(1),
	RunE: withService(func(cmd *cobra.Command, svc *service.VotingService, args []string) error {
		voter, err := svc.LookupVoter(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printVoter(cmd.OutOrStdout(), voter)
	}),
}

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "List candidates in ledger order",
	Args:  cobra.NoArgs,
	RunE: withService(func(cmd *cobra.Command, svc *service.VotingService, args []string) error {
		candidates, err := svc.ListCandidates(cmd.Context())
		if err != nil {
			return err
		}
		return printCandidates(cmd.OutOrStdout(), candidates)
	}),
}

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Show ranked election results",
	Args:  cobra.NoArgs,
	RunE: withService(func(cmd *cobra.Command, svc *service.VotingService, args []string) error {
		results, err := svc.Results(cmd.Context())
		if err != nil {
			return err
		}
		return printResults(cmd.OutOrStdout(), results)
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the election phase and vote totals",
	Args:  cobra.NoArgs,
	RunE: withService(func(cmd *cobra.Command, svc *service.VotingService, args []string) error {
		status, err := svc.Status(cmd.Context())
		if err != nil {
			return err
		}
		return printStatus(cmd.OutOrStdout(), status)
	}),
}

var candidateCmd = &cobra.Command{
	Use:   "candidate",
	Short: "Manage candidates",
}

var candidateCreateCmd = &cobra.Command{
	Use:   "create CANDIDATE_ID NAME [PARTY]",
	Short: "Register a candidate",
	Args:  cobra.RangeArgs(2, 3),
	RunE: withService(func(cmd *cobra.Command, svc *service.VotingService, args []string) error {
		party := ""
		if len(args) == 3 {
			party = args[2]
		}
		result, err := svc.CreateCandidate(cmd.Context(), args[0], args[1], party)
		if err != nil {
			return err
		}
		return printAdmin(cmd.OutOrStdout(), result)
	}),
}

var electionCmd = &cobra.Command{
	Use:   "election",
	Short: "Open or close the election",
}

var electionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Open the election for voting",
	Args:  cobra.NoArgs,
	RunE: withService(func(cmd *cobra.Command, svc *service.VotingService, args []string) error {
		result, err := svc.StartElection(cmd.Context())
		if err != nil {
			return err
		}
		return printAdmin(cmd.OutOrStdout(), result)
	}),
}

var electionEndCmd = &cobra.Command{
	Use:   "end",
	Short: "Close the election",
	Args:  cobra.NoArgs,
	RunE: withService(func(cmd *cobra.Command, svc *service.VotingService, args []string) error {
		result, err := svc.EndElection(cmd.Context())
		if err != nil {
			return err
		}
		return printAdmin(cmd.OutOrStdout(), result)
	}),
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Ledger maintenance",
}

var ledgerInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Seed an empty ledger with candidates and voters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := openApp(cmd, app.WithoutAutoInit())
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Service.InitLedger(cmd.Context())
		if err != nil {
			return err
		}
		return printAdmin(cmd.OutOrStdout(), result)
	},
}

var ledgerVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the development ledger's block log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Chain == nil {
			return errNoBlockLog
		}
		if err := a.Chain.VerifyChain(); err != nil {
			return err
		}
		return printVerified(cmd.OutOrStdout(), a.Chain.Height())
	},
}

// withService opens the application around a command and closes it afterwards.
func withService(run func(*cobra.Command, *service.VotingService, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, _, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, a.Service, args)
	}
}
