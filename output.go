package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"election-coordinator/models"
	"election-coordinator/service"

	"github.com/fatih/color"
	"github.com/pkg/errors"
)

var errNoBlockLog = errors.New("the configured ledger driver does not expose a block log")

var (
	bold    = color.New(color.Bold)
	green   = color.New(color.FgGreen)
	yellow  = color.New(color.FgYellow)
	faint   = color.New(color.Faint)
	phaseFg = map[models.Phase]*color.Color{
		models.PhaseNotStarted: yellow,
		models.PhaseOpen:       green,
		models.PhaseClosed:     color.New(color.FgRed),
	}
)

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func phaseString(p models.Phase) string {
	if c, ok := phaseFg[p]; ok {
		return c.Sprint(p)
	}
	return p.String()
}

func printReceipt(w io.Writer, r *models.VoteReceipt) error {
	if opts.jsonOutput {
		return printJSON(w, r)
	}
	green.Fprintln(w, r.Acknowledgment)
	faint.Fprintf(w, "request %s  transaction %s\n", r.RequestID, r.TransactionID)
	return nil
}

func printVoter(w io.Writer, v models.Voter) error {
	if opts.jsonOutput {
		return printJSON(w, v)
	}
	if v.HasVoted {
		fmt.Fprintf(w, "%s has %s\n", bold.Sprint(v.ID), green.Sprint("voted"))
	} else {
		fmt.Fprintf(w, "%s has %s\n", bold.Sprint(v.ID), yellow.Sprint("not voted"))
	}
	return nil
}

func printCandidates(w io.Writer, candidates []models.Candidate) error {
	if opts.jsonOutput {
		return printJSON(w, candidates)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, bold.Sprint("ID")+"\t"+bold.Sprint("NAME")+"\t"+bold.Sprint("PARTY"))
	for _, c := range candidates {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Name, c.Party)
	}
	return tw.Flush()
}

func printResults(w io.Writer, r *service.VotingResults) error {
	if opts.jsonOutput {
		return printJSON(w, r)
	}
	fmt.Fprintf(w, "Election %s, %d votes counted\n", phaseString(r.Phase), r.TotalVotes)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, bold.Sprint("#")+"\t"+bold.Sprint("CANDIDATE")+"\t"+bold.Sprint("NAME")+"\t"+bold.Sprint("PARTY")+"\t"+bold.Sprint("VOTES"))
	for i, c := range r.Candidates {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", i+1, c.ID, c.Name, c.Party, c.VoteCount)
	}
	return tw.Flush()
}

func printStatus(w io.Writer, s *service.ElectionStatus) error {
	if opts.jsonOutput {
		return printJSON(w, s)
	}
	fmt.Fprintf(w, "Election %s\n", phaseString(s.Phase))
	fmt.Fprintf(w, "Candidates: %d\n", s.CandidateCount)
	fmt.Fprintf(w, "Votes cast: %d\n", s.TotalVotes)
	return nil
}

func printAdmin(w io.Writer, r *service.AdminResult) error {
	if opts.jsonOutput {
		return printJSON(w, r)
	}
	green.Fprintln(w, r.Message)
	if r.TransactionID != "" {
		faint.Fprintf(w, "transaction %s\n", r.TransactionID)
	}
	return nil
}

func printVerified(w io.Writer, height int) error {
	if opts.jsonOutput {
		return printJSON(w, map[string]interface{}{"is_valid": true, "height": height})
	}
	green.Fprintf(w, "block log valid, %d transactions\n", height)
	return nil
}
