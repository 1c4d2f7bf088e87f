package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"memeshop/internal/journal"
	"memeshop/internal/textutil"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recent runs, or the attempts of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return ctx.withJournal(func(j *journal.Journal) error {
				if len(args) == 1 {
					return showRun(cmd, j, strings.TrimSpace(args[0]))
				}
				runs, err := j.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded yet")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"Run", "Command", "Status", "Started", "Duration", "Acq", "Pub", "Posted", "Abandoned", "Pruned"},
					buildRunRows(runs),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
					isTerminal(out),
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	return cmd
}

func buildRunRows(runs []journal.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		s := run.Summary
		rows = append(rows, []string{
			run.ID,
			run.Command,
			string(run.Status),
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.Duration().Round(time.Second).String(),
			strconv.Itoa(s.Acquired),
			strconv.Itoa(s.Published),
			strconv.Itoa(s.Posted),
			strconv.Itoa(s.Exhausted),
			strconv.Itoa(s.Pruned),
		})
	}
	return rows
}

func showRun(cmd *cobra.Command, j *journal.Journal, id string) error {
	run, err := j.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s (%s) %s\n", run.ID, run.Command, run.Status)
	fmt.Fprintf(out, "Started %s, took %s\n", run.StartedAt.Local().Format(time.RFC3339), run.Duration().Round(time.Second))
	if run.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", textutil.Truncate(run.Error, 200))
	}
	attempts, err := j.AttemptsForRun(cmd.Context(), run.ID)
	if err != nil {
		return err
	}
	if len(attempts) == 0 {
		fmt.Fprintln(out, "No journaled attempts")
		return nil
	}
	rows := make([][]string, 0, len(attempts))
	for i, row := range buildAttemptRows(attempts) {
		rows = append(rows, append([]string{strconv.FormatInt(attempts[i].RecordID, 10)}, row...))
	}
	fmt.Fprint(out, renderTable(
		[]string{"Record", "When", "Stage", "Channel", "Try", "Outcome", "Detail"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
		isTerminal(out),
	))
	return nil
}
