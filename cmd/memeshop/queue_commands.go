package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"memeshop/internal/config"
	"memeshop/internal/journal"
	"memeshop/internal/queue"
	"memeshop/internal/textutil"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the intake and processed queues",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))

	return queueCmd
}

// loadQueue returns processed records followed by intake records not yet
// published, the same view the publisher builds.
func loadQueue(cfg *config.Config) ([]*queue.Record, error) {
	processed, err := queue.NewStore(cfg.Paths.ProcessedFile).Load()
	if err != nil {
		return nil, fmt.Errorf("load processed store: %w", err)
	}
	intake, err := queue.NewStore(cfg.Paths.IntakeFile).Load()
	if err != nil {
		return nil, fmt.Errorf("load intake store: %w", err)
	}
	return queue.Merge(processed, intake), nil
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var stages []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			records, err := loadQueue(cfg)
			if err != nil {
				return err
			}
			records = filterByStage(records, cfg.Distribution.Channels, stages)

			if jsonOutput {
				if records == nil {
					records = []*queue.Record{}
				}
				return writeJSON(cmd, records)
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "Queue is empty")
				return nil
			}
			fmt.Fprint(out, renderTable(
				[]string{"ID", "Title", "Stage", "Listing", "Created", "Channels"},
				buildQueueListRows(records, cfg.Distribution.Channels),
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				isTerminal(out),
			))
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&stages, "stage", "s", nil, "Filter by stage: scraped, published, posted, pruned (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output records as JSON")
	return cmd
}

func filterByStage(records []*queue.Record, channels, stages []string) []*queue.Record {
	if len(stages) == 0 {
		return records
	}
	wanted := make(map[string]struct{}, len(stages))
	for _, stage := range stages {
		wanted[strings.ToLower(strings.TrimSpace(stage))] = struct{}{}
	}
	var filtered []*queue.Record
	for _, rec := range records {
		if _, ok := wanted[rec.Stage(channels)]; ok {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

func buildQueueListRows(records []*queue.Record, channels []string) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		posted := 0
		for _, ch := range channels {
			if rec.HasChannelURL(ch) {
				posted++
			}
		}
		rows = append(rows, []string{
			strconv.FormatInt(rec.ID, 10),
			textutil.Truncate(rec.Title, 48),
			rec.Stage(channels),
			valueOrDash(rec.ListingID),
			valueOrDash(rec.CreatedAt),
			fmt.Sprintf("%d/%d", posted, len(channels)),
		})
	}
	return rows
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one record and its journaled attempts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid record id %q", args[0])
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			records, err := loadQueue(cfg)
			if err != nil {
				return err
			}
			rec, ok := queue.Find(records, id)
			if !ok {
				return fmt.Errorf("record %d not found", id)
			}

			out := cmd.OutOrStdout()
			if err := writeJSON(cmd, rec); err != nil {
				return err
			}
			return ctx.withJournal(func(j *journal.Journal) error {
				attempts, err := j.AttemptsForRecord(cmd.Context(), id)
				if err != nil {
					return err
				}
				if len(attempts) == 0 {
					fmt.Fprintln(out, "No journaled attempts")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"When", "Stage", "Channel", "Try", "Outcome", "Detail"},
					buildAttemptRows(attempts),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
					isTerminal(out),
				))
				return nil
			})
		},
	}
}

func buildAttemptRows(attempts []journal.Attempt) [][]string {
	rows := make([][]string, 0, len(attempts))
	for _, a := range attempts {
		detail := a.URL
		if a.Error != "" {
			detail = a.Error
		}
		channel := a.Channel
		if channel == "" {
			channel = "-"
		}
		rows = append(rows, []string{
			a.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			a.Stage,
			channel,
			strconv.Itoa(a.Attempt),
			string(a.Outcome),
			textutil.Truncate(detail, 60),
		})
	}
	return rows
}
