package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"memeshop/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs [run-id]",
		Short: "Show the log of the latest run, or of a given run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runID := ""
			if len(args) == 1 {
				runID = strings.TrimSpace(args[0])
			}
			path, err := logs.ForRun(cfg.Paths.LogDir, runID)
			if err != nil {
				if errors.Is(err, logs.ErrNoRunLogs) {
					fmt.Fprintln(cmd.OutOrStdout(), "No run logs yet")
					return nil
				}
				return err
			}

			var chunk logs.Chunk
			if lines == 0 {
				chunk, err = logs.ReadFrom(path, 0)
			} else {
				chunk, err = logs.Tail(path, lines)
			}
			if err != nil {
				return err
			}
			printLines(cmd, chunk.Lines)
			if !follow {
				return nil
			}

			followCtx, stop := signal.NotifyContext(cmdContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			err = logs.Follow(followCtx, path, chunk.Offset, 0, func(batch []string) {
				printLines(cmd, batch)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show (0 for all)")
	return cmd
}

func printLines(cmd *cobra.Command, lines []string) {
	out := cmd.OutOrStdout()
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}
