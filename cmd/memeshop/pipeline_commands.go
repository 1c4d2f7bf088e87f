package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"memeshop/internal/pipeline"
)

func newPipelineCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newPipelineCommand(ctx, pipeline.CommandRun, "Acquire, publish, and post in one pass"),
		newPipelineCommand(ctx, pipeline.CommandAcquire, "Download new images into the intake queue"),
		newPipelineCommand(ctx, pipeline.CommandPublish, "List unpublished records on the storefront"),
		newPipelineCommand(ctx, pipeline.CommandPost, "Post listed records to the social channels"),
		newPruneCommand(ctx),
	}
}

func newPipelineCommand(ctx *commandContext, command, short string) *cobra.Command {
	return &cobra.Command{
		Use:   command,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executePipeline(cmd, ctx, command, pipeline.ExecuteOptions{})
		},
	}
}

func newPruneCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   pipeline.CommandPrune,
		Short: "Delete old listings that have not sold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executePipeline(cmd, ctx, pipeline.CommandPrune, pipeline.ExecuteOptions{DryRun: dryRun})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report listings that would be pruned without deleting them")
	return cmd
}

func executePipeline(cmd *cobra.Command, ctx *commandContext, command string, opts pipeline.ExecuteOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := ctx.logger(cmd)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	report, err := pipeline.New(cfg, logger).Execute(signalCtx, command, opts)
	if report.RunID != "" {
		printReport(cmd.OutOrStdout(), report, opts)
	}
	return err
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printReport(out io.Writer, report pipeline.Report, opts pipeline.ExecuteOptions) {
	s := report.Summary
	switch report.Command {
	case pipeline.CommandPrune:
		verb := "pruned"
		if opts.DryRun {
			verb = "would prune"
		}
		fmt.Fprintf(out, "Checked %d listings, %s %d, kept %d, %d failed\n",
			report.Prune.Checked, verb, report.Prune.Pruned, report.Prune.Kept, report.Prune.Failed)
	default:
		fmt.Fprintf(out, "Acquired %d, published %d (%d failed), posted %d (%d abandoned)\n",
			s.Acquired, s.Published, s.PublishFailed, s.Posted, s.Exhausted)
	}
	fmt.Fprintf(out, "Run %s finished in %s\n", report.RunID, report.Duration.Round(time.Millisecond))
	if report.LogPath != "" {
		fmt.Fprintf(out, "Log: %s\n", report.LogPath)
	}
}
