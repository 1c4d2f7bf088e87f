package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"memeshop/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, credentials, and API reachability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := isTerminal(out)

			for _, line := range renderSectionHeader("Config", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("File", statusInfo, ctx.configPath, colorize))
			fmt.Fprintln(out, renderStatusLine("Channels", statusInfo, fmt.Sprint(cfg.Distribution.Channels), colorize))
			notify := "disabled"
			if cfg.Notifications.NtfyTopic != "" {
				notify = cfg.Notifications.NtfyTopic
			}
			fmt.Fprintln(out, renderStatusLine("Notifications", statusInfo, notify, colorize))
			fmt.Fprintln(out)

			for _, line := range renderSectionHeader("Checks", colorize) {
				fmt.Fprintln(out, line)
			}
			failed := 0
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				kind := statusOK
				if !result.Passed {
					kind = statusError
					failed++
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
}
