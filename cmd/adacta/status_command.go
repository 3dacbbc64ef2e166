package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"adacta/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status, pipeline health, and preflight checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, status)
			}
			printStatus(cmd, status)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of text")
	return cmd
}

func printStatus(cmd *cobra.Command, status api.DaemonStatus) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	daemonKind := statusOK
	daemonMsg := fmt.Sprintf("PID %d", status.PID)
	if !status.Running {
		daemonKind = statusWarn
		daemonMsg = "Not running"
	}
	fmt.Fprintln(out, renderStatusLine("Daemon", daemonKind, daemonMsg, colorize))
	fmt.Fprintln(out, renderStatusLine("Storage", statusInfo, status.StorageDir, colorize))
	fmt.Fprintln(out, renderStatusLine("Index", statusInfo, status.IndexPath, colorize))
	fmt.Fprintln(out, renderStatusLine("Documents", statusInfo, strconv.Itoa(status.Documents), colorize))

	if len(status.Stages) > 0 {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Pipeline", colorize) {
			fmt.Fprintln(out, line)
		}
		for _, stage := range status.Stages {
			kind := statusOK
			msg := fmt.Sprintf("%d pending", stage.Pending)
			if stage.DeadLettered > 0 {
				kind = statusError
				msg = fmt.Sprintf("%d pending, %d dead-lettered", stage.Pending, stage.DeadLettered)
			}
			fmt.Fprintln(out, renderStatusLine(stage.Name, kind, msg, colorize))
		}
	}

	if len(status.Checks) > 0 {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Preflight", colorize) {
			fmt.Fprintln(out, line)
		}
		for _, check := range status.Checks {
			kind := statusOK
			if !check.Passed {
				kind = statusError
			}
			fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
		}
	}
}
