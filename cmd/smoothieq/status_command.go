package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"smoothieq/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, worker, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, status)
				}
				renderStatus(cmd, status)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")
	return cmd
}

func renderStatus(cmd *cobra.Command, status *ipc.StatusResponse) {
	stdout := cmd.OutOrStdout()
	p := newStatusPrinter(stdout)

	p.section("Worker")
	kind, label := workerStateKind(status.WorkerRunning, status.Paused, status.ForceStopping)
	p.line("State", kind, label)
	if status.RunID != "" {
		p.line("Run", statusInfo, status.RunID)
	}
	if status.Current != nil {
		detail := fmt.Sprintf("#%d %s", status.Current.ID, status.Current.InputPath)
		if progress := formatProgress(status.Progress); progress != "" {
			detail += " (" + progress + ")"
		}
		p.line("Current task", statusOK, detail)
	}
	p.line("Last error", lastErrorKind(status.LastError), fallback(status.LastError, "none"))

	p.section("Selection")
	p.line("Executable", statusInfo, status.Executable)
	p.line("Recipe", statusInfo, status.Recipe)
	p.line("Output folder", statusInfo, fallback(status.OutputDir, "next to each input"))

	p.section("Daemon")
	p.line("PID", statusInfo, fmt.Sprint(status.PID))
	p.line("Socket", statusInfo, status.SocketPath)
	p.line("Log", statusInfo, status.LogPath)
	p.line("History", statusInfo, fallback(status.HistoryPath, "disabled"))

	p.section("Queue")
	rows := buildQueueStatusRows(status.QueueStats)
	if len(rows) == 0 {
		fmt.Fprintln(stdout, "Queue is empty")
		return
	}
	fmt.Fprint(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func fallback(value, empty string) string {
	if value == "" {
		return empty
	}
	return value
}
