package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"smoothieq/internal/ipc"
)

func newControlCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start processing pending tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Start()
				if err != nil {
					return err
				}
				if !resp.Started {
					return fmt.Errorf("worker not started: %s", resp.Message)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Worker started (run %s)\n", resp.RunID)
				return nil
			})
		},
	}

	pauseCmd := newFlagCommand(ctx, "pause", "Finish the current task, then stop", (*ipc.Client).Pause)
	resumeCmd := newFlagCommand(ctx, "resume", "Cancel a pending pause", (*ipc.Client).Resume)
	toggleCmd := newFlagCommand(ctx, "toggle-pause", "Toggle the pause request", (*ipc.Client).TogglePause)
	forceCmd := newFlagCommand(ctx, "force-stop", "Terminate the running task and stop the worker", (*ipc.Client).ForceStop)

	return []*cobra.Command{startCmd, pauseCmd, resumeCmd, toggleCmd, forceCmd}
}

func newFlagCommand(ctx *commandContext, use, short string, call func(*ipc.Client) (*ipc.ControlResponse, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := call(client)
				if err != nil {
					return err
				}
				if resp == nil {
					return errors.New("missing control response")
				}
				printFlags(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
}

func printFlags(out io.Writer, resp *ipc.ControlResponse) {
	switch {
	case resp.ForceStopping:
		fmt.Fprintln(out, "Force stop requested")
	case resp.Paused:
		fmt.Fprintln(out, "Pause requested; the worker stops after the current task")
	default:
		fmt.Fprintln(out, "Worker will keep processing")
	}
}
