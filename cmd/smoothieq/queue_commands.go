package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"smoothieq/internal/ipc"
	"smoothieq/internal/queue"
	"smoothieq/internal/workflow"
)

func newQueueCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newAddCommand(ctx),
		newListCommand(ctx),
		newRemoveCommand(ctx),
		newClearCommand(ctx),
	}
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <file>...",
		Short: "Queue video files for processing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := make([]string, 0, len(args))
			for _, arg := range args {
				abs, err := filepath.Abs(arg)
				if err != nil {
					return fmt.Errorf("resolve %q: %w", arg, err)
				}
				paths = append(paths, abs)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Add(paths)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, task := range resp.Tasks {
					fmt.Fprintf(out, "Queued task %d: %s\n", task.ID, task.InputPath)
				}
				for _, rejected := range resp.Rejected {
					fmt.Fprintf(cmd.ErrOrStderr(), "Skipped %s\n", rejected)
				}
				if len(resp.Tasks) == 0 {
					return errors.New("no files were queued")
				}
				return nil
			})
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued tasks in processing order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.List(statuses)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Tasks)
				}
				if len(resp.Tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Status", "Input", "Output"},
					buildTaskRows(resp.Tasks),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (pending, running, completed, failed, cancelled)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a pending task from the queue",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				_, err := client.Remove(id)
				switch {
				case errors.Is(err, queue.ErrTaskNotFound):
					return fmt.Errorf("task %d not found", id)
				case errors.Is(err, workflow.ErrNotPending):
					return fmt.Errorf("task %d is not pending and cannot be removed", id)
				case err != nil:
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed task %d\n", id)
				return nil
			})
		},
	}
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every task from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Clear()
				switch {
				case errors.Is(err, workflow.ErrQueueEmpty):
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is already empty")
					return nil
				case errors.Is(err, workflow.ErrWorkerActive):
					return errors.New("cannot clear the queue while the worker is running")
				case err != nil:
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d tasks\n", resp.Removed)
				return nil
			})
		},
	}
}
