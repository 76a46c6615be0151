package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"smoothieq/internal/ipc"
	"smoothieq/internal/worker"
)

const watchPollWait = 5 * time.Second

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var all bool
	var untilFinished bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream worker notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				var after uint64
				if !all {
					status, err := client.Status()
					if err != nil {
						return err
					}
					after = status.LastEvent
				}
				out := cmd.OutOrStdout()
				for {
					select {
					case <-cmd.Context().Done():
						return nil
					default:
					}
					resp, err := client.Events(after, watchPollWait)
					if err != nil {
						return fmt.Errorf("poll events: %w", err)
					}
					for _, evt := range resp.Events {
						fmt.Fprintln(out, formatEvent(evt))
						if untilFinished && evt.Kind == worker.WorkerFinished {
							return nil
						}
					}
					after = resp.Last
				}
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Replay retained notifications before following")
	cmd.Flags().BoolVar(&untilFinished, "until-finished", false, "Exit when the worker finishes")
	return cmd
}
