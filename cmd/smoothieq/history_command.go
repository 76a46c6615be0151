package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"smoothieq/internal/daemon"
	"smoothieq/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently finished tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(limit)
				if errors.Is(err, daemon.ErrHistoryDisabled) {
					fmt.Fprintln(cmd.OutOrStdout(), "History is disabled in the configuration")
					return nil
				}
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Entries)
				}
				if len(resp.Entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No finished tasks recorded")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Task", "Status", "Input", "Finished", "Duration"},
					buildHistoryRows(resp.Entries),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}
