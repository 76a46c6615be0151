package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"smoothieq/internal/ipc"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Ask the daemon to send a test ntfy notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return fmt.Errorf("test notification: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), notifyMessage(resp))
				return nil
			})
		},
	}
}

func notifyMessage(resp *ipc.TestNotificationResponse) string {
	switch {
	case resp == nil:
		return "Daemon returned no notification result"
	case resp.Message != "":
		return resp.Message
	case resp.Sent:
		return "Test notification sent"
	default:
		return "Notification not sent"
	}
}
