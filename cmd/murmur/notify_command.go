package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"murmur/internal/ipc"
)

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	notifyCmd := &cobra.Command{
		Use:   "notify",
		Short: "Notification utilities",
	}

	notifyCmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Push a test notification through the configured channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return fmt.Errorf("test notification: %w", err)
				}
				stdout := cmd.OutOrStdout()
				if resp.Sent {
					fmt.Fprintln(stdout, "Test notification sent")
					return nil
				}
				message := resp.Message
				if message == "" {
					message = "notification not sent"
				}
				fmt.Fprintf(stdout, "Notification skipped: %s\n", message)
				return nil
			})
		},
	})

	return notifyCmd
}
