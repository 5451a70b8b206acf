package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"murmur/internal/ipc"
)

func newRecordCommand(ctx *commandContext) *cobra.Command {
	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Control the live recorder",
	}

	recordCmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Begin a capture",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordStart()
				if err != nil {
					return err
				}
				if !resp.Started {
					return fmt.Errorf("recording not started: %s", resp.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Recording started")
				return nil
			})
		},
	})

	recordCmd.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "End the capture and transcribe it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordStop()
				if err != nil {
					return err
				}
				if !resp.Stopped {
					return fmt.Errorf("recording not stopped: %s", resp.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Recording stopped, transcription queued")
				return nil
			})
		},
	})

	return recordCmd
}
