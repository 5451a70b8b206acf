package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"murmur/internal/config"
	"murmur/internal/ipc"
)

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an existing audio file and store the memo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			audioPath, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Transcribe(audioPath)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Transcribed %s\n", audioPath)
				printRecording(cmd, resp.Recording)
				return nil
			})
		},
	}
}
