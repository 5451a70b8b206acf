package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"murmur/internal/ipc"
)

func newRecordingsCommand(ctx *commandContext) *cobra.Command {
	recordingsCmd := &cobra.Command{
		Use:   "recordings",
		Short: "Inspect and manage stored memos",
	}

	recordingsCmd.AddCommand(newRecordingsListCommand(ctx))
	recordingsCmd.AddCommand(newRecordingsShowCommand(ctx))
	recordingsCmd.AddCommand(newRecordingsRemoveCommand(ctx))

	return recordingsCmd
}

func newRecordingsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored memos, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordingsList()
				if err != nil {
					return err
				}
				if len(resp.Recordings) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No recordings yet")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderMemoTable(resp.Recordings))
				return nil
			})
		},
	}
}

func newRecordingsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one memo in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordingID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordingsDescribe(id)
				if err != nil {
					return err
				}
				printRecording(cmd, resp.Recording)
				return nil
			})
		},
	}
}

func newRecordingsRemoveCommand(ctx *commandContext) *cobra.Command {
	var deleteFiles bool

	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a memo from the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordingID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordingsRemove(id, deleteFiles)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Removed recording %d (%s)\n", resp.Recording.ID, resp.Recording.Title)
				if deleteFiles {
					fmt.Fprintln(stdout, "Audio and transcript files deleted")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&deleteFiles, "delete-files", false, "Also delete the audio and transcript files")
	return cmd
}

// renderMemoTable lays out the library listing; numeric columns are
// right-aligned so durations line up.
func renderMemoTable(recs []ipc.Recording) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"ID", "Title", "Duration", "Created"})
	for _, rec := range recs {
		tw.AppendRow(table.Row{
			rec.ID,
			rec.Title,
			formatDuration(rec.DurationSeconds),
			formatTimestamp(rec.CreatedAt),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func parseRecordingID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid recording id %q", raw)
	}
	return id, nil
}

func printRecording(cmd *cobra.Command, rec ipc.Recording) {
	stdout := cmd.OutOrStdout()
	fmt.Fprintf(stdout, "ID:         %d\n", rec.ID)
	fmt.Fprintf(stdout, "Title:      %s\n", rec.Title)
	fmt.Fprintf(stdout, "Duration:   %s\n", formatDuration(rec.DurationSeconds))
	fmt.Fprintf(stdout, "Created:    %s\n", formatTimestamp(rec.CreatedAt))
	fmt.Fprintf(stdout, "Audio:      %s\n", rec.AudioPath)
	fmt.Fprintf(stdout, "Transcript: %s\n", rec.TranscriptPath)
	if rec.TextPath != "" {
		fmt.Fprintf(stdout, "Text:       %s\n", rec.TextPath)
	}
}
