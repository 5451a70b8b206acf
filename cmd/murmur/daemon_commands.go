package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"murmur/internal/daemonctl"
	"murmur/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the murmur daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}

			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the murmur daemon (completely terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			} else {
				fmt.Fprintln(stdout, "Stopping daemon workflow...")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the murmur daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			stop, err := daemonctl.StopAndTerminate(ctx.socketPath(), 5*time.Second)
			wasRunning := err == nil
			if err != nil && !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				return err
			}
			if wasRunning {
				if stop.ForcedKill && stop.PID > 0 {
					fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}

			if _, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx),
				10*time.Second,
			); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Daemon restarted")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, recorder, and library status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				printStatus(cmd, status, ctx.socketPath())
				return nil
			})
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func printStatus(cmd *cobra.Command, status *ipc.StatusResponse, socket string) {
	stdout := cmd.OutOrStdout()
	colorize := colorEnabled(stdout)

	statusHeading(stdout, "Daemon", colorize)
	state, stateTone := "stopped", toneBad
	if status.Running {
		state, stateTone = fmt.Sprintf("running (pid %d)", status.PID), toneGood
	}
	statusRow(stdout, "State", state, stateTone, colorize)
	statusRow(stdout, "Socket", socket, toneInfo, colorize)
	statusRow(stdout, "Database", status.DatabasePath, toneInfo, colorize)
	statusRow(stdout, "Log", status.LogPath, toneInfo, colorize)
	fmt.Fprintln(stdout)

	statusHeading(stdout, "Recorder", colorize)
	workerTone := toneWarn
	switch {
	case status.RecorderFailed:
		workerTone = toneBad
	case status.RecorderState == "ready":
		workerTone = toneGood
	}
	statusRow(stdout, "Worker", status.RecorderState, workerTone, colorize)
	statusRow(stdout, "Recording", yesNo(status.Recording), toneInfo, colorize)
	monitor, monitorTone := "unavailable", toneWarn
	if status.MonitorRunning {
		monitor, monitorTone = "watching", toneGood
	}
	statusRow(stdout, "Device monitor", monitor, monitorTone, colorize)
	if status.LastAudioDeviceEvent != "" {
		statusRow(stdout, "Last hotplug", status.LastAudioDeviceEvent, toneInfo, colorize)
	}
	fmt.Fprintln(stdout)

	statusHeading(stdout, "Transcription", colorize)
	inFlight := "none"
	if len(status.ActiveJobs) > 0 {
		inFlight = strings.Join(status.ActiveJobs, ", ")
	}
	statusRow(stdout, "In flight", inFlight, toneInfo, colorize)
	statusRow(stdout, "Completed", fmt.Sprintf("%d", status.JobsSucceeded), toneInfo, colorize)
	failedTone := toneInfo
	if status.JobsFailed > 0 {
		failedTone = toneWarn
	}
	statusRow(stdout, "Failed", fmt.Sprintf("%d", status.JobsFailed), failedTone, colorize)
	if status.LastError != "" {
		statusRow(stdout, "Last error", status.LastError, toneWarn, colorize)
	}
	fmt.Fprintln(stdout)

	statusHeading(stdout, "Library", colorize)
	statusRow(stdout, "Memos", fmt.Sprintf("%d", status.TotalRecordings), toneInfo, colorize)
	statusRow(stdout, "Audio total", formatDuration(status.TotalDurationSeconds), toneInfo, colorize)
}

// daemonExecutable locates the murmurd binary: next to the CLI first, then on
// PATH.
func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	sibling := filepath.Join(filepath.Dir(exe), "murmurd")
	if info, statErr := os.Stat(sibling); statErr == nil && !info.IsDir() {
		return sibling, nil
	}
	found, lookErr := exec.LookPath("murmurd")
	if lookErr != nil {
		return "", fmt.Errorf("locate murmurd: %w", lookErr)
	}
	return found, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{}
	if ctx.socketFlag != nil {
		if socket := strings.TrimSpace(*ctx.socketFlag); socket != "" {
			opts.SocketPath = socket
		}
	}
	if ctx.configFlag != nil {
		if config := strings.TrimSpace(*ctx.configFlag); config != "" {
			opts.ConfigPath = config
		}
	}
	return opts
}
