// Package daemon ties the workflow, recordings library, and notifications
// together behind a single-instance lock, and exposes the operations the IPC
// layer serves.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"murmur/internal/config"
	"murmur/internal/logging"
	"murmur/internal/notifications"
	"murmur/internal/recordings"
	"murmur/internal/services"
	"murmur/internal/workflow"
)

// ErrNotRunning is returned for operations that need a started daemon.
var ErrNotRunning = errors.New("daemon is not running")

// orchestrator is the workflow surface the daemon drives.
type orchestrator interface {
	Start(ctx context.Context) error
	Stop()
	StartRecording() error
	StopRecording() error
	TranscribeFile(ctx context.Context, audioPath string) (*recordings.Recording, error)
	Status() workflow.Status
}

// Status is the daemon-level snapshot returned over IPC.
type Status struct {
	Running              bool
	PID                  int
	LockPath             string
	DatabasePath         string
	LogPath              string
	MonitorRunning       bool
	LastAudioDeviceEvent string
	Workflow             workflow.Status
	Library              recordings.Stats
}

// Daemon owns the supervising workflow for one machine. A file lock keeps a
// second instance from racing the recorder worker and the library database.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	wf       orchestrator
	store    *recordings.Store
	notifier notifications.Service
	monitor  *audioMonitor

	lock       *flock.Flock
	running    atomic.Bool
	lastDevice atomic.Value
}

// New assembles a daemon from already-constructed components.
func New(
	cfg *config.Config,
	wf orchestrator,
	store *recordings.Store,
	notifier notifications.Service,
	logger *slog.Logger,
) *Daemon {
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "daemon"),
		wf:       wf,
		store:    store,
		notifier: notifier,
		lock:     flock.New(filepath.Join(cfg.Paths.LogDir, "murmurd.lock")),
	}
	d.lastDevice.Store("")
	d.monitor = newAudioMonitor(logger, func(device, action string) {
		d.lastDevice.Store(action + " " + device)
	})
	return d
}

// Start acquires the instance lock, spawns the recorder worker, and begins
// listening for audio device events.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return nil
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	locked, err := d.lock.TryLock()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "daemon", "lock",
			d.lock.Path(), err)
	}
	if !locked {
		return services.Wrap(services.ErrConfiguration, "daemon", "lock",
			"another murmurd instance holds the lock", nil)
	}

	if err := d.wf.Start(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}
	_ = d.monitor.Start(ctx)

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.Int("pid", os.Getpid()),
		logging.String(logging.FieldEventType, "daemon_started"))
	return nil
}

// Stop shuts everything down in reverse order and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Swap(false) {
		return
	}
	d.monitor.Stop()
	d.wf.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release instance lock", logging.Error(err))
	}
	d.logger.Info("daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Running reports whether Start has completed.
func (d *Daemon) Running() bool { return d.running.Load() }

// LogPath returns the daemon's log file location for IPC tailing.
func (d *Daemon) LogPath() string { return d.cfg.LogFilePath() }

// Status collects the daemon snapshot.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		LockPath:       d.lock.Path(),
		DatabasePath:   d.store.Path(),
		LogPath:        d.cfg.LogFilePath(),
		MonitorRunning: d.monitor.Running(),
		Workflow:       d.wf.Status(),
	}
	if last, ok := d.lastDevice.Load().(string); ok {
		status.LastAudioDeviceEvent = last
	}
	stats, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("failed to read library stats", logging.Error(err))
	} else {
		status.Library = stats
	}
	return status
}

// StartRecording begins a capture through the workflow.
func (d *Daemon) StartRecording() error {
	if !d.running.Load() {
		return ErrNotRunning
	}
	return d.wf.StartRecording()
}

// StopRecording ends a capture; the transcription pipeline runs when the
// worker confirms.
func (d *Daemon) StopRecording() error {
	if !d.running.Load() {
		return ErrNotRunning
	}
	return d.wf.StopRecording()
}

// TranscribeFile runs the pipeline for an existing audio file.
func (d *Daemon) TranscribeFile(ctx context.Context, audioPath string) (*recordings.Recording, error) {
	if !d.running.Load() {
		return nil, ErrNotRunning
	}
	return d.wf.TranscribeFile(ctx, audioPath)
}

// ListRecordings returns the stored memos, newest first.
func (d *Daemon) ListRecordings(ctx context.Context) ([]*recordings.Recording, error) {
	return d.store.List(ctx)
}

// GetRecording fetches one memo.
func (d *Daemon) GetRecording(ctx context.Context, id int64) (*recordings.Recording, error) {
	return d.store.GetByID(ctx, id)
}

// RemoveRecording deletes a memo row and, when requested, its artifacts on
// disk. Artifact removal failures are logged, not fatal: the row is gone.
func (d *Daemon) RemoveRecording(ctx context.Context, id int64, deleteFiles bool) (*recordings.Recording, error) {
	rec, err := d.store.Remove(ctx, id)
	if err != nil {
		return nil, err
	}
	if deleteFiles {
		for _, path := range []string{rec.AudioPath, rec.TranscriptPath, rec.TextPath} {
			if path == "" {
				continue
			}
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				d.logger.Warn("failed to remove artifact",
					logging.String("path", path), logging.Error(err))
			}
		}
	}
	d.logger.Info("recording removed",
		logging.Int64(logging.FieldRecordingID, rec.ID),
		logging.Bool("deleted_files", deleteFiles),
		logging.String(logging.FieldEventType, "recording_removed"))
	return rec, nil
}

// TestNotification pushes a test message through the configured channel.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg.Notifications.NtfyTopic == "" {
		return false, "no ntfy topic configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, err.Error(), err
	}
	return true, "test notification sent", nil
}
