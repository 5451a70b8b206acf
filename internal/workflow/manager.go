package workflow

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"murmur/internal/config"
	"murmur/internal/logging"
	"murmur/internal/notifications"
	"murmur/internal/process"
	"murmur/internal/recorder"
	"murmur/internal/recordings"
	"murmur/internal/transcribe"
)

// session is the recorder surface the manager depends on.
type session interface {
	Start(ctx context.Context) error
	Close(force bool)
	StartRecording() error
	StopRecording() error
	IsRecording() bool
	State() process.State
	Events() <-chan recorder.Event
}

// transcriber runs one-shot transcription jobs.
type transcriber interface {
	Run(ctx context.Context, audioPath string) (transcribe.Result, error)
	Active() []string
}

// library persists finished memos.
type library interface {
	Save(ctx context.Context, rec recordings.NewRecording) (*recordings.Recording, error)
}

// Status is a snapshot of the workflow for IPC reporting.
type Status struct {
	Recording      bool
	RecorderState  string
	RecorderFailed bool
	ActiveJobs     []string
	JobsSucceeded  int64
	JobsFailed     int64
	LastError      string
}

// Manager is the orchestration root: it owns the recorder session for the
// daemon's lifetime and spawns one goroutine per finished capture.
type Manager struct {
	cfg      *config.Config
	logger   *slog.Logger
	session  session
	jobs     transcriber
	store    library
	notifier notifications.Service

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu             sync.Mutex
	recorderFailed bool
	lastError      string
	jobsSucceeded  int64
	jobsFailed     int64
}

// NewManager wires the workflow together. Start must be called before use.
func NewManager(
	cfg *config.Config,
	sess session,
	jobs transcriber,
	store library,
	notifier notifications.Service,
	logger *slog.Logger,
) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "workflow"),
		session:  sess,
		jobs:     jobs,
		store:    store,
		notifier: notifier,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start spawns the recorder worker and begins consuming session events.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.session.Start(ctx); err != nil {
		return err
	}
	m.wg.Add(1)
	go m.loop()
	return nil
}

// Stop shuts the session down gracefully and waits for in-flight
// transcriptions to observe cancellation.
func (m *Manager) Stop() {
	m.cancel()
	m.session.Close(false)
	m.wg.Wait()
}

// StartRecording begins a capture.
func (m *Manager) StartRecording() error { return m.session.StartRecording() }

// StopRecording ends a capture; transcription is triggered by the worker's
// completion message, not by this call.
func (m *Manager) StopRecording() error { return m.session.StopRecording() }

// Status reports the current workflow snapshot.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Recording:      m.session.IsRecording(),
		RecorderState:  m.session.State().String(),
		RecorderFailed: m.recorderFailed,
		ActiveJobs:     m.jobs.Active(),
		JobsSucceeded:  m.jobsSucceeded,
		JobsFailed:     m.jobsFailed,
		LastError:      m.lastError,
	}
}

// TranscribeFile runs the full pipeline for an existing audio file on the
// caller's behalf and returns the stored recording. Used by the CLI for files
// that did not come from the live recorder.
func (m *Manager) TranscribeFile(ctx context.Context, audioPath string) (*recordings.Recording, error) {
	result, err := m.jobs.Run(ctx, audioPath)
	if err != nil {
		m.noteFailure(err)
		return nil, err
	}
	return m.finalize(ctx, audioPath, result)
}

func (m *Manager) loop() {
	defer m.wg.Done()

	for ev := range m.session.Events() {
		switch ev.Kind {
		case recorder.EventRecordingStarted:
			m.notify(m.notifier.NotifyRecordingStarted(m.ctx), "recording started")

		case recorder.EventRecordingComplete:
			m.logger.Info("capture complete, transcribing",
				logging.String("audio_path", ev.AudioPath))
			m.notify(m.notifier.NotifyRecordingComplete(m.ctx, ev.AudioPath), "recording complete")
			m.wg.Add(1)
			go m.runJob(ev.AudioPath)

		case recorder.EventRecordingEmpty:
			m.logger.Info("capture produced no audio, nothing to transcribe")

		case recorder.EventRecorderError:
			m.noteError(ev.Code + ": " + ev.Detail)
			m.notify(m.notifier.NotifyRecorderError(m.ctx, ev.Code, ev.Detail), "recorder error")

		case recorder.EventRestarting:
			m.notify(m.notifier.NotifyRecorderRestarting(m.ctx, ev.Attempt, ev.Delay), "recorder restarting")

		case recorder.EventFailed:
			m.mu.Lock()
			m.recorderFailed = true
			if ev.Err != nil {
				m.lastError = ev.Err.Error()
			}
			m.mu.Unlock()
			m.notify(m.notifier.NotifyRecorderFailed(m.ctx, ev.Err), "recorder failed")
		}
	}
}

// runJob transcribes one finished capture. Failures are logged and notified,
// never propagated: the session must stay available for the next recording.
func (m *Manager) runJob(audioPath string) {
	defer m.wg.Done()

	result, err := m.jobs.Run(m.ctx, audioPath)
	if err != nil {
		m.noteFailure(err)
		m.logger.Warn("transcription job failed",
			logging.String("audio_path", audioPath),
			logging.Error(err))
		m.notify(m.notifier.NotifyTranscriptionFailed(m.ctx, audioPath, err), "transcription failed")
		return
	}

	if _, err := m.finalize(m.ctx, audioPath, result); err != nil {
		m.noteFailure(err)
		m.logger.Error("failed to store finished memo",
			logging.String("audio_path", audioPath),
			logging.Error(err))
		m.notify(m.notifier.NotifyTranscriptionFailed(m.ctx, audioPath, err), "store failed")
	}
}

// finalize derives metadata from the artifacts, persists the memo, and sends
// the completion notification.
func (m *Manager) finalize(ctx context.Context, audioPath string, result transcribe.Result) (*recordings.Recording, error) {
	duration, err := recordings.AudioDuration(audioPath)
	if err != nil {
		m.logger.Warn("could not read audio duration", logging.Error(err))
		duration = 0
	}

	title := recordings.DeriveTitle(
		m.transcriptText(result),
		m.cfg.Transcriber.TitleMaxLength,
		filepath.Base(audioPath),
	)

	rec, err := m.store.Save(ctx, recordings.NewRecording{
		Title:           title,
		AudioPath:       audioPath,
		TranscriptPath:  result.TranscriptPath,
		TextPath:        result.TextPath,
		DurationSeconds: duration,
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.jobsSucceeded++
	m.mu.Unlock()

	m.logger.Info("memo stored",
		logging.Int64(logging.FieldRecordingID, rec.ID),
		logging.String("title", rec.Title),
		logging.String(logging.FieldEventType, "memo_stored"))
	m.notify(m.notifier.NotifyTranscriptionComplete(ctx, rec.Title, rec.TranscriptPath), "transcription complete")
	return rec, nil
}

// transcriptText loads transcript content for title derivation, preferring
// the plain-text artifact.
func (m *Manager) transcriptText(result transcribe.Result) string {
	for _, path := range []string{result.TextPath, result.TranscriptPath} {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			m.logger.Warn("could not read transcript for title",
				logging.String("path", path), logging.Error(err))
			continue
		}
		return string(data)
	}
	return ""
}

func (m *Manager) noteFailure(err error) {
	m.mu.Lock()
	m.jobsFailed++
	if err != nil && !errors.Is(err, context.Canceled) {
		m.lastError = err.Error()
	}
	m.mu.Unlock()
}

func (m *Manager) noteError(msg string) {
	m.mu.Lock()
	m.lastError = msg
	m.mu.Unlock()
}

func (m *Manager) notify(err error, event string) {
	if err != nil {
		m.logger.Warn("notification failed",
			logging.String("event", event), logging.Error(err))
	}
}
