package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/google/uuid"

	"murmur/internal/logging"
	"murmur/internal/process"
	"murmur/internal/protocol"
)

// jobWorker is the supervised-process surface a job depends on.
type jobWorker interface {
	Start(ctx context.Context) error
	Stop(force bool)
	Events() <-chan process.Event
}

var newJobWorker = func(opts process.Options) jobWorker {
	return process.New(opts)
}

// Options configures the transcription worker invocation.
type Options struct {
	Command string
	Args    []string
	// Model and Language are passed as --model/--language flags when set.
	Model    string
	Language string
	Logger   *slog.Logger
}

// Result is the outcome of a successful job.
type Result struct {
	JobID string
	// TranscriptPath is the markdown transcript artifact.
	TranscriptPath string
	// TextPath is the plain-text variant; empty when the worker emits none.
	TextPath string
}

// Manager runs transcription jobs, enforcing at most one in-flight job per
// audio file. It is safe for concurrent use.
type Manager struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	inFlight map[string]string
}

// NewManager constructs a job manager.
func NewManager(opts Options) *Manager {
	return &Manager{
		opts:     opts,
		logger:   logging.WithComponent(opts.Logger, "transcribe"),
		inFlight: make(map[string]string),
	}
}

// Active returns the audio paths with a job currently in flight, sorted.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.inFlight))
	for path := range m.inFlight {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Run transcribes one audio file with a fresh one-shot worker. It blocks until
// the worker settles and returns the transcript paths, or a typed error:
// ErrAudioNotFound before spawning, ErrAlreadyTranscribing when the file is
// already in flight, WorkerError for a reported ERROR line, ExitError when the
// worker exits without a transcript, and ErrInterrupted on context end.
func (m *Manager) Run(ctx context.Context, audioPath string) (Result, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return Result{}, fmt.Errorf("%w: %s", ErrAudioNotFound, audioPath)
	}

	jobID := uuid.NewString()
	m.mu.Lock()
	if _, busy := m.inFlight[audioPath]; busy {
		m.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %s", ErrAlreadyTranscribing, audioPath)
	}
	m.inFlight[audioPath] = jobID
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.inFlight, audioPath)
		m.mu.Unlock()
	}()

	logger := m.logger.With(logging.String(logging.FieldJobID, jobID))
	logger.Info("transcription started", logging.String("audio_path", audioPath),
		logging.String(logging.FieldEventType, "transcription_started"))

	args := append([]string{}, m.opts.Args...)
	if m.opts.Model != "" {
		args = append(args, "--model", m.opts.Model)
	}
	if m.opts.Language != "" {
		args = append(args, "--language", m.opts.Language)
	}
	args = append(args, audioPath)

	worker := newJobWorker(process.Options{
		Name:    "transcriber",
		Command: m.opts.Command,
		Args:    args,
		Logger:  m.opts.Logger,
	})
	if err := worker.Start(ctx); err != nil {
		return Result{}, err
	}

	result := Result{JobID: jobID}
	var workerErr *WorkerError
	exitCode := 0

watch:
	for {
		select {
		case <-ctx.Done():
			worker.Stop(true)
			for range worker.Events() {
			}
			return Result{}, fmt.Errorf("%w: %v", ErrInterrupted, ctx.Err())
		case ev, ok := <-worker.Events():
			if !ok {
				break watch
			}
			switch ev.Kind {
			case process.EventMessage:
				switch msg := ev.Message; msg.Kind {
				case protocol.KindTranscriptSaved:
					result.TranscriptPath = msg.Path
				case protocol.KindTranscriptText:
					result.TextPath = msg.Path
				case protocol.KindError:
					workerErr = &WorkerError{Code: msg.Code, Detail: msg.Detail}
				}
			case process.EventExited:
				exitCode = ev.ExitCode
				break watch
			case process.EventFailed:
				break watch
			}
		}
	}

	// All stdout messages precede the exit event, so the outcome is settled.
	worker.Stop(false)
	for range worker.Events() {
	}

	switch {
	case workerErr != nil:
		logger.Warn("transcription worker reported an error",
			logging.String("code", workerErr.Code),
			logging.String("detail", workerErr.Detail),
			logging.String(logging.FieldEventType, "transcription_failed"))
		return Result{}, workerErr
	case result.TranscriptPath != "":
		logger.Info("transcription complete",
			logging.String("transcript_path", result.TranscriptPath),
			logging.String(logging.FieldEventType, "transcription_complete"))
		return result, nil
	default:
		logger.Warn("transcription worker exited without a transcript",
			logging.Int("exit_code", exitCode),
			logging.String(logging.FieldEventType, "transcription_failed"))
		return Result{}, &ExitError{Code: exitCode}
	}
}
