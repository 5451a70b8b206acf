package recorder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"murmur/internal/logging"
	"murmur/internal/process"
	"murmur/internal/protocol"
)

// ErrNotReady is returned when a capture command is issued while the recorder
// worker is not in a writable state. Callers must not queue or retry; the
// worker confirms readiness asynchronously via its READY line.
var ErrNotReady = errors.New("recorder worker is not ready")

// EventKind discriminates session event variants.
type EventKind int

const (
	// EventRecordingStarted confirms the worker began capturing.
	EventRecordingStarted EventKind = iota
	// EventRecordingComplete carries the path of the captured audio file.
	EventRecordingComplete
	// EventRecordingEmpty reports a stop that captured no audio.
	EventRecordingEmpty
	// EventRecorderError forwards a worker-reported, non-fatal error.
	EventRecorderError
	// EventRestarting forwards a supervisor restart cycle.
	EventRestarting
	// EventFailed is terminal: the worker exhausted its restart budget.
	EventFailed
)

// Event is delivered on the session's event channel.
type Event struct {
	Kind      EventKind
	AudioPath string
	Code      string
	Detail    string
	Attempt   int
	Delay     time.Duration
	Err       error
}

// worker is the supervised-process surface the session depends on.
type worker interface {
	Start(ctx context.Context) error
	Stop(force bool)
	Send(cmd protocol.Command) bool
	State() process.State
	Events() <-chan process.Event
}

// Session controls audio capture through one long-lived worker. It is created
// once at daemon start and lives until shutdown.
type Session struct {
	proc   worker
	logger *slog.Logger

	mu        sync.Mutex
	recording bool
	started   bool

	events chan Event
	done   chan struct{}
}

// NewSession wires a session around an already-constructed supervisor. The
// worker is not spawned until Start.
func NewSession(proc worker, logger *slog.Logger) *Session {
	return &Session{
		proc:   proc,
		logger: logging.WithComponent(logger, "recorder"),
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}
}

// Start spawns the recorder worker and begins translating its events. It
// blocks until the worker reports READY or the supervisor's ready wait fails.
func (s *Session) Start(ctx context.Context) error {
	if err := s.proc.Start(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	go s.pump()
	return nil
}

// Events returns the channel of session events. It is closed when the worker's
// event stream ends after Close.
func (s *Session) Events() <-chan Event { return s.events }

// IsRecording reports whether a capture is believed to be in flight. The flag
// is optimistic: set when the start command is written, confirmed later by
// the worker's own messages.
func (s *Session) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// State exposes the underlying worker state for status reporting.
func (s *Session) State() process.State { return s.proc.State() }

// StartRecording asks the worker to begin capture. It fails with ErrNotReady
// when the worker is not ready and performs no stdin write in that case.
func (s *Session) StartRecording() error {
	if s.proc.State() != process.StateReady {
		return ErrNotReady
	}
	if !s.proc.Send(protocol.CommandStart) {
		return ErrNotReady
	}
	s.mu.Lock()
	s.recording = true
	s.mu.Unlock()
	s.logger.Info("capture start requested", logging.String(logging.FieldEventType, "recording_start"))
	return nil
}

// StopRecording asks the worker to end capture. The recording flag clears
// immediately on send; the worker confirms asynchronously with a
// RECORDING_STOPPED line carrying the artifact path.
func (s *Session) StopRecording() error {
	if s.proc.State() != process.StateReady {
		return ErrNotReady
	}
	if !s.proc.Send(protocol.CommandStop) {
		return ErrNotReady
	}
	s.mu.Lock()
	s.recording = false
	s.mu.Unlock()
	s.logger.Info("capture stop requested", logging.String(logging.FieldEventType, "recording_stop"))
	return nil
}

// Close shuts the worker down and waits for the event pump to drain.
func (s *Session) Close(force bool) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	s.proc.Stop(force)
	if started {
		<-s.done
	} else {
		close(s.events)
	}
}

// pump translates supervisor events into session events until the worker's
// event channel closes.
func (s *Session) pump() {
	defer close(s.done)
	defer close(s.events)

	for ev := range s.proc.Events() {
		switch ev.Kind {
		case process.EventMessage:
			s.handleMessage(ev.Message)
		case process.EventExited:
			// A crash ends any in-flight capture; restart or failure follows.
			s.setRecording(false)
		case process.EventRestarting:
			s.setRecording(false)
			s.emit(Event{Kind: EventRestarting, Attempt: ev.Attempt, Delay: ev.Delay})
		case process.EventFailed:
			s.setRecording(false)
			s.emit(Event{Kind: EventFailed, Err: ev.Err})
		}
	}
}

func (s *Session) handleMessage(msg protocol.Message) {
	switch msg.Kind {
	case protocol.KindReady:
		s.logger.Debug("recorder worker ready")
	case protocol.KindRecordingStarted:
		s.setRecording(true)
		s.emit(Event{Kind: EventRecordingStarted})
	case protocol.KindRecordingStopped:
		s.setRecording(false)
		if msg.NoAudio {
			s.logger.Info("recording stopped with no audio")
			s.emit(Event{Kind: EventRecordingEmpty})
			return
		}
		s.emit(Event{Kind: EventRecordingComplete, AudioPath: msg.AudioPath})
	case protocol.KindError:
		s.setRecording(false)
		s.logger.Warn("recorder worker error",
			logging.String("code", msg.Code),
			logging.String("detail", msg.Detail),
			logging.String(logging.FieldEventType, "recorder_error"))
		s.emit(Event{Kind: EventRecorderError, Code: msg.Code, Detail: msg.Detail})
	}
}

func (s *Session) setRecording(v bool) {
	s.mu.Lock()
	s.recording = v
	s.mu.Unlock()
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("session event buffer full, dropping event",
			logging.Int("kind", int(ev.Kind)))
	}
}
