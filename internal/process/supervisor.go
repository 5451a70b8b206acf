package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"murmur/internal/logging"
	"murmur/internal/protocol"
	"murmur/internal/services"
)

var commandContext = exec.CommandContext

// State tracks the supervised worker's lifecycle.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateReady
	StateRestarting
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateRestarting:
		return "restarting"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// EventKind discriminates supervisor event variants.
type EventKind int

const (
	// EventMessage carries a parsed protocol message from worker stdout.
	EventMessage EventKind = iota
	// EventExited reports a non-intentional worker exit with its exit code.
	EventExited
	// EventRestarting reports a scheduled respawn after a crash.
	EventRestarting
	// EventFailed is terminal: the restart budget is exhausted.
	EventFailed
)

// Event is delivered on the supervisor's event channel. The channel is closed
// once the supervisor is stopped and all goroutines have drained.
type Event struct {
	Kind    EventKind
	Message protocol.Message
	// ExitCode is set for EventExited (-1 when no code is available).
	ExitCode int
	// Attempt and Delay are set for EventRestarting.
	Attempt int
	Delay   time.Duration
	// Err is set for EventFailed.
	Err error
}

// Options configures a Supervisor.
type Options struct {
	// Name is a stable identifier used in logs and errors, e.g. "recorder".
	Name    string
	Command string
	Args    []string
	Dir     string

	// MaxRestarts bounds consecutive non-intentional exits before the
	// supervisor gives up. 0 means one-shot: never restarted.
	MaxRestarts int
	// BaseDelay is the first backoff delay; attempt n waits BaseDelay*2^(n-1).
	BaseDelay time.Duration
	// ReadyTimeout bounds the wait for the worker's READY line in Start.
	// 0 skips the ready wait entirely (one-shot workers emit no READY).
	ReadyTimeout time.Duration
	// HealthInterval enables liveness checks when positive: a Ready worker
	// whose last stdout line is older than HealthTimeout is killed and
	// restarted through the normal exit path.
	HealthInterval time.Duration
	HealthTimeout  time.Duration
	// StopGrace is the window between the graceful quit command and SIGKILL.
	StopGrace time.Duration

	EventBuffer int
	Logger      *slog.Logger
}

// Supervisor owns at most one live OS process at a time. A new spawn is never
// issued while a previous handle has not reported exit: respawns happen only
// from the exit watcher of the process that died.
type Supervisor struct {
	opts   Options
	logger *slog.Logger

	mu            sync.Mutex
	state         State
	restartCount  int
	intentional   bool
	closed        bool
	cmd           *exec.Cmd
	stdin         io.WriteCloser
	lastHeartbeat time.Time
	exited        chan struct{} // per-spawn, closed when the exit watcher finishes
	changed       chan struct{} // broadcast, swapped on every state change

	events   chan Event
	quit     chan struct{}
	quitOnce sync.Once
	wg       sync.WaitGroup
}

// New constructs a supervisor; the worker is not spawned until Start.
func New(opts Options) *Supervisor {
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 32
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = 2 * time.Second
	}
	return &Supervisor{
		opts:    opts,
		logger:  logging.WithComponent(opts.Logger, "process").With(logging.String(logging.FieldWorker, opts.Name)),
		state:   StateIdle,
		changed: make(chan struct{}),
		events:  make(chan Event, opts.EventBuffer),
		quit:    make(chan struct{}),
	}
}

// Name returns the worker's stable identifier.
func (s *Supervisor) Name() string { return s.opts.Name }

// Events returns the channel carrying worker messages and lifecycle events.
func (s *Supervisor) Events() <-chan Event { return s.events }

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RestartCount returns consecutive non-intentional exits since the last READY.
func (s *Supervisor) RestartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restartCount
}

// Start spawns the worker. When ReadyTimeout is positive it blocks until the
// worker emits READY, returning a timeout error (and killing the process)
// when none arrives; restarts scheduled during the wait are waited through.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("start %s worker: supervisor is %s, not idle", s.opts.Name, state)
	}
	s.setStateLocked(StateStarting)
	err := s.spawnLocked()
	s.mu.Unlock()
	if err != nil {
		s.mu.Lock()
		s.setStateLocked(StateFailed)
		s.mu.Unlock()
		return services.Wrap(services.ErrExternalTool, s.opts.Name, "spawn", s.opts.Command, err)
	}

	if s.opts.HealthInterval > 0 && s.opts.HealthTimeout > 0 {
		s.wg.Add(1)
		go s.healthLoop()
	}

	if s.opts.ReadyTimeout <= 0 {
		return nil
	}
	return s.awaitReady(ctx)
}

func (s *Supervisor) awaitReady(ctx context.Context) error {
	timer := time.NewTimer(s.opts.ReadyTimeout)
	defer timer.Stop()

	for {
		s.mu.Lock()
		state := s.state
		changed := s.changed
		s.mu.Unlock()

		switch state {
		case StateReady:
			return nil
		case StateFailed:
			return services.Wrap(services.ErrExternalTool, s.opts.Name, "start", "worker failed before READY", nil)
		case StateStopped:
			return services.Wrap(services.ErrExternalTool, s.opts.Name, "start", "worker exited before READY", nil)
		}

		select {
		case <-changed:
		case <-timer.C:
			s.Stop(true)
			return services.Wrap(services.ErrTimeout, s.opts.Name, "start",
				fmt.Sprintf("no READY within %s", s.opts.ReadyTimeout), nil)
		case <-ctx.Done():
			s.Stop(true)
			return ctx.Err()
		}
	}
}

// Send writes a command to worker stdin. It returns false without writing when
// the worker is not in a writable state; it never returns an error.
func (s *Supervisor) Send(cmd protocol.Command) bool {
	if !cmd.Valid() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady || s.stdin == nil {
		return false
	}
	if _, err := io.WriteString(s.stdin, protocol.SerializeCommand(cmd)); err != nil {
		s.logger.Warn("stdin write failed",
			logging.String("command", string(cmd)),
			logging.Error(err),
			logging.String(logging.FieldEventType, "worker_stdin_failed"))
		return false
	}
	return true
}

// Stop shuts the worker down. It sets the intentional-shutdown flag, attempts
// a graceful quit command, waits StopGrace, then kills the process. The event
// channel is closed once all supervisor goroutines have drained.
func (s *Supervisor) Stop(force bool) {
	s.mu.Lock()
	s.intentional = true
	stdin := s.stdin
	canQuit := s.state == StateReady
	cmd := s.cmd
	exited := s.exited
	if s.state == StateIdle {
		s.setStateLocked(StateStopped)
	}
	s.mu.Unlock()

	s.quitOnce.Do(func() { close(s.quit) })

	if cmd != nil && cmd.Process != nil {
		if !force && canQuit && stdin != nil {
			_, _ = io.WriteString(stdin, protocol.SerializeCommand(protocol.CommandQuit))
			select {
			case <-exited:
			case <-time.After(s.opts.StopGrace):
			}
		}
		select {
		case <-exited:
		default:
			_ = cmd.Process.Kill()
		}
	}

	s.wg.Wait()

	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	s.mu.Unlock()
}

// spawnLocked starts a new OS process. Callers hold s.mu and have already
// observed the previous process's exit (or there was none).
func (s *Supervisor) spawnLocked() error {
	cmd := commandContext(context.Background(), s.opts.Command, s.opts.Args...)
	cmd.Dir = s.opts.Dir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	s.cmd = cmd
	s.stdin = stdin
	s.lastHeartbeat = time.Now()
	s.exited = make(chan struct{})
	exited := s.exited

	s.logger.Debug("worker spawned",
		logging.String("command", s.opts.Command),
		logging.Int("pid", cmd.Process.Pid))

	// Wait must not run until both pipe readers hit EOF, otherwise it closes
	// the pipes under them and the worker's final lines are lost.
	readDone := make(chan struct{})
	stderrDone := make(chan struct{})

	s.wg.Add(3)
	go s.readLoop(stdout, readDone)
	go s.stderrLoop(stderr, stderrDone)
	go s.waitLoop(cmd, exited, readDone, stderrDone)
	return nil
}

func (s *Supervisor) readLoop(stdout io.Reader, done chan struct{}) {
	defer s.wg.Done()
	defer close(done)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		msg := protocol.ParseLine(line)

		s.mu.Lock()
		s.lastHeartbeat = time.Now()
		if msg.Kind == protocol.KindReady {
			s.restartCount = 0
			s.setStateLocked(StateReady)
		}
		s.mu.Unlock()

		if msg.Kind == protocol.KindUnknown {
			s.logger.Debug("unparsed worker line", logging.String("raw", msg.Raw))
		}
		s.emit(Event{Kind: EventMessage, Message: msg})
	}
}

func (s *Supervisor) stderrLoop(stderr io.Reader, done chan struct{}) {
	defer s.wg.Done()
	defer close(done)
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		s.logger.Warn("worker stderr", logging.String("line", scanner.Text()))
	}
}

// waitLoop reaps the process and drives restart/failure handling. Exactly one
// waitLoop is live per spawned process; a respawn hands ownership to a new one.
func (s *Supervisor) waitLoop(cmd *exec.Cmd, exited, readDone, stderrDone chan struct{}) {
	defer s.wg.Done()
	defer close(exited)

	<-readDone
	<-stderrDone
	waitErr := cmd.Wait()
	code := exitCode(cmd, waitErr)

	s.mu.Lock()
	if s.intentional {
		s.setStateLocked(StateStopped)
		s.mu.Unlock()
		s.logger.Debug("worker stopped", logging.Int("exit_code", code))
		return
	}
	s.mu.Unlock()

	s.emit(Event{Kind: EventExited, ExitCode: code})

	s.mu.Lock()
	if s.restartCount < s.opts.MaxRestarts {
		s.restartCount++
		attempt := s.restartCount
		delay := s.opts.BaseDelay << (attempt - 1)
		s.setStateLocked(StateRestarting)
		s.mu.Unlock()

		s.logger.Warn("worker exited unexpectedly, restarting",
			logging.Int("exit_code", code),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.String(logging.FieldEventType, "worker_restarting"))
		s.emit(Event{Kind: EventRestarting, Attempt: attempt, Delay: delay})

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-s.quit:
			timer.Stop()
			s.mu.Lock()
			s.setStateLocked(StateStopped)
			s.mu.Unlock()
			return
		}

		s.mu.Lock()
		if s.intentional {
			s.setStateLocked(StateStopped)
			s.mu.Unlock()
			return
		}
		s.setStateLocked(StateStarting)
		err := s.spawnLocked()
		if err == nil {
			s.mu.Unlock()
			return
		}
		s.setStateLocked(StateFailed)
		s.mu.Unlock()
		failure := services.Wrap(services.ErrExternalTool, s.opts.Name, "respawn", s.opts.Command, err)
		s.logger.Error("worker respawn failed", logging.Error(err),
			logging.String(logging.FieldEventType, "worker_failed"))
		s.emit(Event{Kind: EventFailed, Err: failure})
		return
	}

	if s.opts.MaxRestarts == 0 && code == 0 {
		// One-shot worker completed cleanly.
		s.setStateLocked(StateStopped)
		s.mu.Unlock()
		return
	}

	restarts := s.restartCount
	s.setStateLocked(StateFailed)
	s.mu.Unlock()

	failure := services.Wrap(services.ErrExternalTool, s.opts.Name, "supervise",
		fmt.Sprintf("worker failed permanently after %d restarts (exit code %d)", restarts, code), waitErr)
	s.logger.Error("worker failed permanently",
		logging.Int("exit_code", code),
		logging.Int("restarts", restarts),
		logging.String(logging.FieldEventType, "worker_failed"),
		logging.String(logging.FieldErrorHint, "check the worker binary and its logs"))
	s.emit(Event{Kind: EventFailed, Err: failure})
}

func (s *Supervisor) healthLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			s.mu.Lock()
			stale := s.state == StateReady && time.Since(s.lastHeartbeat) > s.opts.HealthTimeout
			var cmd *exec.Cmd
			if stale {
				cmd = s.cmd
			}
			s.mu.Unlock()
			if cmd != nil && cmd.Process != nil {
				s.logger.Warn("worker unresponsive, killing for restart",
					logging.Duration("silence", s.opts.HealthTimeout),
					logging.String(logging.FieldEventType, "worker_unhealthy"))
				_ = cmd.Process.Kill()
			}
		}
	}
}

func (s *Supervisor) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.state = state
	close(s.changed)
	s.changed = make(chan struct{})
}

// emitWait bounds how long emit retries delivery of a protocol message when
// the consumer lags behind the buffer. Lifecycle events are dropped right
// away so shutdown and restart paths never stall.
const (
	emitWait         = 500 * time.Millisecond
	emitPollInterval = 5 * time.Millisecond
)

// emit delivers an event to the consumer. Protocol messages carry payloads a
// capture depends on (RECORDING_STOPPED, TRANSCRIPT_SAVED), so a full buffer
// is retried for up to emitWait before the message is dropped with an error.
// The lock is released between attempts so Stop and Send stay responsive.
func (s *Supervisor) emit(ev Event) {
	deadline := time.Now().Add(emitWait)
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		select {
		case s.events <- ev:
			s.mu.Unlock()
			return
		default:
		}
		s.mu.Unlock()

		if ev.Kind == EventMessage && time.Now().Before(deadline) {
			time.Sleep(emitPollInterval)
			continue
		}
		if ev.Kind == EventMessage {
			s.logger.Error("event buffer full, dropping worker message",
				logging.Int("kind", int(ev.Kind)),
				logging.String(logging.FieldEventType, "event_dropped"),
				logging.String(logging.FieldImpact, "a capture or transcript notification may be lost"))
		} else {
			s.logger.Warn("event buffer full, dropping event",
				logging.Int("kind", int(ev.Kind)),
				logging.String(logging.FieldEventType, "event_dropped"))
		}
		return
	}
}

func exitCode(cmd *exec.Cmd, err error) int {
	if err == nil {
		if cmd.ProcessState != nil {
			return cmd.ProcessState.ExitCode()
		}
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
