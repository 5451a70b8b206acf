package process

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"murmur/internal/logging"
	"murmur/internal/protocol"
	"murmur/internal/services"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func drainEvents(t *testing.T, sup *Supervisor) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-sup.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("event channel never closed")
		}
	}
}

func waitForState(t *testing.T, sup *Supervisor, want State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if sup.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", sup.State(), want)
}

func TestStartReadySendStop(t *testing.T) {
	script := writeScript(t, `echo READY
while read cmd; do
  case "$cmd" in
    start) echo RECORDING_STARTED ;;
    stop) echo "RECORDING_STOPPED:/tmp/memo.wav" ;;
    quit) exit 0 ;;
  esac
done
`)
	sup := New(Options{
		Name:         "recorder",
		Command:      script,
		ReadyTimeout: 5 * time.Second,
		StopGrace:    2 * time.Second,
		Logger:       logging.NewNop(),
	})

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := sup.State(); got != StateReady {
		t.Fatalf("state after Start = %s, want ready", got)
	}

	if !sup.Send(protocol.CommandStart) {
		t.Fatal("Send(start) returned false on a ready worker")
	}
	if !sup.Send(protocol.CommandStop) {
		t.Fatal("Send(stop) returned false on a ready worker")
	}

	sup.Stop(false)
	if got := sup.State(); got != StateStopped {
		t.Fatalf("state after Stop = %s, want stopped", got)
	}

	events := drainEvents(t, sup)
	var kinds []protocol.Kind
	for _, ev := range events {
		if ev.Kind == EventMessage {
			kinds = append(kinds, ev.Message.Kind)
		} else {
			t.Fatalf("unexpected lifecycle event %d during clean run", ev.Kind)
		}
	}
	want := []protocol.Kind{protocol.KindReady, protocol.KindRecordingStarted, protocol.KindRecordingStopped}
	if len(kinds) != len(want) {
		t.Fatalf("message kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("message kinds = %v, want %v", kinds, want)
		}
	}
}

func TestStartReadyTimeout(t *testing.T) {
	script := writeScript(t, "sleep 10\n")
	sup := New(Options{
		Name:         "recorder",
		Command:      script,
		ReadyTimeout: 100 * time.Millisecond,
		Logger:       logging.NewNop(),
	})

	err := sup.Start(context.Background())
	if err == nil {
		t.Fatal("expected ready timeout error")
	}
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	drainEvents(t, sup)
}

func TestRestartBackoffAndReadyReset(t *testing.T) {
	counter := filepath.Join(t.TempDir(), "count")
	script := writeScript(t, `count=$(cat "$1" 2>/dev/null || echo 0)
count=$((count+1))
echo "$count" > "$1"
if [ "$count" -le 2 ]; then
  exit 1
fi
echo READY
while read cmd; do
  [ "$cmd" = quit ] && exit 0
done
`)
	sup := New(Options{
		Name:         "recorder",
		Command:      script,
		Args:         []string{counter},
		MaxRestarts:  5,
		BaseDelay:    10 * time.Millisecond,
		ReadyTimeout: 5 * time.Second,
		Logger:       logging.NewNop(),
	})

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := sup.RestartCount(); got != 0 {
		t.Fatalf("restart count after READY = %d, want 0 (reset)", got)
	}

	sup.Stop(false)
	events := drainEvents(t, sup)

	var restarts []Event
	exits := 0
	for _, ev := range events {
		switch ev.Kind {
		case EventRestarting:
			restarts = append(restarts, ev)
		case EventExited:
			exits++
			if ev.ExitCode != 1 {
				t.Fatalf("exit code = %d, want 1", ev.ExitCode)
			}
		case EventFailed:
			t.Fatalf("unexpected failure event: %v", ev.Err)
		}
	}
	if exits != 2 {
		t.Fatalf("exited events = %d, want 2", exits)
	}
	if len(restarts) != 2 {
		t.Fatalf("restarting events = %d, want 2", len(restarts))
	}
	if restarts[0].Attempt != 1 || restarts[0].Delay != 10*time.Millisecond {
		t.Fatalf("first restart = attempt %d delay %s, want attempt 1 delay 10ms",
			restarts[0].Attempt, restarts[0].Delay)
	}
	if restarts[1].Attempt != 2 || restarts[1].Delay != 20*time.Millisecond {
		t.Fatalf("second restart = attempt %d delay %s, want attempt 2 delay 20ms",
			restarts[1].Attempt, restarts[1].Delay)
	}
}

func TestMaxRestartsExhausted(t *testing.T) {
	script := writeScript(t, "exit 3\n")
	sup := New(Options{
		Name:         "recorder",
		Command:      script,
		MaxRestarts:  1,
		BaseDelay:    5 * time.Millisecond,
		ReadyTimeout: 5 * time.Second,
		Logger:       logging.NewNop(),
	})

	err := sup.Start(context.Background())
	if err == nil {
		t.Fatal("expected Start to fail once the restart budget is exhausted")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("error = %v, want ErrExternalTool", err)
	}
	if got := sup.State(); got != StateFailed {
		t.Fatalf("state = %s, want failed", got)
	}

	sup.Stop(true)
	events := drainEvents(t, sup)

	var failed *Event
	exits, restarts := 0, 0
	for i, ev := range events {
		switch ev.Kind {
		case EventExited:
			exits++
			if ev.ExitCode != 3 {
				t.Fatalf("exit code = %d, want 3", ev.ExitCode)
			}
		case EventRestarting:
			restarts++
		case EventFailed:
			failed = &events[i]
		}
	}
	if exits != 2 || restarts != 1 {
		t.Fatalf("exits=%d restarts=%d, want 2 and 1", exits, restarts)
	}
	if failed == nil {
		t.Fatal("missing failed event")
	}
	if !errors.Is(failed.Err, services.ErrExternalTool) {
		t.Fatalf("failure error = %v, want ErrExternalTool", failed.Err)
	}
	// Failed is terminal: no spawn after the failure event.
	if sup.State() != StateFailed {
		t.Fatalf("state after failure = %s, want failed", sup.State())
	}
}

func TestOneShotCleanExit(t *testing.T) {
	script := writeScript(t, `echo "TRANSCRIPT_SAVED:/tmp/memo.md"
echo "TRANSCRIPT_TXT:/tmp/memo.txt"
exit 0
`)
	sup := New(Options{
		Name:    "transcriber",
		Command: script,
		Logger:  logging.NewNop(),
	})

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForState(t, sup, StateStopped)

	sup.Stop(false)
	events := drainEvents(t, sup)

	var sawSaved, sawText, sawExit bool
	for _, ev := range events {
		switch {
		case ev.Kind == EventMessage && ev.Message.Kind == protocol.KindTranscriptSaved:
			sawSaved = true
		case ev.Kind == EventMessage && ev.Message.Kind == protocol.KindTranscriptText:
			sawText = true
		case ev.Kind == EventExited:
			sawExit = true
			if ev.ExitCode != 0 {
				t.Fatalf("exit code = %d, want 0", ev.ExitCode)
			}
		case ev.Kind == EventFailed:
			t.Fatalf("unexpected failure: %v", ev.Err)
		}
	}
	if !sawSaved || !sawText || !sawExit {
		t.Fatalf("missing events: saved=%v text=%v exit=%v", sawSaved, sawText, sawExit)
	}
}

func TestOneShotFailureExit(t *testing.T) {
	script := writeScript(t, `echo "ERROR:TranscriptionFailed:model not found"
exit 7
`)
	sup := New(Options{
		Name:    "transcriber",
		Command: script,
		Logger:  logging.NewNop(),
	})

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForState(t, sup, StateFailed)

	sup.Stop(true)
	events := drainEvents(t, sup)

	var sawError, sawFailed bool
	for _, ev := range events {
		switch {
		case ev.Kind == EventMessage && ev.Message.Kind == protocol.KindError:
			sawError = true
			if ev.Message.Code != "TranscriptionFailed" {
				t.Fatalf("error code = %q", ev.Message.Code)
			}
		case ev.Kind == EventExited:
			if ev.ExitCode != 7 {
				t.Fatalf("exit code = %d, want 7", ev.ExitCode)
			}
		case ev.Kind == EventFailed:
			sawFailed = true
		}
	}
	if !sawError || !sawFailed {
		t.Fatalf("missing events: error=%v failed=%v", sawError, sawFailed)
	}
}

func TestSendRequiresReadyState(t *testing.T) {
	sup := New(Options{Name: "recorder", Command: "/bin/true", Logger: logging.NewNop()})
	if sup.Send(protocol.CommandStart) {
		t.Fatal("Send succeeded on an idle supervisor")
	}
	if sup.Send(protocol.Command("reboot")) {
		t.Fatal("Send accepted a command outside the protocol vocabulary")
	}
	sup.Stop(true)
	drainEvents(t, sup)
}

func TestStopForceKillsPromptly(t *testing.T) {
	script := writeScript(t, `echo READY
exec sleep 60
`)
	sup := New(Options{
		Name:         "recorder",
		Command:      script,
		ReadyTimeout: 5 * time.Second,
		StopGrace:    10 * time.Second,
		Logger:       logging.NewNop(),
	})

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	begin := time.Now()
	sup.Stop(true)
	if elapsed := time.Since(begin); elapsed > 3*time.Second {
		t.Fatalf("force stop took %s", elapsed)
	}
	if got := sup.State(); got != StateStopped {
		t.Fatalf("state = %s, want stopped", got)
	}
	drainEvents(t, sup)
}

func TestHealthCheckKillsSilentWorker(t *testing.T) {
	script := writeScript(t, `echo READY
exec sleep 60
`)
	sup := New(Options{
		Name:           "recorder",
		Command:        script,
		ReadyTimeout:   5 * time.Second,
		HealthInterval: 20 * time.Millisecond,
		HealthTimeout:  60 * time.Millisecond,
		Logger:         logging.NewNop(),
	})

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// MaxRestarts is 0, so the health kill drives the worker to failed.
	waitForState(t, sup, StateFailed)

	sup.Stop(true)
	events := drainEvents(t, sup)

	sawExit := false
	for _, ev := range events {
		if ev.Kind == EventExited {
			sawExit = true
			if ev.ExitCode == 0 {
				t.Fatal("expected a non-zero exit code from the killed worker")
			}
		}
	}
	if !sawExit {
		t.Fatal("missing exited event after health kill")
	}
}

func TestEmitRetriesMessageUntilConsumerDrains(t *testing.T) {
	sup := New(Options{Name: "emit", Command: "/bin/true", EventBuffer: 1})

	sup.emit(Event{Kind: EventMessage, Message: protocol.Message{Kind: protocol.KindRecordingStarted}})

	delivered := make(chan struct{})
	go func() {
		sup.emit(Event{Kind: EventMessage, Message: protocol.Message{
			Kind:      protocol.KindRecordingStopped,
			AudioPath: "/tmp/memo.wav",
		}})
		close(delivered)
	}()

	select {
	case <-delivered:
		t.Fatal("message emitted despite full buffer and no consumer")
	case <-time.After(50 * time.Millisecond):
	}

	<-sup.Events()

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("message not delivered after consumer drained")
	}

	ev := <-sup.Events()
	if ev.Message.AudioPath != "/tmp/memo.wav" {
		t.Fatalf("event = %+v, want the retried stop message", ev)
	}
}

func TestEmitDropsLifecycleEventImmediately(t *testing.T) {
	sup := New(Options{Name: "emit", Command: "/bin/true", EventBuffer: 1})

	sup.emit(Event{Kind: EventMessage, Message: protocol.Message{Kind: protocol.KindRecordingStarted}})

	done := make(chan struct{})
	go func() {
		sup.emit(Event{Kind: EventRestarting, Attempt: 1})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("lifecycle emit blocked on a full buffer")
	}
}
