package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"murmur/internal/config"
	"murmur/internal/logging"
	"murmur/internal/process"
	"murmur/internal/recorder"
	"murmur/internal/recordings"
	"murmur/internal/transcribe"
)

type fakeSession struct {
	events    chan recorder.Event
	recording bool
	state     process.State
	closed    bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{events: make(chan recorder.Event, 16), state: process.StateReady}
}

func (f *fakeSession) Start(context.Context) error { return nil }
func (f *fakeSession) Close(bool) {
	if !f.closed {
		f.closed = true
		close(f.events)
	}
}
func (f *fakeSession) StartRecording() error         { f.recording = true; return nil }
func (f *fakeSession) StopRecording() error          { f.recording = false; return nil }
func (f *fakeSession) IsRecording() bool             { return f.recording }
func (f *fakeSession) State() process.State          { return f.state }
func (f *fakeSession) Events() <-chan recorder.Event { return f.events }

type fakeTranscriber struct {
	mu     sync.Mutex
	runs   []string
	result transcribe.Result
	err    error
}

func (f *fakeTranscriber) Run(_ context.Context, audioPath string) (transcribe.Result, error) {
	f.mu.Lock()
	f.runs = append(f.runs, audioPath)
	f.mu.Unlock()
	if f.err != nil {
		return transcribe.Result{}, f.err
	}
	return f.result, nil
}

func (f *fakeTranscriber) Active() []string { return nil }

func (f *fakeTranscriber) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

type fakeLibrary struct {
	mu    sync.Mutex
	saved []recordings.NewRecording
	err   error
}

func (f *fakeLibrary) Save(_ context.Context, rec recordings.NewRecording) (*recordings.Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.saved = append(f.saved, rec)
	return &recordings.Recording{
		ID: int64(len(f.saved)), Title: rec.Title,
		AudioPath: rec.AudioPath, TranscriptPath: rec.TranscriptPath,
	}, nil
}

func (f *fakeLibrary) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeNotifier) record(name string) error {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
	return nil
}

func (f *fakeNotifier) NotifyRecordingStarted(context.Context) error { return f.record("started") }
func (f *fakeNotifier) NotifyRecordingComplete(context.Context, string) error {
	return f.record("complete")
}
func (f *fakeNotifier) NotifyTranscriptionComplete(context.Context, string, string) error {
	return f.record("transcribed")
}
func (f *fakeNotifier) NotifyTranscriptionFailed(context.Context, string, error) error {
	return f.record("transcription_failed")
}
func (f *fakeNotifier) NotifyRecorderError(context.Context, string, string) error {
	return f.record("recorder_error")
}
func (f *fakeNotifier) NotifyRecorderRestarting(context.Context, int, time.Duration) error {
	return f.record("recorder_restarting")
}
func (f *fakeNotifier) NotifyRecorderFailed(context.Context, error) error {
	return f.record("recorder_failed")
}
func (f *fakeNotifier) TestNotification(context.Context) error { return f.record("test") }

func (f *fakeNotifier) has(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == name {
			return true
		}
	}
	return false
}

func newTestManager(t *testing.T, sess *fakeSession, jobs *fakeTranscriber, lib *fakeLibrary, notifier *fakeNotifier) *Manager {
	t.Helper()
	cfg := config.Default()
	m := NewManager(&cfg, sess, jobs, lib, notifier, logging.NewNop())
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return m
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memo.wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

func TestRecordingCompleteTriggersTranscription(t *testing.T) {
	sess := newFakeSession()
	jobs := &fakeTranscriber{result: transcribe.Result{TranscriptPath: "/t/memo.md"}}
	lib := &fakeLibrary{}
	notifier := &fakeNotifier{}
	m := newTestManager(t, sess, jobs, lib, notifier)

	audio := writeAudio(t)
	sess.events <- recorder.Event{Kind: recorder.EventRecordingComplete, AudioPath: audio}

	waitFor(t, "memo saved", func() bool { return lib.savedCount() == 1 })
	if jobs.runCount() != 1 {
		t.Fatalf("job runs = %d, want 1", jobs.runCount())
	}
	if !notifier.has("transcribed") {
		t.Fatal("missing transcription complete notification")
	}

	m.Stop()
	status := m.Status()
	if status.JobsSucceeded != 1 || status.JobsFailed != 0 {
		t.Fatalf("status = %+v", status)
	}
}

func TestEmptyRecordingSkipsTranscription(t *testing.T) {
	sess := newFakeSession()
	jobs := &fakeTranscriber{}
	m := newTestManager(t, sess, jobs, &fakeLibrary{}, &fakeNotifier{})

	sess.events <- recorder.Event{Kind: recorder.EventRecordingEmpty}
	m.Stop()

	if jobs.runCount() != 0 {
		t.Fatalf("job runs = %d, want 0", jobs.runCount())
	}
}

func TestJobFailureIsSwallowed(t *testing.T) {
	sess := newFakeSession()
	jobs := &fakeTranscriber{err: errors.New("model not found")}
	lib := &fakeLibrary{}
	notifier := &fakeNotifier{}
	m := newTestManager(t, sess, jobs, lib, notifier)

	audio := writeAudio(t)
	sess.events <- recorder.Event{Kind: recorder.EventRecordingComplete, AudioPath: audio}
	waitFor(t, "failure notification", func() bool { return notifier.has("transcription_failed") })

	// The session keeps serving new captures after the failure.
	jobs.err = nil
	jobs.result = transcribe.Result{TranscriptPath: "/t/next.md"}
	sess.events <- recorder.Event{Kind: recorder.EventRecordingComplete, AudioPath: audio}
	waitFor(t, "second memo saved", func() bool { return lib.savedCount() == 1 })

	m.Stop()
	status := m.Status()
	if status.JobsFailed != 1 || status.JobsSucceeded != 1 {
		t.Fatalf("status = %+v", status)
	}
	if status.LastError == "" {
		t.Fatal("last error not recorded")
	}
}

func TestRecorderFailureSetsStatusAndNotifies(t *testing.T) {
	sess := newFakeSession()
	notifier := &fakeNotifier{}
	m := newTestManager(t, sess, &fakeTranscriber{}, &fakeLibrary{}, notifier)

	sess.events <- recorder.Event{Kind: recorder.EventFailed, Err: errors.New("restart budget exhausted")}
	waitFor(t, "failure notification", func() bool { return notifier.has("recorder_failed") })

	m.Stop()
	status := m.Status()
	if !status.RecorderFailed {
		t.Fatal("recorder failure not reflected in status")
	}
}

func TestTranscribeFileStoresRecord(t *testing.T) {
	sess := newFakeSession()
	jobs := &fakeTranscriber{result: transcribe.Result{TranscriptPath: "/t/manual.md"}}
	lib := &fakeLibrary{}
	m := newTestManager(t, sess, jobs, lib, &fakeNotifier{})
	defer m.Stop()

	audio := writeAudio(t)
	rec, err := m.TranscribeFile(context.Background(), audio)
	if err != nil {
		t.Fatalf("TranscribeFile: %v", err)
	}
	if rec.TranscriptPath != "/t/manual.md" {
		t.Fatalf("record = %+v", rec)
	}
	// Falls back to the audio file name when the transcript is unreadable.
	if rec.Title != filepath.Base(audio) {
		t.Fatalf("title = %q, want %q", rec.Title, filepath.Base(audio))
	}
}
