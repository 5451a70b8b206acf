package ipc

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"murmur/internal/config"
	"murmur/internal/daemon"
	"murmur/internal/logging"
	"murmur/internal/notifications"
	"murmur/internal/recordings"
	"murmur/internal/testsupport"
	"murmur/internal/workflow"
)

type fakeOrchestrator struct {
	recording bool
}

func (f *fakeOrchestrator) Start(context.Context) error { return nil }
func (f *fakeOrchestrator) Stop()                       {}
func (f *fakeOrchestrator) StartRecording() error       { f.recording = true; return nil }
func (f *fakeOrchestrator) StopRecording() error        { f.recording = false; return nil }
func (f *fakeOrchestrator) TranscribeFile(_ context.Context, audioPath string) (*recordings.Recording, error) {
	return &recordings.Recording{ID: 1, Title: "manual", AudioPath: audioPath, TranscriptPath: audioPath + ".md"}, nil
}
func (f *fakeOrchestrator) Status() workflow.Status {
	return workflow.Status{Recording: f.recording, RecorderState: "ready"}
}

type harness struct {
	cfg    *config.Config
	store  *recordings.Store
	daemon *daemon.Daemon
	client *Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)

	store, err := recordings.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	d := daemon.New(cfg, &fakeOrchestrator{}, store, notifications.NewService(cfg), logging.NewNop())
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	t.Cleanup(d.Stop)

	socket := filepath.Join(t.TempDir(), "murmurd.sock")
	server, err := NewServer(ctx, socket, d, logging.NewNop())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	server.Serve()
	t.Cleanup(server.Close)

	client, err := Dial(socket)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return &harness{cfg: cfg, store: store, daemon: d, client: client}
}

func TestStatusRoundtrip(t *testing.T) {
	h := newHarness(t)

	status, err := h.client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running {
		t.Fatal("daemon not reported running")
	}
	if status.RecorderState != "ready" {
		t.Fatalf("recorder state = %q", status.RecorderState)
	}
	if status.PID != os.Getpid() {
		t.Fatalf("pid = %d, want %d", status.PID, os.Getpid())
	}
	if status.DatabasePath == "" || status.LogPath == "" {
		t.Fatalf("missing paths: %+v", status)
	}
}

func TestRecordStartStop(t *testing.T) {
	h := newHarness(t)

	started, err := h.client.RecordStart()
	if err != nil {
		t.Fatalf("RecordStart: %v", err)
	}
	if !started.Started {
		t.Fatalf("start refused: %s", started.Message)
	}

	status, err := h.client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Recording {
		t.Fatal("recording flag not visible over IPC")
	}

	stopped, err := h.client.RecordStop()
	if err != nil {
		t.Fatalf("RecordStop: %v", err)
	}
	if !stopped.Stopped {
		t.Fatalf("stop refused: %s", stopped.Message)
	}
}

func TestRecordingsRoundtrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	saved, err := h.store.Save(ctx, recordings.NewRecording{
		Title: "standup notes", AudioPath: "/a/standup.wav",
		TranscriptPath: "/t/standup.md", DurationSeconds: 95,
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	list, err := h.client.RecordingsList()
	if err != nil {
		t.Fatalf("RecordingsList: %v", err)
	}
	if len(list.Recordings) != 1 || list.Recordings[0].Title != "standup notes" {
		t.Fatalf("list = %+v", list.Recordings)
	}

	desc, err := h.client.RecordingsDescribe(saved.ID)
	if err != nil {
		t.Fatalf("RecordingsDescribe: %v", err)
	}
	if desc.Recording.DurationSeconds != 95 {
		t.Fatalf("describe = %+v", desc.Recording)
	}

	removed, err := h.client.RecordingsRemove(saved.ID, false)
	if err != nil {
		t.Fatalf("RecordingsRemove: %v", err)
	}
	if !removed.Removed || removed.Recording.ID != saved.ID {
		t.Fatalf("remove = %+v", removed)
	}

	if _, err := h.client.RecordingsDescribe(saved.ID); err == nil {
		t.Fatal("describe succeeded after removal")
	}
}

func TestRecordingsDescribeRejectsBadID(t *testing.T) {
	h := newHarness(t)
	if _, err := h.client.RecordingsDescribe(0); err == nil || !strings.Contains(err.Error(), "invalid") {
		t.Fatalf("error = %v, want invalid id", err)
	}
}

func TestTranscribeOverIPC(t *testing.T) {
	h := newHarness(t)

	resp, err := h.client.Transcribe("/a/manual.wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if resp.Recording.TranscriptPath != "/a/manual.wav.md" {
		t.Fatalf("recording = %+v", resp.Recording)
	}

	if _, err := h.client.Transcribe(""); err == nil {
		t.Fatal("empty path accepted")
	}
}

func TestLogTailOverIPC(t *testing.T) {
	h := newHarness(t)

	logPath := h.cfg.LogFilePath()
	if err := os.WriteFile(logPath, []byte("line one\nline two\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	resp, err := h.client.LogTail(LogTailRequest{Offset: 0})
	if err != nil {
		t.Fatalf("LogTail: %v", err)
	}
	if len(resp.Lines) != 2 || resp.Lines[1] != "line two" {
		t.Fatalf("lines = %v", resp.Lines)
	}
}
