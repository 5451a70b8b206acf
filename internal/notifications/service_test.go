package notifications

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"murmur/internal/config"
)

type captured struct {
	title    string
	priority string
	tags     string
	body     string
}

func newCaptureServer(t *testing.T) (*httptest.Server, func() []captured) {
	t.Helper()
	var mu sync.Mutex
	var got []captured

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, captured{
			title:    r.Header.Get("Title"),
			priority: r.Header.Get("Priority"),
			tags:     r.Header.Get("Tags"),
			body:     string(body),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	return server, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), got...)
	}
}

func serviceFor(topic string, recording, transcription, errs bool) Service {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = topic
	cfg.Notifications.Recording = recording
	cfg.Notifications.Transcription = transcription
	cfg.Notifications.Errors = errs
	return NewService(&cfg)
}

func TestNewServiceWithoutTopicIsNoop(t *testing.T) {
	svc := serviceFor("", true, true, true)
	if _, ok := svc.(noopService); !ok {
		t.Fatalf("service type = %T, want noop", svc)
	}
	if err := svc.NotifyRecorderFailed(context.Background(), errors.New("x")); err != nil {
		t.Fatalf("noop returned error: %v", err)
	}
}

func TestTranscriptionCompletePayload(t *testing.T) {
	server, requests := newCaptureServer(t)
	svc := serviceFor(server.URL, false, true, true)

	err := svc.NotifyTranscriptionComplete(context.Background(), "Grocery list", "/t/memo.md")
	if err != nil {
		t.Fatalf("notify: %v", err)
	}

	got := requests()
	if len(got) != 1 {
		t.Fatalf("requests = %d, want 1", len(got))
	}
	if got[0].title != "Murmur - Transcript Ready" {
		t.Fatalf("title = %q", got[0].title)
	}
	if !strings.Contains(got[0].body, "Grocery list") || !strings.Contains(got[0].body, "/t/memo.md") {
		t.Fatalf("body = %q", got[0].body)
	}
}

func TestEventTogglesSuppressSends(t *testing.T) {
	server, requests := newCaptureServer(t)
	svc := serviceFor(server.URL, false, false, false)
	ctx := context.Background()

	if err := svc.NotifyRecordingStarted(ctx); err != nil {
		t.Fatalf("recording started: %v", err)
	}
	if err := svc.NotifyTranscriptionComplete(ctx, "t", "p"); err != nil {
		t.Fatalf("transcription complete: %v", err)
	}
	if err := svc.NotifyRecorderError(ctx, "MicrophoneAccess", "denied"); err != nil {
		t.Fatalf("recorder error: %v", err)
	}
	if err := svc.NotifyRecorderRestarting(ctx, 1, time.Second); err != nil {
		t.Fatalf("recorder restarting: %v", err)
	}
	if got := requests(); len(got) != 0 {
		t.Fatalf("suppressed events were sent: %+v", got)
	}

	// Permanent recorder failure ignores the toggles.
	if err := svc.NotifyRecorderFailed(ctx, errors.New("exhausted")); err != nil {
		t.Fatalf("recorder failed: %v", err)
	}
	got := requests()
	if len(got) != 1 {
		t.Fatalf("requests = %d, want 1", len(got))
	}
	if got[0].priority != "urgent" {
		t.Fatalf("priority = %q, want urgent", got[0].priority)
	}
}

func TestSendReportsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "topic quota exceeded", http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	svc := serviceFor(server.URL, true, true, true)
	err := svc.TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error from non-2xx response")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Fatalf("error = %v, want status code mention", err)
	}
}
