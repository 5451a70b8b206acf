// Package notifications pushes user-facing events to an ntfy topic. When no
// topic is configured every method is a no-op.
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"murmur/internal/config"
)

const userAgent = "Murmur-Go/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyRecordingStarted(ctx context.Context) error
	NotifyRecordingComplete(ctx context.Context, audioPath string) error
	NotifyTranscriptionComplete(ctx context.Context, title, transcriptPath string) error
	NotifyTranscriptionFailed(ctx context.Context, audioPath string, err error) error
	NotifyRecorderError(ctx context.Context, code, detail string) error
	NotifyRecorderRestarting(ctx context.Context, attempt int, delay time.Duration) error
	NotifyRecorderFailed(ctx context.Context, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:      topic,
		client:        &http.Client{Timeout: timeout},
		recording:     cfg.Notifications.Recording,
		transcription: cfg.Notifications.Transcription,
		errors:        cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint      string
	client        *http.Client
	recording     bool
	transcription bool
	errors        bool
}

func (n *ntfyService) NotifyRecordingStarted(ctx context.Context) error {
	if !n.recording {
		return nil
	}
	data := payload{
		title:   "Murmur - Recording",
		message: "🎙️ Recording started",
		tags:    []string{"murmur", "recording", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRecordingComplete(ctx context.Context, audioPath string) error {
	if !n.recording {
		return nil
	}
	data := payload{
		title:   "Murmur - Recording Complete",
		message: fmt.Sprintf("Recording saved: %s", strings.TrimSpace(audioPath)),
		tags:    []string{"murmur", "recording", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTranscriptionComplete(ctx context.Context, title, transcriptPath string) error {
	if !n.transcription {
		return nil
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled"
	}
	message := fmt.Sprintf("✅ Transcribed: %s", title)
	if transcriptPath = strings.TrimSpace(transcriptPath); transcriptPath != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, transcriptPath)
	}
	data := payload{
		title:   "Murmur - Transcript Ready",
		message: message,
		tags:    []string{"murmur", "transcription", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTranscriptionFailed(ctx context.Context, audioPath string, err error) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Transcription failed")
	if audioPath = strings.TrimSpace(audioPath); audioPath != "" {
		builder.WriteString(" for ")
		builder.WriteString(audioPath)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	data := payload{
		title:    "Murmur - Transcription Failed",
		message:  builder.String(),
		tags:     []string{"murmur", "transcription", "error"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRecorderError(ctx context.Context, code, detail string) error {
	if !n.errors {
		return nil
	}
	code = strings.TrimSpace(code)
	if code == "" {
		code = "UNKNOWN"
	}
	data := payload{
		title:   "Murmur - Recorder Error",
		message: fmt.Sprintf("Recorder reported %s: %s", code, strings.TrimSpace(detail)),
		tags:    []string{"murmur", "recorder", "error"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRecorderRestarting(ctx context.Context, attempt int, delay time.Duration) error {
	if !n.errors {
		return nil
	}
	data := payload{
		title:   "Murmur - Recorder Restarting",
		message: fmt.Sprintf("Recorder crashed, restart attempt %d in %s", attempt, delay.Round(time.Millisecond)),
		tags:    []string{"murmur", "recorder", "restarting"},
	}
	return n.send(ctx, data)
}

// NotifyRecorderFailed is never gated: the user must not keep "recording"
// into a dead worker without an explicit alert.
func (n *ntfyService) NotifyRecorderFailed(ctx context.Context, err error) error {
	message := "❌ Recorder failed permanently; recording is unavailable until the daemon restarts"
	if err != nil {
		message = fmt.Sprintf("%s\nCause: %s", message, strings.TrimSpace(err.Error()))
	}
	data := payload{
		title:    "Murmur - Recorder Failed",
		message:  message,
		tags:     []string{"murmur", "recorder", "failed"},
		priority: "urgent",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Murmur - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"murmur", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRecordingStarted(context.Context) error                      { return nil }
func (noopService) NotifyRecordingComplete(context.Context, string) error             { return nil }
func (noopService) NotifyTranscriptionComplete(context.Context, string, string) error { return nil }
func (noopService) NotifyTranscriptionFailed(context.Context, string, error) error    { return nil }
func (noopService) NotifyRecorderError(context.Context, string, string) error         { return nil }
func (noopService) NotifyRecorderRestarting(context.Context, int, time.Duration) error {
	return nil
}
func (noopService) NotifyRecorderFailed(context.Context, error) error { return nil }
func (noopService) TestNotification(context.Context) error            { return nil }
