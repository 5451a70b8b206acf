package main

import (
	"log/slog"
	"time"

	"murmur/internal/config"
	"murmur/internal/notifications"
	"murmur/internal/process"
	"murmur/internal/recorder"
	"murmur/internal/recordings"
	"murmur/internal/transcribe"
	"murmur/internal/workflow"
)

func buildWorkflow(
	cfg *config.Config,
	store *recordings.Store,
	notifier notifications.Service,
	logger *slog.Logger,
) *workflow.Manager {
	session := recorder.NewSession(process.New(recorderOptions(cfg, logger)), logger)
	jobs := transcribe.NewManager(transcribe.Options{
		Command:  cfg.Transcriber.Command,
		Args:     cfg.Transcriber.Args,
		Model:    cfg.Transcriber.Model,
		Language: cfg.Transcriber.Language,
		Logger:   logger,
	})
	return workflow.NewManager(cfg, session, jobs, store, notifier, logger)
}

func recorderOptions(cfg *config.Config, logger *slog.Logger) process.Options {
	rec := cfg.Recorder
	args := append([]string(nil), rec.Args...)
	if rec.CaptureDevice != "" {
		args = append(args, "--device", rec.CaptureDevice)
	}
	return process.Options{
		Name:           "recorder",
		Command:        rec.Command,
		Args:           args,
		Dir:            rec.WorkDir,
		MaxRestarts:    rec.MaxRestarts,
		BaseDelay:      time.Duration(rec.RestartBaseDelayMS) * time.Millisecond,
		ReadyTimeout:   time.Duration(rec.ReadyTimeoutSeconds) * time.Second,
		HealthInterval: time.Duration(rec.HealthIntervalSeconds) * time.Second,
		HealthTimeout:  time.Duration(rec.HealthTimeoutSeconds) * time.Second,
		StopGrace:      time.Duration(rec.StopGraceSeconds) * time.Second,
		Logger:         logger,
	}
}
