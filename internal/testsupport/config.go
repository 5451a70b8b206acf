// Package testsupport provides helpers shared by package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"murmur/internal/config"
)

// NewConfig returns a validated configuration rooted in a per-test temp
// directory so tests never touch the user's real data.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.AudioDir = filepath.Join(root, "audio")
	cfg.Paths.TranscriptDir = filepath.Join(root, "transcripts")
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.LogDir = filepath.Join(root, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}
