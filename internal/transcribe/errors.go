package transcribe

import (
	"errors"
	"fmt"
)

// ErrAudioNotFound is returned before any process is spawned when the audio
// file does not exist.
var ErrAudioNotFound = errors.New("audio file not found")

// ErrAlreadyTranscribing is returned when a job for the same audio file is
// still in flight. Requests are rejected, never queued.
var ErrAlreadyTranscribing = errors.New("transcription already in flight for this file")

// ErrInterrupted is returned when the job's context ends before the worker
// produces a transcript, typically during daemon shutdown.
var ErrInterrupted = errors.New("transcription interrupted before completion")

// WorkerError carries an ERROR line reported by the transcription worker.
type WorkerError struct {
	Code   string
	Detail string
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("transcription worker error %s: %s", e.Code, e.Detail)
}

// ExitError reports a worker that exited without emitting a transcript path.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("transcription worker exited with code %d before emitting a transcript", e.Code)
}
