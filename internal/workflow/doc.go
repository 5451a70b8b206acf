// Package workflow wires the recorder session to transcription jobs and the
// recordings library. A finished capture automatically flows through
// transcription, metadata derivation, persistence, and notification; job
// failures are surfaced as notifications and never interrupt the session.
package workflow
