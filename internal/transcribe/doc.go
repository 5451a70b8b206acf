// Package transcribe runs one-shot transcription workers. Each job spawns a
// fresh supervised process for a single audio file and settles with either the
// transcript artifact paths or a typed error; jobs are never retried.
package transcribe
