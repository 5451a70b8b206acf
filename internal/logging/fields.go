package logging

// Standardized attribute keys shared across components.
const (
	FieldComponent   = "component"
	FieldEventType   = "event_type"
	FieldErrorHint   = "error_hint"
	FieldImpact      = "impact"
	FieldWorker      = "worker"
	FieldJobID       = "job_id"
	FieldRecordingID = "recording_id"
)
