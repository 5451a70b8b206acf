// Package ipc exposes daemon control to the CLI via JSON-RPC over a Unix
// domain socket.
package ipc

// Recording is the wire representation of a stored memo.
type Recording struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	AudioPath       string `json:"audio_path"`
	TranscriptPath  string `json:"transcript_path"`
	TextPath        string `json:"text_path,omitempty"`
	DurationSeconds int64  `json:"duration_seconds"`
	CreatedAt       string `json:"created_at"`
}

// StatusRequest asks for the daemon snapshot.
type StatusRequest struct{}

// StatusResponse carries the daemon snapshot.
type StatusResponse struct {
	Running              bool     `json:"running"`
	PID                  int      `json:"pid"`
	LockPath             string   `json:"lock_path"`
	DatabasePath         string   `json:"database_path"`
	LogPath              string   `json:"log_path"`
	MonitorRunning       bool     `json:"monitor_running"`
	LastAudioDeviceEvent string   `json:"last_audio_device_event,omitempty"`
	Recording            bool     `json:"recording"`
	RecorderState        string   `json:"recorder_state"`
	RecorderFailed       bool     `json:"recorder_failed"`
	ActiveJobs           []string `json:"active_jobs,omitempty"`
	JobsSucceeded        int64    `json:"jobs_succeeded"`
	JobsFailed           int64    `json:"jobs_failed"`
	LastError            string   `json:"last_error,omitempty"`
	TotalRecordings      int64    `json:"total_recordings"`
	TotalDurationSeconds int64    `json:"total_duration_seconds"`
}

// StopRequest asks the daemon to shut down its workflow.
type StopRequest struct{}

// StopResponse confirms shutdown.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// RecordStartRequest begins a capture.
type RecordStartRequest struct{}

// RecordStartResponse reports the start outcome.
type RecordStartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message,omitempty"`
}

// RecordStopRequest ends a capture.
type RecordStopRequest struct{}

// RecordStopResponse reports the stop outcome.
type RecordStopResponse struct {
	Stopped bool   `json:"stopped"`
	Message string `json:"message,omitempty"`
}

// TranscribeRequest runs the pipeline for an existing audio file.
type TranscribeRequest struct {
	AudioPath string `json:"audio_path"`
}

// TranscribeResponse carries the stored memo.
type TranscribeResponse struct {
	Recording Recording `json:"recording"`
}

// RecordingsListRequest asks for all stored memos.
type RecordingsListRequest struct{}

// RecordingsListResponse carries the memos, newest first.
type RecordingsListResponse struct {
	Recordings []Recording `json:"recordings"`
}

// RecordingsDescribeRequest fetches one memo.
type RecordingsDescribeRequest struct {
	ID int64 `json:"id"`
}

// RecordingsDescribeResponse carries the memo.
type RecordingsDescribeResponse struct {
	Recording Recording `json:"recording"`
}

// RecordingsRemoveRequest deletes a memo, optionally with its artifacts.
type RecordingsRemoveRequest struct {
	ID          int64 `json:"id"`
	DeleteFiles bool  `json:"delete_files"`
}

// RecordingsRemoveResponse confirms the removal.
type RecordingsRemoveResponse struct {
	Removed   bool      `json:"removed"`
	Recording Recording `json:"recording"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message,omitempty"`
}

// LogTailRequest reads daemon log lines.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int64 `json:"wait_millis"`
}

// LogTailResponse carries log lines and the offset to resume from.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}
