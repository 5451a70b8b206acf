package recordings

import "time"

// Recording is one persisted voice memo.
type Recording struct {
	ID             int64
	Title          string
	AudioPath      string
	TranscriptPath string
	// TextPath is the plain-text transcript variant; may be empty.
	TextPath string
	// DurationSeconds is the captured audio length, rounded to whole seconds.
	DurationSeconds int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Stats summarizes the library for status reporting.
type Stats struct {
	Total                int64
	TotalDurationSeconds int64
}
