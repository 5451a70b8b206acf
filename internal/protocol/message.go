package protocol

// Kind discriminates the protocol message variants.
type Kind int

const (
	// KindUnknown marks any line that matched no known message shape.
	KindUnknown Kind = iota
	// KindReady signals the worker initialized and accepts commands.
	KindReady
	// KindRecordingStarted signals capture began.
	KindRecordingStarted
	// KindRecordingStopped signals capture ended; AudioPath is empty when the
	// worker captured no audio.
	KindRecordingStopped
	// KindTranscriptSaved carries the transcript artifact path.
	KindTranscriptSaved
	// KindTranscriptText carries the plain-text transcript path.
	KindTranscriptText
	// KindError carries a worker-reported, non-fatal failure.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindReady:
		return "ready"
	case KindRecordingStarted:
		return "recording_started"
	case KindRecordingStopped:
		return "recording_stopped"
	case KindTranscriptSaved:
		return "transcript_saved"
	case KindTranscriptText:
		return "transcript_text"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Message is one parsed line of worker stdout. Construct only via ParseLine;
// downstream code switches on Kind instead of re-parsing strings.
type Message struct {
	Kind Kind

	// AudioPath is set for KindRecordingStopped when audio was captured.
	AudioPath string
	// NoAudio is set for KindRecordingStopped when the worker reported the
	// no_audio sentinel (or an empty path, treated as equivalent).
	NoAudio bool

	// Path is set for KindTranscriptSaved and KindTranscriptText.
	Path string

	// Code and Detail are set for KindError.
	Code   string
	Detail string

	// Raw preserves the original line for KindUnknown.
	Raw string
}
