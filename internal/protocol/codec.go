package protocol

import "strings"

// Worker stdout message markers.
const (
	markerReady            = "READY"
	markerRecordingStarted = "RECORDING_STARTED"
	markerRecordingStopped = "RECORDING_STOPPED"
	markerTranscriptSaved  = "TRANSCRIPT_SAVED:"
	markerTranscriptText   = "TRANSCRIPT_TXT:"
	markerError            = "ERROR:"

	// noAudioSentinel is emitted by the recorder when a stop produced no
	// captured frames. Never a valid filename.
	noAudioSentinel = "no_audio"
)

// Command is a stdin command accepted by the recorder worker.
type Command string

const (
	CommandStart Command = "start"
	CommandStop  Command = "stop"
	CommandQuit  Command = "quit"
)

// Valid reports whether the command belongs to the protocol vocabulary.
func (c Command) Valid() bool {
	switch c {
	case CommandStart, CommandStop, CommandQuit:
		return true
	default:
		return false
	}
}

// ParseLine converts one line of worker stdout into a Message. It is pure and
// total: unrecognized input degrades to KindUnknown, never an error. Matching
// is case-sensitive with the first colon separating payload-bearing messages.
func ParseLine(raw string) Message {
	line := strings.TrimRight(raw, "\r\n")

	switch line {
	case markerReady:
		return Message{Kind: KindReady}
	case markerRecordingStarted:
		return Message{Kind: KindRecordingStarted}
	}

	switch {
	case line == markerRecordingStopped,
		strings.HasPrefix(line, markerRecordingStopped+":"):
		payload := strings.TrimPrefix(line, markerRecordingStopped)
		payload = strings.TrimPrefix(payload, ":")
		payload = strings.TrimSpace(payload)
		if payload == "" || payload == noAudioSentinel {
			return Message{Kind: KindRecordingStopped, NoAudio: true}
		}
		return Message{Kind: KindRecordingStopped, AudioPath: payload}

	case strings.HasPrefix(line, markerTranscriptSaved):
		path := strings.TrimSpace(strings.TrimPrefix(line, markerTranscriptSaved))
		if path == "" {
			return Message{Kind: KindUnknown, Raw: line}
		}
		return Message{Kind: KindTranscriptSaved, Path: path}

	case strings.HasPrefix(line, markerTranscriptText):
		path := strings.TrimSpace(strings.TrimPrefix(line, markerTranscriptText))
		if path == "" {
			return Message{Kind: KindUnknown, Raw: line}
		}
		return Message{Kind: KindTranscriptText, Path: path}

	case strings.HasPrefix(line, markerError):
		payload := strings.TrimPrefix(line, markerError)
		code, detail, found := strings.Cut(payload, ":")
		if !found {
			return Message{Kind: KindError, Code: "UNKNOWN", Detail: strings.TrimSpace(payload)}
		}
		return Message{Kind: KindError, Code: strings.TrimSpace(code), Detail: strings.TrimSpace(detail)}

	default:
		return Message{Kind: KindUnknown, Raw: line}
	}
}

// SerializeCommand renders a command for the worker's line-oriented stdin
// reader, including the trailing newline.
func SerializeCommand(cmd Command) string {
	return string(cmd) + "\n"
}
