package config

// Default returns the built-in configuration values applied before any file
// content is decoded on top.
func Default() Config {
	return Config{
		Paths: Paths{
			AudioDir:      "~/.local/share/murmur/audio",
			TranscriptDir: "~/.local/share/murmur/transcripts",
			DataDir:       "~/.local/share/murmur/data",
			LogDir:        "~/.local/share/murmur/logs",
		},
		Recorder: Recorder{
			Command:               "murmur-recorder",
			MaxRestarts:           3,
			RestartBaseDelayMS:    1000,
			ReadyTimeoutSeconds:   5,
			HealthIntervalSeconds: 10,
			HealthTimeoutSeconds:  30,
			StopGraceSeconds:      2,
		},
		Transcriber: Transcriber{
			Command:        "murmur-transcribe",
			Model:          "small",
			Language:       "en",
			TitleMaxLength: 100,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Recording:      false,
			Transcription:  true,
			Errors:         true,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}
