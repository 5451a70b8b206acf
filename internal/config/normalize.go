package config

import "strings"

func (c *Config) normalize() error {
	var err error
	if c.Paths.AudioDir, err = expandPath(c.Paths.AudioDir); err != nil {
		return err
	}
	if c.Paths.TranscriptDir, err = expandPath(c.Paths.TranscriptDir); err != nil {
		return err
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if dir := strings.TrimSpace(c.Recorder.WorkDir); dir != "" {
		if c.Recorder.WorkDir, err = expandPath(dir); err != nil {
			return err
		}
	}

	c.Recorder.Command = strings.TrimSpace(c.Recorder.Command)
	c.Transcriber.Command = strings.TrimSpace(c.Transcriber.Command)
	c.Transcriber.Model = strings.TrimSpace(c.Transcriber.Model)
	c.Transcriber.Language = strings.TrimSpace(c.Transcriber.Language)
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}
