package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultKeystrokeReset      = 500 * time.Millisecond
	DefaultKeystrokeFinalize   = 200 * time.Millisecond
	DefaultFrameInterval       = 100 * time.Millisecond
	DefaultAttachRetry         = 300 * time.Millisecond
	DefaultAttachRetryInterval = 50 * time.Millisecond
	DefaultPreferredWidth      = 1280
	DefaultPreferredHeight     = 720
	DefaultFacing              = "environment"
	DefaultMode                = "hid"
)

// scannerProfile mirrors ScannerConfig with durations as strings so a
// profile can say "250ms" instead of nanoseconds.
type scannerProfile struct {
	Mode                string `yaml:"mode"`
	KeystrokeReset      string `yaml:"keystroke_reset"`
	KeystrokeFinalize   string `yaml:"keystroke_finalize"`
	FrameInterval       string `yaml:"frame_interval"`
	AttachRetry         string `yaml:"attach_retry"`
	AttachRetryInterval string `yaml:"attach_retry_interval"`
	PreferredWidth      int    `yaml:"preferred_width"`
	PreferredHeight     int    `yaml:"preferred_height"`
	Facing              string `yaml:"facing"`
}

// ApplyProfile overlays the non-empty fields of a YAML scanner profile
// onto s.
func (s *ScannerConfig) ApplyProfile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read scanner profile: %w", err)
	}
	return s.applyProfileYAML(data)
}

func (s *ScannerConfig) applyProfileYAML(data []byte) error {
	var p scannerProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parse scanner profile: %w", err)
	}

	durations := []struct {
		raw string
		dst *time.Duration
		key string
	}{
		{p.KeystrokeReset, &s.KeystrokeReset, "keystroke_reset"},
		{p.KeystrokeFinalize, &s.KeystrokeFinalize, "keystroke_finalize"},
		{p.FrameInterval, &s.FrameInterval, "frame_interval"},
		{p.AttachRetry, &s.AttachRetry, "attach_retry"},
		{p.AttachRetryInterval, &s.AttachRetryInterval, "attach_retry_interval"},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("scanner profile %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if p.Mode != "" {
		s.DefaultMode = p.Mode
	}
	if p.PreferredWidth > 0 {
		s.PreferredWidth = p.PreferredWidth
	}
	if p.PreferredHeight > 0 {
		s.PreferredHeight = p.PreferredHeight
	}
	if p.Facing != "" {
		s.Facing = p.Facing
	}
	return nil
}

// WithDefaults fills zero fields with the standard scanner timings.
func (s ScannerConfig) WithDefaults() ScannerConfig {
	if s.DefaultMode == "" {
		s.DefaultMode = DefaultMode
	}
	if s.KeystrokeReset <= 0 {
		s.KeystrokeReset = DefaultKeystrokeReset
	}
	if s.KeystrokeFinalize <= 0 {
		s.KeystrokeFinalize = DefaultKeystrokeFinalize
	}
	if s.FrameInterval <= 0 {
		s.FrameInterval = DefaultFrameInterval
	}
	if s.AttachRetry <= 0 {
		s.AttachRetry = DefaultAttachRetry
	}
	if s.AttachRetryInterval <= 0 {
		s.AttachRetryInterval = DefaultAttachRetryInterval
	}
	if s.PreferredWidth <= 0 {
		s.PreferredWidth = DefaultPreferredWidth
	}
	if s.PreferredHeight <= 0 {
		s.PreferredHeight = DefaultPreferredHeight
	}
	if s.Facing == "" {
		s.Facing = DefaultFacing
	}
	return s
}
