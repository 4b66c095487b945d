package config

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Source.Kind == SourceEnv && e.Source.Name != "" {
		return fmt.Sprintf("$%s: %s: %v", e.Source.Name, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// BuildEffectiveConfig lays raw over the defaults.
func BuildEffectiveConfig(raw RawConfig) (*Config, error) {
	cfg := DefaultConfig()

	if raw.Backend != nil {
		cfg.Backend = strings.ToLower(strings.TrimSpace(*raw.Backend))
	}
	if raw.Display != nil {
		cfg.Display = *raw.Display
	}
	if raw.WaylandDisplay != nil {
		cfg.WaylandDisplay = *raw.WaylandDisplay
	}
	if raw.BusName != nil {
		cfg.BusName = *raw.BusName
	}
	if raw.ObjectPath != nil {
		cfg.ObjectPath = *raw.ObjectPath
	}
	if raw.EventBuffer != nil {
		cfg.EventBuffer = *raw.EventBuffer
	}
	if raw.ActionBuffer != nil {
		cfg.ActionBuffer = *raw.ActionBuffer
	}
	if raw.SignalBuffer != nil {
		cfg.SignalBuffer = *raw.SignalBuffer
	}
	if raw.LogLevel != nil {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(*raw.LogLevel))
	}
	if raw.RestoreMinimized != nil {
		cfg.RestoreMinimized = *raw.RestoreMinimized
	}
	if raw.CloseHotkey != nil {
		cfg.CloseHotkey = *raw.CloseHotkey
	}
	if raw.OverloadReportInterval != nil {
		cfg.OverloadReportInterval = *raw.OverloadReportInterval
	}

	return cfg, nil
}
