package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// IncludeList supports either:
//
//	include: "/path/to/file.yaml"
//
// or:
//
//	include:
//	  - "/path/to/file.yaml"
//	  - "/path/to/dir"
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		*l = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

// RawConfig is one file as written. Nil fields were not set.
type RawConfig struct {
	Include                IncludeList    `yaml:"include"`
	Backend                *string        `yaml:"backend"`
	Display                *string        `yaml:"display"`
	WaylandDisplay         *string        `yaml:"wayland_display"`
	BusName                *string        `yaml:"bus_name"`
	ObjectPath             *string        `yaml:"object_path"`
	EventBuffer            *int           `yaml:"event_buffer"`
	ActionBuffer           *int           `yaml:"action_buffer"`
	SignalBuffer           *int           `yaml:"signal_buffer"`
	LogLevel               *string        `yaml:"log_level"`
	RestoreMinimized       *bool          `yaml:"restore_minimized"`
	CloseHotkey            *string        `yaml:"close_hotkey"`
	OverloadReportInterval *time.Duration `yaml:"overload_report_interval"`
}

func (c RawConfig) merge(overlay RawConfig) RawConfig {
	out := c

	if overlay.Backend != nil {
		out.Backend = overlay.Backend
	}
	if overlay.Display != nil {
		out.Display = overlay.Display
	}
	if overlay.WaylandDisplay != nil {
		out.WaylandDisplay = overlay.WaylandDisplay
	}
	if overlay.BusName != nil {
		out.BusName = overlay.BusName
	}
	if overlay.ObjectPath != nil {
		out.ObjectPath = overlay.ObjectPath
	}
	if overlay.EventBuffer != nil {
		out.EventBuffer = overlay.EventBuffer
	}
	if overlay.ActionBuffer != nil {
		out.ActionBuffer = overlay.ActionBuffer
	}
	if overlay.SignalBuffer != nil {
		out.SignalBuffer = overlay.SignalBuffer
	}
	if overlay.LogLevel != nil {
		out.LogLevel = overlay.LogLevel
	}
	if overlay.RestoreMinimized != nil {
		out.RestoreMinimized = overlay.RestoreMinimized
	}
	if overlay.CloseHotkey != nil {
		out.CloseHotkey = overlay.CloseHotkey
	}
	if overlay.OverloadReportInterval != nil {
		out.OverloadReportInterval = overlay.OverloadReportInterval
	}

	return out
}
