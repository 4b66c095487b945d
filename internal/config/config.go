package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"gopkg.in/yaml.v3"
)

const (
	BackendAuto    = "auto"
	BackendWayland = "wayland"
	BackendX11     = "x11"
)

// Config is the effective daemon configuration.
type Config struct {
	Backend                string        `yaml:"backend"`
	Display                string        `yaml:"display,omitempty"`
	WaylandDisplay         string        `yaml:"wayland_display,omitempty"`
	BusName                string        `yaml:"bus_name"`
	ObjectPath             string        `yaml:"object_path"`
	EventBuffer            int           `yaml:"event_buffer"`
	ActionBuffer           int           `yaml:"action_buffer"`
	SignalBuffer           int           `yaml:"signal_buffer"`
	LogLevel               string        `yaml:"log_level"`
	RestoreMinimized       bool          `yaml:"restore_minimized"`
	CloseHotkey            string        `yaml:"close_hotkey,omitempty"`
	OverloadReportInterval time.Duration `yaml:"overload_report_interval"`
}

func DefaultConfig() *Config {
	return &Config{
		Backend:                BackendAuto,
		BusName:                "me.lilydjwg.taskmaid",
		ObjectPath:             "/taskmaid",
		EventBuffer:            10240,
		ActionBuffer:           10,
		SignalBuffer:           10,
		LogLevel:               "warning",
		OverloadReportInterval: time.Minute,
	}
}

// Validate checks value ranges. Errors are *ValidationError so the loader
// can attach the file position of the offending key.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendAuto, BackendWayland, BackendX11:
	default:
		return &ValidationError{Path: "backend", Err: fmt.Errorf("backend must be one of: auto, wayland, x11")}
	}
	if err := validateBusName(c.BusName); err != nil {
		return &ValidationError{Path: "bus_name", Err: err}
	}
	if err := validateObjectPath(c.ObjectPath); err != nil {
		return &ValidationError{Path: "object_path", Err: err}
	}
	if c.EventBuffer < 1 {
		return &ValidationError{Path: "event_buffer", Err: fmt.Errorf("event_buffer must be >= 1")}
	}
	if c.ActionBuffer < 1 {
		return &ValidationError{Path: "action_buffer", Err: fmt.Errorf("action_buffer must be >= 1")}
	}
	if c.SignalBuffer < 1 {
		return &ValidationError{Path: "signal_buffer", Err: fmt.Errorf("signal_buffer must be >= 1")}
	}
	if c.LogLevel != "debug" && c.LogLevel != "info" && c.LogLevel != "warning" && c.LogLevel != "error" {
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warning, error")}
	}
	if c.OverloadReportInterval < 0 {
		return &ValidationError{Path: "overload_report_interval", Err: fmt.Errorf("overload_report_interval must be >= 0")}
	}
	if strings.TrimSpace(c.CloseHotkey) != c.CloseHotkey {
		return &ValidationError{Path: "close_hotkey", Err: fmt.Errorf("close_hotkey must not have surrounding whitespace")}
	}

	if warnings := c.validationWarnings(); len(warnings) > 0 {
		for _, w := range warnings {
			fmt.Fprintln(os.Stderr, "warning:", w)
		}
	}
	return nil
}

func (c *Config) validationWarnings() []string {
	var warnings []string
	if c.CloseHotkey != "" && c.Backend == BackendWayland {
		warnings = append(warnings, "close_hotkey is only honoured by the x11 backend")
	}
	if c.RestoreMinimized && c.Backend == BackendX11 {
		warnings = append(warnings, "restore_minimized is only honoured by the wayland backend")
	}
	return warnings
}

// validateBusName applies the D-Bus well-known name rules: two or more
// dot-separated elements of [A-Za-z0-9_-], none starting with a digit.
func validateBusName(name string) error {
	if name == "" || len(name) > 255 {
		return fmt.Errorf("bus_name must be 1-255 characters")
	}
	elems := strings.Split(name, ".")
	if len(elems) < 2 {
		return fmt.Errorf("bus_name %q needs at least two elements", name)
	}
	for _, e := range elems {
		if e == "" {
			return fmt.Errorf("bus_name %q has an empty element", name)
		}
		if e[0] >= '0' && e[0] <= '9' {
			return fmt.Errorf("bus_name element %q starts with a digit", e)
		}
		for _, r := range e {
			if !isNameChar(r) && r != '-' {
				return fmt.Errorf("bus_name element %q contains %q", e, r)
			}
		}
	}
	return nil
}

func validateObjectPath(path string) error {
	if !dbus.ObjectPath(path).IsValid() {
		return fmt.Errorf("object_path %q is not a valid D-Bus object path", path)
	}
	return nil
}

func isNameChar(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// Marshal renders the effective configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
