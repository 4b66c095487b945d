package config

import (
	"fmt"
	"strings"
)

// Explain returns the effective value at the given key and where it came
// from. Keys are the top-level YAML names, e.g. event_buffer or log_level.
func Explain(res *LoadResult, path string) (any, Source, error) {
	if res == nil || res.Config == nil {
		return nil, Source{}, fmt.Errorf("no config loaded")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, Source{}, fmt.Errorf("path is empty")
	}

	value, err := lookupValue(res.Config, path)
	if err != nil {
		return nil, Source{}, err
	}

	if src, ok := res.Sources[path]; ok {
		return value, src, nil
	}
	return value, Source{Kind: SourceDefault, Name: "defaults"}, nil
}

func lookupValue(cfg *Config, path string) (any, error) {
	if strings.Contains(path, ".") {
		return nil, fmt.Errorf("unknown path %q", path)
	}
	switch path {
	case "backend":
		return cfg.Backend, nil
	case "display":
		return cfg.Display, nil
	case "wayland_display":
		return cfg.WaylandDisplay, nil
	case "bus_name":
		return cfg.BusName, nil
	case "object_path":
		return cfg.ObjectPath, nil
	case "event_buffer":
		return cfg.EventBuffer, nil
	case "action_buffer":
		return cfg.ActionBuffer, nil
	case "signal_buffer":
		return cfg.SignalBuffer, nil
	case "log_level":
		return cfg.LogLevel, nil
	case "restore_minimized":
		return cfg.RestoreMinimized, nil
	case "close_hotkey":
		return cfg.CloseHotkey, nil
	case "overload_report_interval":
		return cfg.OverloadReportInterval.String(), nil
	default:
		return nil, fmt.Errorf("unknown path %q", path)
	}
}
