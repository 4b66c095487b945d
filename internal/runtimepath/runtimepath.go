package runtimepath

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoWaylandDisplay is returned when neither the configured display nor
// WAYLAND_DISPLAY names a compositor socket.
var ErrNoWaylandDisplay = errors.New("WAYLAND_DISPLAY is not set")

// Dir returns the runtime directory that holds compositor sockets. Priority:
// 1) XDG_RUNTIME_DIR (if set)
// 2) /run/user/<uid> (if present)
func Dir() (string, error) {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return runtimeDir, nil
	}

	runUserDir := fmt.Sprintf("/run/user/%d", os.Getuid())
	if info, err := os.Stat(runUserDir); err == nil && info.IsDir() {
		return runUserDir, nil
	}
	return "", errors.New("XDG_RUNTIME_DIR is not set and /run/user/<uid> does not exist")
}

// WaylandSocket resolves the compositor socket path. display overrides
// WAYLAND_DISPLAY; an absolute name is used as-is.
func WaylandSocket(display string) (string, error) {
	if display == "" {
		display = os.Getenv("WAYLAND_DISPLAY")
	}
	if display == "" {
		return "", ErrNoWaylandDisplay
	}
	if filepath.IsAbs(display) {
		return display, nil
	}

	runtimeDir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(runtimeDir, display), nil
}
