package platform

import (
	"errors"
	"testing"
)

func envOf(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		env  map[string]string
		want string
	}{
		{"explicit wayland", Options{Backend: "wayland"}, nil, "wayland"},
		{"explicit x11 ignores env", Options{Backend: "x11"}, map[string]string{"WAYLAND_DISPLAY": "wayland-0"}, "x11"},
		{"auto prefers wayland", Options{Backend: "auto"}, map[string]string{"WAYLAND_DISPLAY": "wayland-0", "DISPLAY": ":0"}, "wayland"},
		{"auto falls back to x11", Options{}, map[string]string{"DISPLAY": ":0"}, "x11"},
		{"configured wayland display", Options{Backend: "auto", WaylandDisplay: "wayland-1"}, map[string]string{"DISPLAY": ":0"}, "wayland"},
		{"configured x display", Options{Backend: "auto", Display: ":1"}, nil, "x11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Select(tt.opts, envOf(tt.env))
			if err != nil {
				t.Fatalf("Select: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Select = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSelect_Errors(t *testing.T) {
	if _, err := Select(Options{}, envOf(nil)); !errors.Is(err, ErrNoDisplay) {
		t.Fatalf("expected ErrNoDisplay, got %v", err)
	}
	if _, err := Select(Options{Backend: "quartz"}, envOf(nil)); err == nil {
		t.Fatal("expected unknown backend error")
	}
}

func TestOpen_BuildsNamedBackend(t *testing.T) {
	for _, name := range []string{"wayland", "x11"} {
		b, err := Open(Options{Backend: name})
		if err != nil {
			t.Fatalf("Open(%s): %v", name, err)
		}
		if b.Name() != name {
			t.Fatalf("Open(%s).Name() = %q", name, b.Name())
		}
	}
}
