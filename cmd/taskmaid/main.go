package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/godbus/dbus/v5"

	"github.com/1broseidon/taskmaid/internal/bus"
	"github.com/1broseidon/taskmaid/internal/config"
	"github.com/1broseidon/taskmaid/internal/daemon"
	"github.com/1broseidon/taskmaid/internal/logging"
	"github.com/1broseidon/taskmaid/internal/toplevel"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "list":
		os.Exit(runList(os.Args[2:]))
	case "active":
		os.Exit(runActive(os.Args[2:]))
	case "close":
		os.Exit(runClose(os.Args[2:]))
	case "watch":
		os.Exit(runWatch(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: taskmaid <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Track toplevels and serve them on D-Bus (foreground)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  list                List open windows")
	fmt.Fprintln(w, "  active              Show the active window")
	fmt.Fprintln(w, "  close               Close the active window")
	fmt.Fprintln(w, "  watch               Print active window changes")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "  config explain      Explain a config value")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'taskmaid <command> --help' for command-specific options.")
}

// parseFlags returns -1 to continue, else the exit code.
func parseFlags(fs *flag.FlagSet, args []string) int {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "%s takes no arguments\n", fs.Name())
		fs.Usage()
		return 2
	}
	return -1
}

func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.LoadWithSources()
	}
	return config.LoadFromPath(path)
}

func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("config", "", "Config file path (default: ~/.config/taskmaid/config.yaml)")
	backend := fs.String("backend", "", "Override backend: auto, wayland or x11")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: taskmaid daemon [--config PATH] [--backend NAME]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Track toplevel windows and export them on the session bus.")
	}
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}

	res, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	cfg := res.Config
	if *backend != "" {
		cfg.Backend = *backend
		if err := cfg.Validate(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	}

	logger, err := logging.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := daemon.Run(ctx, cfg, logger); err != nil {
		logger.Error("taskmaid exiting", "err", err)
		return 1
	}
	return 0
}

// dialDaemon connects to the daemon named in the loaded config.
func dialDaemon(path string) (*bus.Client, error) {
	res, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	return bus.Dial(res.Config.BusName, dbus.ObjectPath(res.Config.ObjectPath))
}

func runList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("config", "", "Config file path")
	asJSON := fs.Bool("json", false, "Output JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: taskmaid list [--json]")
	}
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}

	client, err := dialDaemon(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer client.Close()

	windows, err := client.List(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].ID < windows[j].ID })

	if *asJSON {
		if err := writeJSON(os.Stdout, windowsJSON(windows)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}
	printWindows(os.Stdout, windows)
	return 0
}

func runActive(args []string) int {
	fs := flag.NewFlagSet("active", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("config", "", "Config file path")
	asJSON := fs.Bool("json", false, "Output JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: taskmaid active [--json]")
	}
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}

	client, err := dialDaemon(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer client.Close()

	info, err := client.Active(context.Background())
	if errors.Is(err, bus.ErrNoActive) {
		fmt.Fprintln(os.Stderr, "no toplevel active")
		return 1
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if *asJSON {
		if err := writeJSON(os.Stdout, activeJSON(info)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}
	fmt.Println(formatActive(info))
	return 0
}

func runClose(args []string) int {
	fs := flag.NewFlagSet("close", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("config", "", "Config file path")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: taskmaid close")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Ask the compositor to close the last active window.")
	}
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}

	client, err := dialDaemon(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer client.Close()

	if err := client.CloseActive(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("config", "", "Config file path")
	asJSON := fs.Bool("json", false, "Output one JSON object per line")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: taskmaid watch [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Print the active window every time it changes.")
	}
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}

	client, err := dialDaemon(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(os.Stdout)
	err = client.Watch(ctx, func(info toplevel.ActiveInfo) {
		if *asJSON {
			_ = enc.Encode(activeJSON(info))
			return
		}
		fmt.Println(formatActive(info))
	})
	if err != nil && ctx.Err() == nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

type windowOut struct {
	ID     uint32   `json:"id"`
	Title  string   `json:"title"`
	AppID  string   `json:"app_id"`
	Output string   `json:"output"`
	States []string `json:"states"`
}

type activeOut struct {
	Title  string `json:"title"`
	AppID  string `json:"app_id"`
	Output string `json:"output"`
}

func windowsJSON(windows []toplevel.WindowInfo) []windowOut {
	out := make([]windowOut, 0, len(windows))
	for _, w := range windows {
		states := make([]string, len(w.States))
		for i, st := range w.States {
			states[i] = st.String()
		}
		out = append(out, windowOut{ID: uint32(w.ID), Title: w.Title, AppID: w.AppID, Output: w.OutputName, States: states})
	}
	return out
}

func activeJSON(info toplevel.ActiveInfo) activeOut {
	return activeOut{Title: info.Title, AppID: info.AppID, Output: info.OutputName}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printWindows(w io.Writer, windows []toplevel.WindowInfo) {
	for _, win := range windows {
		states := make([]string, len(win.States))
		for i, st := range win.States {
			states[i] = st.String()
		}
		fmt.Fprintf(w, "%-8d %-10s %-20s %-16s %s\n",
			win.ID, win.OutputName, win.AppID, strings.Join(states, ","), win.Title)
	}
}

func formatActive(info toplevel.ActiveInfo) string {
	if info.Title == "" && info.AppID == "" {
		return fmt.Sprintf("(nothing active on %s)", info.OutputName)
	}
	return fmt.Sprintf("%s\t%s\t%s", info.OutputName, info.AppID, info.Title)
}
