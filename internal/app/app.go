// Package app maps parsed commands onto the daemon and its IPC clients.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rbright/soundboard/internal/audio"
	"github.com/rbright/soundboard/internal/cli"
	"github.com/rbright/soundboard/internal/config"
	"github.com/rbright/soundboard/internal/doctor"
	"github.com/rbright/soundboard/internal/ipc"
	"github.com/rbright/soundboard/internal/logging"
	"github.com/rbright/soundboard/internal/playback"
	"github.com/rbright/soundboard/internal/settings"
	"github.com/rbright/soundboard/internal/version"
)

const (
	binaryName     = "soundboard"
	forwardTimeout = 3 * time.Second
)

var errNoDaemon = errors.New("soundboard daemon is not running")

// Runner executes one command invocation.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	// NewOutput opens the playback output for the daemon. Nil uses Pulse.
	NewOutput func(cfg config.AudioConfig, logger *slog.Logger) (playback.Output, error)
}

// Execute runs args with a default runner.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

// Execute returns the process exit code: 0 success, 1 failure, 2 usage error.
func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	// fire runs once per keypress; it needs only the socket.
	if parsed.Command == cli.CommandFire {
		return r.commandForward(ctx, parsed)
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		if parsed.Command == cli.CommandRun || parsed.Command == cli.CommandDoctor {
			fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		}
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch {
	case parsed.Command == cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case parsed.Command == cli.CommandDevices:
		return r.commandDevices(ctx, cfgLoaded.Config, logger)
	case parsed.Command == cli.CommandRun:
		return r.commandRun(ctx, cfgLoaded.Config, logger)
	case parsed.Forwarded():
		return r.commandForward(ctx, parsed)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// commandDevices lists output sinks and marks the ones the settings route
// sounds to.
func (r Runner) commandDevices(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio output devices found")
		return 1
	}

	var current settings.Settings
	if store, err := settings.Load(cfg.Settings.Path, logger); err != nil {
		logger.Warn("devices: settings unavailable", "error", err.Error())
		current = settings.Default()
	} else {
		current = store.Snapshot()
	}
	renderDevices(r.Stdout, devices, current.MainDevice, current.SecondaryDevice)
	return 0
}

// commandForward sends the command to the running daemon and renders the reply.
func (r Runner) commandForward(ctx context.Context, parsed cli.Parsed) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		if parsed.Command == cli.CommandStatus {
			fmt.Fprintln(r.Stdout, "not running")
			return 0
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	req := ipc.Request{Command: string(parsed.Command), Args: parsed.Args}
	resp, handled, err := tryForward(ctx, socketPath, req)
	if !handled {
		if parsed.Command == cli.CommandStatus {
			fmt.Fprintln(r.Stdout, "not running")
			return 0
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", errNoDaemon)
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if err := render(r.Stdout, parsed.Command, resp); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// tryForward reports handled=false when no daemon owns socketPath.
func tryForward(ctx context.Context, socketPath string, req ipc.Request) (ipc.Response, bool, error) {
	resp, err := ipc.Client{Path: socketPath, Timeout: forwardTimeout}.Do(ctx, req)
	switch {
	case errors.Is(err, ipc.ErrNotRunning):
		return ipc.Response{}, false, nil
	case err != nil:
		return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
	default:
		return resp, true, resp.Err()
	}
}
