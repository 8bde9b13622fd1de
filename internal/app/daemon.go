package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/rbright/soundboard/internal/audio"
	"github.com/rbright/soundboard/internal/config"
	"github.com/rbright/soundboard/internal/eventfeed"
	"github.com/rbright/soundboard/internal/events"
	"github.com/rbright/soundboard/internal/folderwatch"
	"github.com/rbright/soundboard/internal/hotkey"
	"github.com/rbright/soundboard/internal/indicator"
	"github.com/rbright/soundboard/internal/ipc"
	"github.com/rbright/soundboard/internal/library"
	"github.com/rbright/soundboard/internal/playback"
	"github.com/rbright/soundboard/internal/remote"
	"github.com/rbright/soundboard/internal/session"
	"github.com/rbright/soundboard/internal/settings"
	"github.com/rbright/soundboard/internal/version"
)

const shutdownTimeout = 5 * time.Second

// firingBackend is a hotkey backend that also accepts forwarded presses.
type firingBackend interface {
	hotkey.Backend
	Fire(id hotkey.ID) bool
}

// daemon holds the long-lived components of `soundboard run`.
type daemon struct {
	logger     *slog.Logger
	output     playback.Output
	registry   *hotkey.Registry
	controller *session.Controller
	notifier   *indicator.Notifier
	watcher    *folderwatch.Watcher
	feed       *eventfeed.Hub
	remote     *remote.Server
	unsub      []func()
}

func (r Runner) commandRun(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	sock, err := ipc.Acquire(ctx, socketPath, ipc.AcquireOptions{Retries: 8})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = sock.Close() }()

	d, err := r.newDaemon(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("daemon startup failed", "error", err.Error())
		return 1
	}

	if err := d.run(ctx, sock); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func (r Runner) newDaemon(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *daemon, err error) {
	d := &daemon{logger: logger}
	defer func() {
		if err != nil {
			d.close()
		}
	}()

	lib, err := library.Open(cfg.Library.Path)
	if err != nil {
		return nil, err
	}
	store, err := settings.Load(cfg.Settings.Path, logger)
	if err != nil {
		return nil, err
	}

	newOutput := r.NewOutput
	if newOutput == nil {
		newOutput = pulseOutput
	}
	if d.output, err = newOutput(cfg.Audio, logger); err != nil {
		return nil, fmt.Errorf("open audio output: %w", err)
	}

	backend, err := newBackend(cfg.Hotkeys)
	if err != nil {
		return nil, err
	}

	bus := events.NewBus()
	player := playback.NewPlayer(d.output, logger)
	coordinator := playback.NewCoordinator(player, store, bus, logger)
	d.registry = hotkey.NewRegistry(backend, store, logger)

	notifier := indicator.New(cfg.Indicator, logger)
	d.notifier = notifier
	deps := session.Deps{
		Library:     lib,
		Settings:    store,
		Coordinator: coordinator,
		Registry:    d.registry,
		Bus:         bus,
		Firer:       backend,
		Indicator:   notifier,
		Texts:       notifier.Messages(),
		Logger:      logger,
		ResolveDevice: func(ctx context.Context, id string) (string, error) {
			device, err := audio.ResolveDevice(ctx, id)
			if err != nil {
				return "", err
			}
			return device.ID, nil
		},
	}

	var controller *session.Controller
	if cfg.Watch.Enable {
		watchCfg := folderwatch.Config{DebounceDur: time.Duration(cfg.Watch.DebounceMS) * time.Millisecond}
		d.watcher, err = folderwatch.New(watchCfg, func(folder string) { controller.FolderChanged(folder) }, logger)
		if err != nil {
			return nil, err
		}
		deps.Watcher = d.watcher
	}
	controller = session.NewController(deps)
	d.controller = controller

	d.unsub = append(d.unsub, bus.Subscribe(func(ev events.Event) {
		logger.Debug("event", "kind", ev.Kind, "sound", ev.SoundName, "soundboard", ev.SoundboardName)
	}))

	if cfg.EventFeed.Addr != "" {
		d.feed = eventfeed.NewHub(eventfeed.Options{Addr: cfg.EventFeed.Addr, Logger: logger})
		if err := d.feed.Start(ctx); err != nil {
			return nil, err
		}
		d.unsub = append(d.unsub, bus.Subscribe(d.feed.Publish))
	}

	if cfg.Remote.Addr != "" {
		d.remote = remote.NewServer(controller, bus, logger)
		if err := d.remote.Listen(cfg.Remote.Addr); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *daemon) run(ctx context.Context, listener net.Listener) error {
	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ipcErr := make(chan error, 1)
	go func() {
		ipcErr <- ipc.Serve(serveCtx, listener, d.controller)
	}()
	go func() {
		_ = d.registry.Run(serveCtx)
	}()
	if d.watcher != nil {
		d.watcher.Start()
	}

	if err := d.controller.Start(serveCtx); err != nil {
		d.logger.Warn("daemon started with errors", "error", err.Error())
	}
	build := version.Current()
	d.logger.Info("daemon ready", "version", build.Version, "commit", build.Commit)

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-ipcErr:
		if err != nil {
			runErr = fmt.Errorf("ipc server failed: %w", err)
		}
	}
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := d.controller.Close(shutdownCtx); err != nil {
		d.logger.Warn("release keybinds failed", "error", err.Error())
	}
	d.notifier.Hide(shutdownCtx)
	d.close()
	d.logger.Info("daemon stopped")
	return runErr
}

// close releases everything except keybinds, which controller.Close handles.
func (d *daemon) close() {
	for _, unsubscribe := range d.unsub {
		unsubscribe()
	}
	if d.remote != nil {
		d.remote.Stop()
	}
	if d.feed != nil {
		_ = d.feed.Stop()
	}
	if d.watcher != nil {
		_ = d.watcher.Stop()
	}
	if closer, ok := d.output.(interface{ Close() }); ok {
		closer.Close()
	}
}

func pulseOutput(cfg config.AudioConfig, logger *slog.Logger) (playback.Output, error) {
	out, err := audio.NewPulseOutput(audio.OutputOptions{
		SampleRate: cfg.SampleRate,
		Latency:    time.Duration(cfg.LatencyMS) * time.Millisecond,
	}, logger)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func newBackend(cfg config.HotkeysConfig) (firingBackend, error) {
	if cfg.Backend == "none" {
		return hotkey.NewNoopBackend(), nil
	}
	command := cfg.FireCmd.Argv
	if len(command) == 0 {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve fire command: %w", err)
		}
		command = []string{exe, "fire"}
	}
	return hotkey.NewHyprBackend(command), nil
}

var _ remote.Controller = (*session.Controller)(nil)
