// Package session composes the library, settings, playback and keybind
// registry into the running soundboard daemon.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rbright/soundboard/internal/audio"
	"github.com/rbright/soundboard/internal/events"
	"github.com/rbright/soundboard/internal/hotkey"
	"github.com/rbright/soundboard/internal/library"
	"github.com/rbright/soundboard/internal/playback"
	"github.com/rbright/soundboard/internal/settings"
)

var (
	ErrUnknownAction  = errors.New("unknown action")
	ErrUnknownSetting = errors.New("unknown setting")
	ErrNoFiring       = errors.New("keybind backend does not accept fire requests")
)

// Indicator is the controller-facing subset of indicator behavior.
type Indicator interface {
	Warn(context.Context, string)
	Notice(context.Context, string)
}

type noopIndicator struct{}

func (noopIndicator) Warn(context.Context, string)   {}
func (noopIndicator) Notice(context.Context, string) {}

// FolderWatcher follows linked folders.
type FolderWatcher interface {
	Add(folder string) error
	Remove(folder string) error
}

// Firer accepts keypress reports from outside the process.
type Firer interface {
	Fire(id hotkey.ID) bool
}

// Texts renders notice strings.
type Texts interface {
	FileMissing(sound string) string
	PlayFailed(sound string) string
	KeybindsFailed(count int) string
	BoardSelected(board string) string
	Toggle(setting string, on bool) string
}

// Deps are the collaborators of a Controller. Library, Settings, Coordinator,
// Registry and Bus are required.
type Deps struct {
	Library     *library.Store
	Settings    *settings.Store
	Coordinator *playback.Coordinator
	Registry    *hotkey.Registry
	Bus         *events.Bus
	Firer       Firer
	Indicator   Indicator
	Texts       Texts
	Watcher     FolderWatcher
	Logger      *slog.Logger

	// Supported filters linked-folder files. Defaults to audio.Supported.
	Supported func(path string) bool
	// ResolveDevice canonicalizes an output device id. Nil accepts ids as given.
	ResolveDevice func(ctx context.Context, id string) (string, error)
}

// Controller runs soundboard operations on behalf of keybinds, IPC and remote clients.
type Controller struct {
	lib       *library.Store
	settings  *settings.Store
	coord     *playback.Coordinator
	registry  *hotkey.Registry
	bus       *events.Bus
	firer     Firer
	indicator Indicator
	texts     Texts
	watcher   FolderWatcher
	logger    *slog.Logger
	supported func(string) bool
	resolve   func(context.Context, string) (string, error)

	// edit serializes library mutations with their keybind and watcher side effects.
	edit sync.Mutex
}

// NewController wires a controller and installs it as the registry's handler.
func NewController(d Deps) *Controller {
	c := &Controller{
		lib:       d.Library,
		settings:  d.Settings,
		coord:     d.Coordinator,
		registry:  d.Registry,
		bus:       d.Bus,
		firer:     d.Firer,
		indicator: d.Indicator,
		texts:     d.Texts,
		watcher:   d.Watcher,
		logger:    d.Logger,
		supported: d.Supported,
		resolve:   d.ResolveDevice,
	}
	if c.indicator == nil {
		c.indicator = noopIndicator{}
	}
	if c.texts == nil {
		c.texts = defaultTexts{}
	}
	if c.supported == nil {
		c.supported = audio.Supported
	}
	c.registry.SetHandler(c)
	return c
}

// Start syncs linked folders, starts watching them and registers every keybind.
// Keybind and folder failures are logged and returned joined; the daemon stays
// usable. Refused keybinds also raise one warning through the indicator.
func (c *Controller) Start(ctx context.Context) error {
	var errs []error

	for folder, boardIDs := range c.lib.LinkedFolders() {
		for _, boardID := range boardIDs {
			if _, err := c.syncBoard(ctx, boardID); err != nil {
				errs = append(errs, err)
			}
		}
		if c.watcher != nil {
			if err := c.watcher.Add(folder); err != nil {
				c.logWarn("watch linked folder failed", "folder", folder, "error", err.Error())
				errs = append(errs, fmt.Errorf("watch %q: %w", folder, err))
			}
		}
	}

	if err := c.registerAll(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close stops playback and releases every keybind.
func (c *Controller) Close(ctx context.Context) error {
	c.coord.StopAll()
	err := c.registry.UnregisterAll(ctx)
	c.registry.Wait()
	return err
}

func (c *Controller) registerAll(ctx context.Context) error {
	var pending []<-chan hotkey.Outcome

	for _, board := range c.lib.Soundboards() {
		pending = append(pending, c.registry.Register(ctx, boardOwner(board.ID), board.Keys, hotkey.SelectSoundboard(board.ID)))
		for _, sound := range board.Sounds {
			pending = append(pending, c.registry.Register(ctx, soundOwner(sound.ID), sound.Keys, hotkey.PlaySound(sound.ID)))
		}
	}
	snapshot := c.settings.Snapshot()
	for _, name := range hotkey.NamedActions {
		pending = append(pending, c.registry.Register(ctx, actionOwner(name), snapshot.Keybinds[name], hotkey.Named(name)))
	}

	var errs []error
	registered := 0
	for _, ch := range pending {
		outcome := <-ch
		switch {
		case outcome.Err != nil:
			errs = append(errs, outcome.Err)
		case outcome.ID != "":
			registered++
		}
	}
	c.logInfo("keybinds registered", "count", registered, "failed", len(errs))
	if len(errs) > 0 {
		c.indicator.Warn(ctx, c.texts.KeybindsFailed(len(errs)))
	}
	return errors.Join(errs...)
}

func soundOwner(id string) hotkey.Owner {
	return hotkey.Owner{Kind: hotkey.OwnerSound, ID: id}
}

func boardOwner(id string) hotkey.Owner {
	return hotkey.Owner{Kind: hotkey.OwnerSoundboard, ID: id}
}

func actionOwner(name string) hotkey.Owner {
	return hotkey.Owner{Kind: hotkey.OwnerAction, ID: name}
}

func (c *Controller) logInfo(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Controller) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

type defaultTexts struct{}

func (defaultTexts) FileMissing(sound string) string   { return "Sound file missing: " + sound }
func (defaultTexts) PlayFailed(sound string) string    { return "Could not play " + sound }
func (defaultTexts) KeybindsFailed(count int) string   { return fmt.Sprintf("%d keybinds could not be registered", count) }
func (defaultTexts) BoardSelected(board string) string { return "Soundboard: " + board }
func (defaultTexts) Toggle(setting string, on bool) string {
	if on {
		return setting + " enabled"
	}
	return setting + " disabled"
}
