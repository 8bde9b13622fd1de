package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rbright/soundboard/internal/events"
	"github.com/rbright/soundboard/internal/hotkey"
	"github.com/rbright/soundboard/internal/keys"
	"github.com/rbright/soundboard/internal/library"
	"github.com/rbright/soundboard/internal/playback"
	"github.com/rbright/soundboard/internal/settings"
)

// PlayingSound is one entry of the playing set.
type PlayingSound struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	SoundboardID string `json:"soundboardId,omitempty"`
}

// Status is a point-in-time view of the daemon.
type Status struct {
	State              string         `json:"state"`
	Playing            []PlayingSound `json:"playing"`
	SelectedSoundboard string         `json:"selectedSoundboard,omitempty"`
	KeybindsEnabled    bool           `json:"keybindsEnabled"`
	OverlapSounds      bool           `json:"overlapSounds"`
	Locked             bool           `json:"locked"`
	Keybinds           int            `json:"keybinds"`
	MainDevice         string         `json:"mainDevice"`
	SecondaryDevice    string         `json:"secondaryDevice,omitempty"`
}

// Play starts the sound referenced by id, name or "board/sound".
func (c *Controller) Play(ctx context.Context, ref string) error {
	sound, ok := c.lib.PlaybackSound(ref)
	if !ok {
		return fmt.Errorf("sound %q: %w", ref, library.ErrNotFound)
	}
	if err := c.coord.PlaySound(sound); err != nil {
		if errors.Is(err, playback.ErrFileMissing) {
			c.indicator.Warn(ctx, c.texts.FileMissing(sound.Name))
		} else {
			c.indicator.Warn(ctx, c.texts.PlayFailed(sound.Name))
		}
		return err
	}
	return nil
}

// Stop stops the referenced sound. Stopping an idle sound still notifies listeners.
func (c *Controller) Stop(_ context.Context, ref string) error {
	sound, ok := c.lib.PlaybackSound(ref)
	if !ok {
		return fmt.Errorf("sound %q: %w", ref, library.ErrNotFound)
	}
	c.coord.StopSound(sound)
	return nil
}

// StopAll stops every playing sound.
func (c *Controller) StopAll(context.Context) {
	c.coord.StopAll()
}

// Select marks a soundboard as selected and announces it.
func (c *Controller) Select(ctx context.Context, ref string) error {
	board, ok := c.lib.Soundboard(ref)
	if !ok {
		return fmt.Errorf("soundboard %q: %w", ref, library.ErrNotFound)
	}
	c.settings.Update(func(s *settings.Settings) { s.SelectedSoundboard = board.ID })
	if err := c.settings.Save(); err != nil {
		c.logWarn("save settings failed", "error", err.Error())
	}
	c.bus.Emit(events.Event{
		Kind:           events.SoundboardSelected,
		SoundboardID:   board.ID,
		SoundboardName: board.Name,
	})
	c.indicator.Notice(ctx, c.texts.BoardSelected(board.Name))
	return nil
}

// Selected returns the selected soundboard, if it still exists.
func (c *Controller) Selected() (library.Soundboard, bool) {
	id := c.settings.Snapshot().SelectedSoundboard
	if id == "" {
		return library.Soundboard{}, false
	}
	return c.lib.Soundboard(id)
}

// PlaySound implements hotkey.Handler.
func (c *Controller) PlaySound(ctx context.Context, soundID string) error {
	return c.Play(ctx, soundID)
}

// SelectSoundboard implements hotkey.Handler.
func (c *Controller) SelectSoundboard(ctx context.Context, boardID string) error {
	return c.Select(ctx, boardID)
}

// RunNamed implements hotkey.Handler.
func (c *Controller) RunNamed(ctx context.Context, name string) error {
	switch name {
	case hotkey.NamedStopAll:
		c.StopAll(ctx)
		return nil
	case hotkey.NamedToggleKeybinds:
		return c.toggle(ctx, "keybinds", func(s *settings.Settings) bool {
			s.EnableKeybinds = !s.EnableKeybinds
			return s.EnableKeybinds
		})
	case hotkey.NamedToggleOverlap:
		return c.toggle(ctx, "overlap", func(s *settings.Settings) bool {
			s.OverlapSounds = !s.OverlapSounds
			return s.OverlapSounds
		})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
}

func (c *Controller) toggle(ctx context.Context, setting string, flip func(*settings.Settings) bool) error {
	var on bool
	c.settings.Update(func(s *settings.Settings) { on = flip(s) })
	if err := c.settings.Save(); err != nil {
		return err
	}
	c.logInfo("setting toggled", "setting", setting, "enabled", on)
	c.indicator.Notice(ctx, c.texts.Toggle(setting, on))
	return nil
}

// Fire reports a keypress for a backend registration id.
func (c *Controller) Fire(_ context.Context, id string) error {
	if c.firer == nil {
		return ErrNoFiring
	}
	if !c.firer.Fire(hotkey.ID(strings.TrimSpace(id))) {
		return errors.New("keybind queue full; press dropped")
	}
	return nil
}

// SetLocked suspends or resumes keybind dispatch.
func (c *Controller) SetLocked(locked bool) {
	c.registry.SetLocked(locked)
	c.logInfo("keybinds lock changed", "locked", locked)
}

// Bind assigns combo to a target and registers it. Targets are "action:<name>",
// "soundboard:<ref>" or a sound reference (optionally "sound:<ref>").
func (c *Controller) Bind(ctx context.Context, target string, combo keys.Combination) error {
	if combo.Empty() {
		return errors.New("empty key combination; use unbind")
	}
	return c.setKeys(ctx, target, combo)
}

// Unbind clears a target's combination and releases its registration.
func (c *Controller) Unbind(ctx context.Context, target string) error {
	return c.setKeys(ctx, target, keys.Combination{})
}

func (c *Controller) setKeys(ctx context.Context, target string, combo keys.Combination) error {
	c.edit.Lock()
	defer c.edit.Unlock()

	owner, action, err := c.resolveTarget(target)
	if err != nil {
		return err
	}

	switch owner.Kind {
	case hotkey.OwnerAction:
		c.settings.Update(func(s *settings.Settings) {
			if s.Keybinds == nil {
				s.Keybinds = make(map[string]keys.Combination)
			}
			s.Keybinds[owner.ID] = combo
		})
		err = c.settings.Save()
	case hotkey.OwnerSoundboard:
		if err = c.lib.SetSoundboardKeys(owner.ID, combo); err == nil {
			err = c.lib.Save()
		}
	default:
		if err = c.lib.SetSoundKeys(owner.ID, combo); err == nil {
			err = c.lib.Save()
		}
	}
	if err != nil {
		return err
	}

	if combo.Empty() {
		return c.registry.Unregister(ctx, owner)
	}
	return c.registry.RegisterWait(ctx, owner, combo, action)
}

func (c *Controller) resolveTarget(target string) (hotkey.Owner, hotkey.Action, error) {
	kind, ref, hasKind := strings.Cut(strings.TrimSpace(target), ":")
	if !hasKind {
		kind, ref = string(hotkey.OwnerSound), target
	}

	switch hotkey.OwnerKind(strings.ToLower(kind)) {
	case hotkey.OwnerAction:
		for _, name := range hotkey.NamedActions {
			if name == ref {
				return actionOwner(name), hotkey.Named(name), nil
			}
		}
		return hotkey.Owner{}, hotkey.Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, ref)
	case hotkey.OwnerSoundboard, "board":
		board, ok := c.lib.Soundboard(ref)
		if !ok {
			return hotkey.Owner{}, hotkey.Action{}, fmt.Errorf("soundboard %q: %w", ref, library.ErrNotFound)
		}
		return boardOwner(board.ID), hotkey.SelectSoundboard(board.ID), nil
	case hotkey.OwnerSound:
		sound, ok := c.lib.Sound(ref)
		if !ok {
			return hotkey.Owner{}, hotkey.Action{}, fmt.Errorf("sound %q: %w", ref, library.ErrNotFound)
		}
		return soundOwner(sound.ID), hotkey.PlaySound(sound.ID), nil
	default:
		// Unrecognized prefix: the colon belongs to the sound name.
		sound, ok := c.lib.Sound(target)
		if !ok {
			return hotkey.Owner{}, hotkey.Action{}, fmt.Errorf("sound %q: %w", target, library.ErrNotFound)
		}
		return soundOwner(sound.ID), hotkey.PlaySound(sound.ID), nil
	}
}

// Set changes one runtime setting and persists it.
//
//	overlap on|off, keybinds on|off, main-device ID, main-volume N,
//	secondary-device ID|none, secondary-volume N
func (c *Controller) Set(ctx context.Context, key, value string) error {
	value = strings.TrimSpace(value)
	var apply func(*settings.Settings)

	switch key {
	case "overlap", "keybinds":
		on, err := parseSwitch(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		apply = func(s *settings.Settings) {
			if key == "overlap" {
				s.OverlapSounds = on
			} else {
				s.EnableKeybinds = on
			}
		}
	case "main-device", "secondary-device":
		device, err := c.resolveDevice(ctx, value, key == "secondary-device")
		if err != nil {
			return err
		}
		apply = func(s *settings.Settings) {
			if key == "main-device" {
				s.MainDevice = device
			} else {
				s.SecondaryDevice = device
			}
		}
	case "main-volume", "secondary-volume":
		volume, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: volume must be an integer: %w", key, err)
		}
		apply = func(s *settings.Settings) {
			if key == "main-volume" {
				s.MainDeviceVolume = volume
			} else {
				s.SecondaryDeviceVolume = volume
			}
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSetting, key)
	}

	c.settings.Update(apply)
	return c.settings.Save()
}

func (c *Controller) resolveDevice(ctx context.Context, id string, optional bool) (string, error) {
	if optional && (id == "" || strings.EqualFold(id, "none")) {
		return "", nil
	}
	if id == "" {
		id = playback.DefaultDevice
	}
	if c.resolve == nil || id == playback.DefaultDevice {
		return id, nil
	}
	return c.resolve(ctx, id)
}

func parseSwitch(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", raw)
	}
}

// Status reports the playing set and runtime toggles.
func (c *Controller) Status(context.Context) Status {
	snapshot := c.settings.Snapshot()
	playing := c.coord.Playing()

	out := Status{
		State:              string(c.coord.Overall()),
		Playing:            make([]PlayingSound, 0, len(playing)),
		SelectedSoundboard: snapshot.SelectedSoundboard,
		KeybindsEnabled:    snapshot.EnableKeybinds,
		OverlapSounds:      snapshot.OverlapSounds,
		Locked:             c.registry.Locked(),
		Keybinds:           len(c.registry.Bindings()),
		MainDevice:         snapshot.MainDevice,
		SecondaryDevice:    snapshot.SecondaryDevice,
	}
	for _, sound := range playing {
		out.Playing = append(out.Playing, PlayingSound{ID: sound.ID, Name: sound.Name, SoundboardID: sound.BoardID()})
	}
	return out
}

// Soundboards lists the library in display order.
func (c *Controller) Soundboards() []library.Soundboard {
	return c.lib.Soundboards()
}

// Bindings lists live keybind registrations.
func (c *Controller) Bindings() []hotkey.Binding {
	return c.registry.Bindings()
}

// Settings returns the current runtime settings.
func (c *Controller) Settings() settings.Settings {
	return c.settings.Snapshot()
}
