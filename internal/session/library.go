package session

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rbright/soundboard/internal/library"
	"github.com/rbright/soundboard/internal/settings"
)

// AddSoundboard creates a board, optionally linked to a folder that is synced and watched.
func (c *Controller) AddSoundboard(ctx context.Context, name, folder string) (library.Soundboard, error) {
	c.edit.Lock()
	defer c.edit.Unlock()

	board, err := c.lib.AddSoundboard(name, 100, folder)
	if err != nil {
		return library.Soundboard{}, err
	}
	if board.LinkedFolder != "" {
		if _, err := c.syncBoard(ctx, board.ID); err != nil {
			c.logWarn("initial folder sync failed", "soundboard", board.Name, "error", err.Error())
		}
		c.watch(board.LinkedFolder)
	}
	if err := c.lib.Save(); err != nil {
		return library.Soundboard{}, err
	}
	board, _ = c.lib.Soundboard(board.ID)
	return board, nil
}

// RemoveSoundboard deletes a board, stopping its sounds and releasing their keybinds.
func (c *Controller) RemoveSoundboard(ctx context.Context, ref string) error {
	c.edit.Lock()
	defer c.edit.Unlock()

	board, ok := c.lib.Soundboard(ref)
	if !ok {
		return fmt.Errorf("soundboard %q: %w", ref, library.ErrNotFound)
	}
	removed, err := c.lib.RemoveSoundboard(board.ID)
	if err != nil {
		return err
	}
	for _, sound := range removed.Sounds {
		c.retireSound(ctx, sound, &removed)
	}
	if err := c.registry.Unregister(ctx, boardOwner(removed.ID)); err != nil {
		c.logWarn("release soundboard keybind failed", "soundboard", removed.Name, "error", err.Error())
	}
	c.unwatch(removed.LinkedFolder)

	if c.settings.Snapshot().SelectedSoundboard == removed.ID {
		c.settings.Update(func(s *settings.Settings) { s.SelectedSoundboard = "" })
		if err := c.settings.Save(); err != nil {
			c.logWarn("save settings failed", "error", err.Error())
		}
	}
	return c.lib.Save()
}

// RenameSoundboard renames a board.
func (c *Controller) RenameSoundboard(_ context.Context, ref, name string) error {
	return c.editBoard(ref, func(id string) error { return c.lib.RenameSoundboard(id, name) })
}

// SetSoundboardVolume sets a board's volume. Playing sounds keep their gain.
func (c *Controller) SetSoundboardVolume(_ context.Context, ref string, volume int) error {
	return c.editBoard(ref, func(id string) error { return c.lib.SetSoundboardVolume(id, volume) })
}

// MoveSoundboard reorders a board.
func (c *Controller) MoveSoundboard(_ context.Context, ref string, index int) error {
	return c.editBoard(ref, func(id string) error { return c.lib.MoveSoundboard(id, index) })
}

// LinkFolder links a board to folder (or unlinks it when folder is empty) and resyncs.
func (c *Controller) LinkFolder(ctx context.Context, ref, folder string) (library.SyncResult, error) {
	c.edit.Lock()
	defer c.edit.Unlock()

	board, ok := c.lib.Soundboard(ref)
	if !ok {
		return library.SyncResult{}, fmt.Errorf("soundboard %q: %w", ref, library.ErrNotFound)
	}
	folder = strings.TrimSpace(folder)
	if folder != "" {
		abs, err := filepath.Abs(folder)
		if err != nil {
			return library.SyncResult{}, fmt.Errorf("resolve folder %q: %w", folder, err)
		}
		folder = abs
	}
	if err := c.lib.SetLinkedFolder(board.ID, folder); err != nil {
		return library.SyncResult{}, err
	}
	if board.LinkedFolder != folder {
		c.unwatch(board.LinkedFolder)
	}

	var result library.SyncResult
	if folder != "" {
		var err error
		if result, err = c.syncBoard(ctx, board.ID); err != nil {
			return library.SyncResult{}, err
		}
		c.watch(folder)
	}
	return result, c.lib.Save()
}

// AddSound adds a file to a board. An empty name uses the file's base name.
func (c *Controller) AddSound(_ context.Context, boardRef, path, name string) (library.Sound, error) {
	c.edit.Lock()
	defer c.edit.Unlock()

	board, ok := c.lib.Soundboard(boardRef)
	if !ok {
		return library.Sound{}, fmt.Errorf("soundboard %q: %w", boardRef, library.ErrNotFound)
	}
	abs, err := filepath.Abs(strings.TrimSpace(path))
	if err != nil {
		return library.Sound{}, fmt.Errorf("resolve sound path %q: %w", path, err)
	}
	if !c.supported(abs) {
		return library.Sound{}, fmt.Errorf("unsupported audio format: %s", filepath.Ext(abs))
	}
	if strings.TrimSpace(name) == "" {
		name = strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	}
	sound, err := c.lib.AddSound(board.ID, name, abs, 100)
	if err != nil {
		return library.Sound{}, err
	}
	return sound, c.lib.Save()
}

// RemoveSound deletes a sound, stopping it and releasing its keybind.
func (c *Controller) RemoveSound(ctx context.Context, ref string) error {
	c.edit.Lock()
	defer c.edit.Unlock()

	sound, ok := c.lib.Sound(ref)
	if !ok {
		return fmt.Errorf("sound %q: %w", ref, library.ErrNotFound)
	}
	board, _ := c.lib.Soundboard(sound.SoundboardID)
	if _, err := c.lib.RemoveSound(sound.ID); err != nil {
		return err
	}
	c.retireSound(ctx, sound, &board)
	return c.lib.Save()
}

// RenameSound renames a sound within its board.
func (c *Controller) RenameSound(_ context.Context, ref, name string) error {
	return c.editSound(ref, func(id string) error { return c.lib.RenameSound(id, name) })
}

// SetSoundVolume sets a sound's volume. Instances already playing keep their gain.
func (c *Controller) SetSoundVolume(_ context.Context, ref string, volume int) error {
	return c.editSound(ref, func(id string) error { return c.lib.SetSoundVolume(id, volume) })
}

// MoveSound reorders a sound within its board.
func (c *Controller) MoveSound(_ context.Context, ref string, index int) error {
	return c.editSound(ref, func(id string) error { return c.lib.MoveSound(id, index) })
}

// Sync resyncs a linked board with its folder.
func (c *Controller) Sync(ctx context.Context, ref string) (library.SyncResult, error) {
	c.edit.Lock()
	defer c.edit.Unlock()

	board, ok := c.lib.Soundboard(ref)
	if !ok {
		return library.SyncResult{}, fmt.Errorf("soundboard %q: %w", ref, library.ErrNotFound)
	}
	return c.syncBoard(ctx, board.ID)
}

// FolderChanged is the folder watcher callback.
func (c *Controller) FolderChanged(folder string) {
	c.edit.Lock()
	defer c.edit.Unlock()
	for linked, boardIDs := range c.lib.LinkedFolders() {
		if filepath.Clean(linked) != filepath.Clean(folder) {
			continue
		}
		for _, boardID := range boardIDs {
			if _, err := c.syncBoard(context.Background(), boardID); err != nil {
				c.logWarn("linked folder sync failed", "folder", folder, "error", err.Error())
			}
		}
	}
}

// syncBoard requires c.edit held (or single-threaded startup).
func (c *Controller) syncBoard(ctx context.Context, boardID string) (library.SyncResult, error) {
	result, err := c.lib.SyncFolder(boardID, c.supported)
	if err != nil {
		return library.SyncResult{}, err
	}
	if !result.Changed() {
		return result, nil
	}

	board, _ := c.lib.Soundboard(boardID)
	for _, sound := range result.Removed {
		c.retireSound(ctx, sound, &board)
	}
	c.logInfo("linked folder synced",
		"soundboard", board.Name,
		"added", len(result.Added),
		"removed", len(result.Removed),
	)
	return result, c.lib.Save()
}

// retireSound stops a removed sound and releases its keybind.
func (c *Controller) retireSound(ctx context.Context, sound library.Sound, board *library.Soundboard) {
	if c.coord.IsPlaying(sound.ID) {
		c.coord.StopSound(library.PlaybackSound(sound, board))
	}
	if err := c.registry.Unregister(ctx, soundOwner(sound.ID)); err != nil {
		c.logWarn("release sound keybind failed", "sound", sound.Name, "error", err.Error())
	}
}

func (c *Controller) editBoard(ref string, fn func(id string) error) error {
	c.edit.Lock()
	defer c.edit.Unlock()
	board, ok := c.lib.Soundboard(ref)
	if !ok {
		return fmt.Errorf("soundboard %q: %w", ref, library.ErrNotFound)
	}
	if err := fn(board.ID); err != nil {
		return err
	}
	return c.lib.Save()
}

func (c *Controller) editSound(ref string, fn func(id string) error) error {
	c.edit.Lock()
	defer c.edit.Unlock()
	sound, ok := c.lib.Sound(ref)
	if !ok {
		return fmt.Errorf("sound %q: %w", ref, library.ErrNotFound)
	}
	if err := fn(sound.ID); err != nil {
		return err
	}
	return c.lib.Save()
}

func (c *Controller) watch(folder string) {
	if c.watcher == nil || folder == "" {
		return
	}
	if err := c.watcher.Add(folder); err != nil {
		c.logWarn("watch linked folder failed", "folder", folder, "error", err.Error())
	}
}

// unwatch keeps watching folders another board still links.
func (c *Controller) unwatch(folder string) {
	if c.watcher == nil || folder == "" {
		return
	}
	if len(c.lib.LinkedFolders()[folder]) > 0 {
		return
	}
	if err := c.watcher.Remove(folder); err != nil {
		c.logWarn("unwatch linked folder failed", "folder", folder, "error", err.Error())
	}
}
