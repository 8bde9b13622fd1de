// Package settings persists the user-editable runtime settings as YAML.
package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"

	"github.com/rbright/soundboard/internal/keys"
	"github.com/rbright/soundboard/internal/playback"
)

// Settings is the runtime settings document. An empty SecondaryDevice means none.
type Settings struct {
	EnableKeybinds        bool                        `yaml:"enable_keybinds"`
	OverlapSounds         bool                        `yaml:"overlap_sounds"`
	MainDevice            string                      `yaml:"main_device"`
	MainDeviceVolume      int                         `yaml:"main_device_volume"`
	SecondaryDevice       string                      `yaml:"secondary_device"`
	SecondaryDeviceVolume int                         `yaml:"secondary_device_volume"`
	Keybinds              map[string]keys.Combination `yaml:"keybinds,omitempty"`
	SelectedSoundboard    string                      `yaml:"selected_soundboard,omitempty"`
}

// Default returns the first-run settings.
func Default() Settings {
	return Settings{
		EnableKeybinds:        true,
		OverlapSounds:         true,
		MainDevice:            playback.DefaultDevice,
		MainDeviceVolume:      100,
		SecondaryDeviceVolume: 100,
	}
}

// Store guards the settings document. Mutations are in memory until Save.
type Store struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	current Settings
}

// Load reads path. A missing or empty file yields defaults.
func Load(path string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("settings path required")
	}
	s := &Store{path: path, logger: logger, current: Default()}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read settings %q: %w", path, err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return s, nil
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse settings %q: %w", path, err)
	}
	s.current = normalize(cfg)
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Snapshot returns a copy of the current settings.
func (s *Store) Snapshot() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.current)
}

// Update applies fn to a copy and stores the normalized result.
func (s *Store) Update(fn func(*Settings)) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := clone(s.current)
	fn(&next)
	s.current = normalize(next)
	return clone(s.current)
}

// KeybindsEnabled reports whether keybind dispatch is on.
func (s *Store) KeybindsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.EnableKeybinds
}

// PlaybackConfig returns the playback view of the settings.
func (s *Store) PlaybackConfig() playback.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return playback.Config{
		Overlap:         s.current.OverlapSounds,
		MainDevice:      s.current.MainDevice,
		MainVolume:      s.current.MainDeviceVolume,
		SecondaryDevice: s.current.SecondaryDevice,
		SecondaryVolume: s.current.SecondaryDeviceVolume,
	}
}

// Save writes the settings with temp-file + rename.
func (s *Store) Save() error {
	s.mu.RLock()
	raw, err := yaml.Marshal(s.current)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("save settings: marshal: %w", err)
	}
	if err := atomicWrite(s.path, raw); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Debug("settings saved", "path", s.path)
	}
	return nil
}

func normalize(cfg Settings) Settings {
	cfg.MainDevice = strings.TrimSpace(cfg.MainDevice)
	if cfg.MainDevice == "" {
		cfg.MainDevice = playback.DefaultDevice
	}
	cfg.SecondaryDevice = strings.TrimSpace(cfg.SecondaryDevice)
	if strings.EqualFold(cfg.SecondaryDevice, "none") {
		cfg.SecondaryDevice = ""
	}
	cfg.MainDeviceVolume = playback.ClampVolume(cfg.MainDeviceVolume)
	cfg.SecondaryDeviceVolume = playback.ClampVolume(cfg.SecondaryDeviceVolume)
	for name, combo := range cfg.Keybinds {
		if combo.Empty() {
			delete(cfg.Keybinds, name)
		}
	}
	cfg.SelectedSoundboard = strings.TrimSpace(cfg.SelectedSoundboard)
	return cfg
}

func clone(cfg Settings) Settings {
	if cfg.Keybinds != nil {
		binds := make(map[string]keys.Combination, len(cfg.Keybinds))
		for name, combo := range cfg.Keybinds {
			binds[name] = combo
		}
		cfg.Keybinds = binds
	}
	return cfg
}

func atomicWrite(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("save settings: mkdir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".settings.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("save settings: create temp: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		if tmpFile != nil {
			_ = tmpFile.Close()
		}
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if err = tmpFile.Chmod(0o600); err != nil {
		return fmt.Errorf("save settings: chmod temp: %w", err)
	}
	if _, err = tmpFile.Write(data); err != nil {
		return fmt.Errorf("save settings: write: %w", err)
	}
	if err = tmpFile.Sync(); err != nil {
		return fmt.Errorf("save settings: sync: %w", err)
	}
	err = tmpFile.Close()
	tmpFile = nil
	if err != nil {
		return fmt.Errorf("save settings: close: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("save settings: rename: %w", err)
	}
	return nil
}
