package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rbright/soundboard/internal/keys"
	"github.com/rbright/soundboard/internal/playback"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "settings.yaml"), nil)
	require.NoError(t, err)
	require.Equal(t, Default(), s.Snapshot())
	require.True(t, s.KeybindsEnabled())
}

func TestLoadRequiresPath(t *testing.T) {
	_, err := Load(" ", nil)
	require.Error(t, err)
}

func TestLoadAppliesFileOverDefaultsAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
overlap_sounds: false
main_device: ""
main_device_volume: 180
secondary_device: none
keybinds:
  stop-all: ctrl+shift+s
  toggle-overlap: null
selected_soundboard: " Memes "
`), 0o600))

	s, err := Load(path, nil)
	require.NoError(t, err)
	got := s.Snapshot()
	require.True(t, got.EnableKeybinds)
	require.False(t, got.OverlapSounds)
	require.Equal(t, playback.DefaultDevice, got.MainDevice)
	require.Equal(t, 100, got.MainDeviceVolume)
	require.Empty(t, got.SecondaryDevice)
	require.Equal(t, 100, got.SecondaryDeviceVolume)
	require.Equal(t, "CTRL+SHIFT+S", got.Keybinds["stop-all"].String())
	require.NotContains(t, got.Keybinds, "toggle-overlap")
	require.Equal(t, "Memes", got.SelectedSoundboard)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("overlap_sounds: [\n"), 0o600))
	_, err := Load(path, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse settings")
}

func TestPlaybackConfigReflectsUpdates(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "settings.yaml"), nil)
	require.NoError(t, err)

	s.Update(func(cfg *Settings) {
		cfg.OverlapSounds = false
		cfg.SecondaryDevice = "virtual_mic"
		cfg.SecondaryDeviceVolume = -3
	})

	require.Equal(t, playback.Config{
		Overlap:         false,
		MainDevice:      playback.DefaultDevice,
		MainVolume:      100,
		SecondaryDevice: "virtual_mic",
		SecondaryVolume: 0,
	}, s.PlaybackConfig())
}

func TestSnapshotIsolatesKeybindMap(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "settings.yaml"), nil)
	require.NoError(t, err)
	s.Update(func(cfg *Settings) {
		cfg.Keybinds = map[string]keys.Combination{"stop-all": mustKeys(t, "f12")}
	})

	snap := s.Snapshot()
	snap.Keybinds["stop-all"] = mustKeys(t, "f1")
	require.Equal(t, "F12", s.Snapshot().Keybinds["stop-all"].String())
}

func TestSaveRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
	s, err := Load(path, nil)
	require.NoError(t, err)
	s.Update(func(cfg *Settings) {
		cfg.EnableKeybinds = false
		cfg.Keybinds = map[string]keys.Combination{"toggle-keybinds": mustKeys(t, "super+k")}
	})
	require.NoError(t, s.Save())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reloaded, err := Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, s.Snapshot(), reloaded.Snapshot())
	require.False(t, reloaded.KeybindsEnabled())
}

func mustKeys(t *testing.T, raw string) keys.Combination {
	t.Helper()
	combo, err := keys.Parse(raw)
	require.NoError(t, err)
	return combo
}
