// Package config resolves, parses, validates, and defaults soundboard daemon configuration.
package config

// Config is the fully materialized daemon configuration.
type Config struct {
	Library   LibraryConfig
	Settings  SettingsConfig
	Hotkeys   HotkeysConfig
	Audio     AudioConfig
	Indicator IndicatorConfig
	Watch     WatchConfig
	EventFeed EventFeedConfig
	Remote    RemoteConfig
}

// LibraryConfig locates the soundboard library document.
type LibraryConfig struct {
	Path string
}

// SettingsConfig locates the writable runtime settings document.
type SettingsConfig struct {
	Path string
}

// HotkeysConfig selects the global hotkey backend.
type HotkeysConfig struct {
	// Backend is "hypr" or "none".
	Backend string
	// FireCmd is what the compositor runs on a keypress, with the id appended.
	// Empty means the running executable followed by "fire".
	FireCmd CommandConfig
}

// AudioConfig tunes output streams.
type AudioConfig struct {
	SampleRate int
	LatencyMS  int
}

// IndicatorConfig controls user-visible warnings and the error cue.
type IndicatorConfig struct {
	Enable         bool
	Backend        string
	DesktopAppName string
	SoundEnable    bool
	SoundErrorFile string
	ErrorTimeoutMS int
}

// WatchConfig controls linked-folder watching.
type WatchConfig struct {
	Enable     bool
	DebounceMS int
}

// EventFeedConfig controls the websocket event feed. Empty Addr disables it.
type EventFeedConfig struct {
	Addr string
}

// RemoteConfig controls the gRPC remote-control server. Empty Addr disables it.
type RemoteConfig struct {
	Addr string
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
