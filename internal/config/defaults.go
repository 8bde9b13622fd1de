package config

// Default returns the canonical configuration used when no file is present.
func Default() Config {
	return Config{
		Library:  LibraryConfig{Path: defaultDataPath("library.json")},
		Settings: SettingsConfig{Path: defaultConfigPath("settings.yaml")},
		Hotkeys: HotkeysConfig{
			Backend: "hypr",
		},
		Audio: AudioConfig{
			SampleRate: 48000,
			LatencyMS:  50,
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "hypr",
			DesktopAppName: "soundboard",
			SoundEnable:    true,
			ErrorTimeoutMS: 2500,
		},
		Watch: WatchConfig{
			Enable:     true,
			DebounceMS: 250,
		},
		EventFeed: EventFeedConfig{Addr: "127.0.0.1:7465"},
		Remote:    RemoteConfig{Addr: ""},
	}
}
