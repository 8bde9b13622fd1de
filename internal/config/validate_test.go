package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateDefaults(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestValidateRejectsInvalidCoreFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "empty library path", mutate: func(c *Config) { c.Library.Path = " " }, wantErr: "library.path"},
		{name: "empty settings path", mutate: func(c *Config) { c.Settings.Path = "" }, wantErr: "settings.path"},
		{name: "unknown hotkey backend", mutate: func(c *Config) { c.Hotkeys.Backend = "x11" }, wantErr: "hotkeys.backend"},
		{name: "low sample rate", mutate: func(c *Config) { c.Audio.SampleRate = 100 }, wantErr: "audio.sample_rate"},
		{name: "zero latency", mutate: func(c *Config) { c.Audio.LatencyMS = 0 }, wantErr: "audio.latency_ms"},
		{name: "unknown indicator backend", mutate: func(c *Config) { c.Indicator.Backend = "tray" }, wantErr: "indicator.backend"},
		{name: "desktop without app name", mutate: func(c *Config) {
			c.Indicator.Backend = "desktop"
			c.Indicator.DesktopAppName = ""
		}, wantErr: "desktop_app_name"},
		{name: "negative error timeout", mutate: func(c *Config) { c.Indicator.ErrorTimeoutMS = -1 }, wantErr: "error_timeout"},
		{name: "negative debounce", mutate: func(c *Config) { c.Watch.DebounceMS = -5 }, wantErr: "watch.debounce_ms"},
		{name: "bad event feed addr", mutate: func(c *Config) { c.EventFeed.Addr = "localhost" }, wantErr: "event_feed.addr"},
		{name: "bad remote addr", mutate: func(c *Config) { c.Remote.Addr = "nope" }, wantErr: "remote.addr"},
		{name: "colliding addrs", mutate: func(c *Config) {
			c.EventFeed.Addr = "127.0.0.1:9000"
			c.Remote.Addr = "127.0.0.1:9000"
		}, wantErr: "must differ"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)

			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	cfg := Default()
	cfg.Watch.DebounceMS = 0
	cfg.Indicator.Enable = false

	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 2)
	require.Contains(t, warnings[0].Message, "debounce_ms=0")
	require.Contains(t, warnings[1].Message, "sound_enable")
}

func TestValidateWarnsOnNonLoopbackEventFeed(t *testing.T) {
	for _, addr := range []string{"0.0.0.0:7465", ":7465", "192.168.1.20:7465"} {
		cfg := Default()
		cfg.EventFeed.Addr = addr
		warnings, err := Validate(cfg)
		require.NoError(t, err)
		require.Len(t, warnings, 1, addr)
		require.Contains(t, warnings[0].Message, "beyond loopback")
	}

	for _, addr := range []string{"127.0.0.1:7465", "[::1]:7465", "localhost:7465"} {
		cfg := Default()
		cfg.EventFeed.Addr = addr
		warnings, err := Validate(cfg)
		require.NoError(t, err)
		require.Empty(t, warnings, addr)
	}
}
