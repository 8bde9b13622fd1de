package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Library.Path) == "" {
		return nil, fmt.Errorf("library.path must not be empty")
	}
	if strings.TrimSpace(cfg.Settings.Path) == "" {
		return nil, fmt.Errorf("settings.path must not be empty")
	}

	switch cfg.Hotkeys.Backend {
	case "hypr", "none":
	default:
		return nil, fmt.Errorf("hotkeys.backend must be one of: hypr, none")
	}

	if cfg.Audio.SampleRate < 8000 || cfg.Audio.SampleRate > 192000 {
		return nil, fmt.Errorf("audio.sample_rate must be between 8000 and 192000")
	}
	if cfg.Audio.LatencyMS <= 0 {
		return nil, fmt.Errorf("audio.latency_ms must be > 0")
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend))
	if backend == "" {
		return nil, fmt.Errorf("indicator.backend must not be empty")
	}
	if backend != "hypr" && backend != "desktop" {
		return nil, fmt.Errorf("indicator.backend must be one of: hypr, desktop")
	}
	if backend == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	if cfg.Watch.DebounceMS < 0 {
		return nil, fmt.Errorf("watch.debounce_ms must be >= 0")
	}

	if err := validateAddr("event_feed.addr", cfg.EventFeed.Addr); err != nil {
		return nil, err
	}
	if err := validateAddr("remote.addr", cfg.Remote.Addr); err != nil {
		return nil, err
	}
	if cfg.EventFeed.Addr != "" && cfg.EventFeed.Addr == cfg.Remote.Addr {
		return nil, fmt.Errorf("event_feed.addr and remote.addr must differ")
	}

	if cfg.Watch.Enable && cfg.Watch.DebounceMS == 0 {
		warnings = append(warnings, Warning{Message: "watch.debounce_ms=0 resyncs on every filesystem event"})
	}
	if cfg.Indicator.SoundEnable && !cfg.Indicator.Enable {
		warnings = append(warnings, Warning{Message: "indicator.sound_enable has no effect when indicator.enable=false"})
	}
	if cfg.EventFeed.Addr != "" && !loopbackAddr(cfg.EventFeed.Addr) {
		warnings = append(warnings, Warning{Message: "event_feed.addr is reachable beyond loopback; browser clients from other origins are refused"})
	}

	return warnings, nil
}

func validateAddr(field, addr string) error {
	if addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s must be host:port: %w", field, err)
	}
	return nil
}

func loopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
