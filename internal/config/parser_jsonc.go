package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// jsoncConfig mirrors the file layout. Pointer fields tell "absent" from zero.
type jsoncConfig struct {
	Library   *jsoncPathSection `json:"library"`
	Settings  *jsoncPathSection `json:"settings"`
	Hotkeys   *jsoncHotkeys     `json:"hotkeys"`
	Audio     *jsoncAudio       `json:"audio"`
	Indicator *jsoncIndicator   `json:"indicator"`
	Watch     *jsoncWatch       `json:"watch"`
	EventFeed *jsoncAddr        `json:"event_feed"`
	Remote    *jsoncAddr        `json:"remote"`
}

type jsoncPathSection struct {
	Path *string `json:"path"`
}

type jsoncHotkeys struct {
	Backend *string `json:"backend"`
	FireCmd *string `json:"fire_cmd"`
}

type jsoncAudio struct {
	SampleRate *int `json:"sample_rate"`
	LatencyMS  *int `json:"latency_ms"`
}

type jsoncIndicator struct {
	Enable         *bool   `json:"enable"`
	Backend        *string `json:"backend"`
	DesktopAppName *string `json:"desktop_app_name"`
	SoundEnable    *bool   `json:"sound_enable"`
	SoundErrorFile *string `json:"sound_error_file"`
	ErrorTimeoutMS *int    `json:"error_timeout_ms"`
}

type jsoncWatch struct {
	Enable     *bool `json:"enable"`
	DebounceMS *int  `json:"debounce_ms"`
}

type jsoncAddr struct {
	Addr *string `json:"addr"`
}

func parseJSONC(normalized string, base Config) (Config, []Warning, error) {
	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, withLocation(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, withLocation(normalized, err)
	}

	cfg := base
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}
	more, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, append(warnings, more...), nil
}

// applyTo overlays every field present in the payload onto cfg.
func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	if s := payload.Library; s != nil {
		overlay(&cfg.Library.Path, s.Path, ExpandUserPath)
	}
	if s := payload.Settings; s != nil {
		overlay(&cfg.Settings.Path, s.Path, ExpandUserPath)
	}

	if s := payload.Hotkeys; s != nil {
		overlay(&cfg.Hotkeys.Backend, s.Backend, lowerTrim)
		if s.FireCmd != nil {
			fire, err := ParseCommand(*s.FireCmd)
			if err != nil {
				return nil, fmt.Errorf("invalid hotkeys.fire_cmd: %w", err)
			}
			cfg.Hotkeys.FireCmd = fire
		}
	}

	if s := payload.Audio; s != nil {
		overlay(&cfg.Audio.SampleRate, s.SampleRate, nil)
		overlay(&cfg.Audio.LatencyMS, s.LatencyMS, nil)
	}

	if s := payload.Indicator; s != nil {
		overlay(&cfg.Indicator.Enable, s.Enable, nil)
		overlay(&cfg.Indicator.Backend, s.Backend, strings.TrimSpace)
		overlay(&cfg.Indicator.DesktopAppName, s.DesktopAppName, strings.TrimSpace)
		overlay(&cfg.Indicator.SoundEnable, s.SoundEnable, nil)
		overlay(&cfg.Indicator.SoundErrorFile, s.SoundErrorFile, ExpandUserPath)
		overlay(&cfg.Indicator.ErrorTimeoutMS, s.ErrorTimeoutMS, nil)
	}

	if s := payload.Watch; s != nil {
		overlay(&cfg.Watch.Enable, s.Enable, nil)
		overlay(&cfg.Watch.DebounceMS, s.DebounceMS, nil)
	}
	if s := payload.EventFeed; s != nil {
		overlay(&cfg.EventFeed.Addr, s.Addr, strings.TrimSpace)
	}
	if s := payload.Remote; s != nil {
		overlay(&cfg.Remote.Addr, s.Addr, strings.TrimSpace)
	}

	var warnings []Warning
	if cfg.Hotkeys.Backend == "none" && !cfg.Hotkeys.FireCmd.Empty() {
		warnings = append(warnings, Warning{Message: "hotkeys.fire_cmd is ignored when hotkeys.backend=none"})
	}
	return warnings, nil
}

// overlay stores *src into dst when src is set, through norm when non-nil.
func overlay[T any](dst *T, src *T, norm func(T) T) {
	if src == nil {
		return
	}
	v := *src
	if norm != nil {
		v = norm(v)
	}
	*dst = v
}

func lowerTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
