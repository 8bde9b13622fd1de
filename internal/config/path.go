package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const appDir = "soundboard"

// ResolvePath applies CLI/XDG/home fallback rules for config.jsonc location.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, appDir, "config.jsonc"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}

	return filepath.Join(home, ".config", appDir, "config.jsonc"), nil
}

// ExpandUserPath expands a leading "~" to the home directory.
func ExpandUserPath(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw != "~" && !strings.HasPrefix(raw, "~/") {
		return raw
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return raw
	}
	return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(raw, "~"), "/"))
}

func defaultConfigPath(name string) string {
	return xdgPath("XDG_CONFIG_HOME", ".config", name)
}

func defaultDataPath(name string) string {
	return xdgPath("XDG_DATA_HOME", filepath.Join(".local", "share"), name)
}

func xdgPath(envKey, homeFallback, name string) string {
	if base := strings.TrimSpace(os.Getenv(envKey)); base != "" {
		return filepath.Join(base, appDir, name)
	}
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return filepath.Join(os.TempDir(), appDir, name)
	}
	return filepath.Join(home, homeFallback, appDir, name)
}
