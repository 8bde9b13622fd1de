package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Loaded is the outcome of Load: the file consulted, the effective config and
// anything worth warning about.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load reads the config file at explicitPath (or the XDG default) over
// Default(). A missing file is not an error. Relative library, settings and
// error-cue paths in the file are anchored at the file's directory.
func Load(explicitPath string) (Loaded, error) {
	path, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}
	out := Loaded{Path: path, Config: Default()}

	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		out.Warnings = append(out.Warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", path),
		})
		return out, nil
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", path, err)
	}
	out.Exists = true

	cfg, warnings, err := Parse(string(content), out.Config)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", path, err)
	}

	base := filepath.Dir(path)
	cfg.Library.Path = anchor(base, cfg.Library.Path)
	cfg.Settings.Path = anchor(base, cfg.Settings.Path)
	cfg.Indicator.SoundErrorFile = anchor(base, cfg.Indicator.SoundErrorFile)

	out.Config = cfg
	out.Warnings = warnings
	return out, nil
}

func anchor(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
