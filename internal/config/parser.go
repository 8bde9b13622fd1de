package config

import (
	"errors"
	"strings"
)

// Parse overlays JSONC content onto base and validates the result. Blank
// content validates base unchanged.
func Parse(content string, base Config) (Config, []Warning, error) {
	if strings.TrimSpace(content) == "" {
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	}

	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}
	if body := strings.TrimSpace(normalized); body == "" || body[0] != '{' {
		return Config{}, nil, errors.New("config must be a JSONC object")
	}
	return parseJSONC(normalized, base)
}
