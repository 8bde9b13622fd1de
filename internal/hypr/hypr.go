// Package hypr wraps the hyprctl commands the daemon needs.
package hypr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrKeywordRejected is returned when hyprctl answers a keyword with anything but "ok".
var ErrKeywordRejected = errors.New("hyprctl keyword rejected")

// Bind adds a keybind running dispatcher with arg, e.g. Bind(ctx, "CTRL SHIFT", "F1", "exec", "soundboard fire x").
func Bind(ctx context.Context, mods, key, dispatcher, arg string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("bind requires a key")
	}
	return Keyword(ctx, "bind", strings.Join([]string{mods, key, dispatcher, arg}, ","))
}

// Unbind removes every bind on the mods/key pair.
func Unbind(ctx context.Context, mods, key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("unbind requires a key")
	}
	return Keyword(ctx, "unbind", mods+","+key)
}

// Keyword sets a runtime config keyword.
func Keyword(ctx context.Context, name, value string) error {
	out, err := runHyprctlOutput(ctx, "keyword", name, value)
	if err != nil {
		return err
	}
	reply := strings.TrimSpace(string(out))
	if reply != "ok" {
		return fmt.Errorf("%w: keyword %s %q: %s", ErrKeywordRejected, name, value, reply)
	}
	return nil
}

// QueryVersion returns the running compositor's version tag.
func QueryVersion(ctx context.Context) (string, error) {
	output, err := runHyprctlOutput(ctx, "-j", "version")
	if err != nil {
		return "", err
	}
	var payload struct {
		Tag string `json:"tag"`
	}
	if err := json.Unmarshal(output, &payload); err != nil {
		return "", fmt.Errorf("decode hyprctl version json: %w", err)
	}
	tag := strings.TrimSpace(payload.Tag)
	if tag == "" {
		return "", errors.New("hyprctl version returned empty tag")
	}
	return tag, nil
}

// Keybind is one entry of `hyprctl -j binds`.
type Keybind struct {
	Modmask    int    `json:"modmask"`
	Key        string `json:"key"`
	Dispatcher string `json:"dispatcher"`
	Arg        string `json:"arg"`
}

// QueryBinds lists the compositor's active keybinds.
func QueryBinds(ctx context.Context) ([]Keybind, error) {
	output, err := runHyprctlOutput(ctx, "-j", "binds")
	if err != nil {
		return nil, err
	}
	var binds []Keybind
	if err := json.Unmarshal(output, &binds); err != nil {
		return nil, fmt.Errorf("decode hyprctl binds json: %w", err)
	}
	return binds, nil
}

var modBits = map[string]int{
	"SHIFT": 1,
	"CAPS":  2,
	"CTRL":  4,
	"ALT":   8,
	"MOD2":  16,
	"MOD3":  32,
	"SUPER": 64,
	"MOD5":  128,
}

// ModMask converts space-separated modifier names to Hyprland's modmask.
func ModMask(mods string) int {
	mask := 0
	for _, mod := range strings.Fields(strings.ToUpper(mods)) {
		mask |= modBits[mod]
	}
	return mask
}

func runHyprctl(ctx context.Context, args ...string) error {
	_, err := runHyprctlOutput(ctx, args...)
	return err
}

func runHyprctlOutput(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "hyprctl", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return nil, fmt.Errorf("hyprctl %v failed: %w", args, err)
		}
		return nil, fmt.Errorf("hyprctl %v failed: %w (%s)", args, err, trimmed)
	}
	return out, nil
}
