// Package doctor runs readiness diagnostics for config, Hyprland, audio output, and the library.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/rbright/soundboard/internal/audio"
	"github.com/rbright/soundboard/internal/config"
	"github.com/rbright/soundboard/internal/hotkey"
	"github.com/rbright/soundboard/internal/hypr"
	"github.com/rbright/soundboard/internal/keys"
	"github.com/rbright/soundboard/internal/library"
	"github.com/rbright/soundboard/internal/remote"
	"github.com/rbright/soundboard/internal/settings"
)

const probeTimeout = 2 * time.Second

// resolveDevice is swapped in tests.
var resolveDevice = audio.ResolveDevice

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{checkConfig(cfg)}
	hyprBinds := false

	usesHypr := cfg.Config.Hotkeys.Backend == "hypr" ||
		(cfg.Config.Indicator.Enable && cfg.Config.Indicator.Backend == "hypr")
	if usesHypr {
		checks = append(checks, checkEnv("XDG_SESSION_TYPE", func(v string) bool {
			return strings.EqualFold(strings.TrimSpace(v), "wayland")
		}, "session type is wayland", "expected XDG_SESSION_TYPE=wayland"))

		checks = append(checks, checkEnv("HYPRLAND_INSTANCE_SIGNATURE", func(v string) bool {
			return strings.TrimSpace(v) != ""
		}, "Hyprland session detected", "HYPRLAND_INSTANCE_SIGNATURE is empty"))

		hyprctl := checkBinary("hyprctl", "keybinds and notices use hyprctl")
		checks = append(checks, hyprctl)
		if hyprctl.Pass {
			checks = append(checks, checkHyprVersion(ctx))
			hyprBinds = cfg.Config.Hotkeys.Backend == "hypr"
		}
	}

	if cfg.Config.Hotkeys.Backend == "hypr" && !cfg.Config.Hotkeys.FireCmd.Empty() {
		checks = append(checks, checkCommand(cfg.Config.Hotkeys.FireCmd.Argv, "fire_cmd"))
	}

	store, settingsCheck := checkSettings(cfg.Config.Settings.Path)
	checks = append(checks, settingsCheck)
	if store != nil {
		snap := store.Snapshot()
		checks = append(checks, checkDevice(ctx, "audio.main", snap.MainDevice))
		if snap.SecondaryDevice != "" {
			checks = append(checks, checkDevice(ctx, "audio.secondary", snap.SecondaryDevice))
		}
	}

	checks = append(checks, checkLibrary(cfg.Config.Library.Path))
	if hyprBinds {
		var named map[string]keys.Combination
		if store != nil {
			named = store.Snapshot().Keybinds
		}
		checks = append(checks, checkBindConflicts(ctx, cfg.Config.Library.Path, named))
	}

	if addr := strings.TrimSpace(cfg.Config.Remote.Addr); addr != "" {
		checks = append(checks, checkRemote(ctx, addr))
	}

	return Report{Checks: checks}
}

func checkConfig(cfg config.Loaded) Check {
	if !cfg.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", cfg.Path)}
	}
	return Check{Name: "config", Pass: true, Message: fmt.Sprintf("loaded %q", cfg.Path)}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

func checkHyprVersion(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	tag, err := hypr.QueryVersion(ctx)
	if err != nil {
		return Check{Name: "hypr.version", Pass: false, Message: err.Error()}
	}
	if tag == "" {
		tag = "unknown"
	}
	return Check{Name: "hypr.version", Pass: true, Message: "Hyprland " + tag}
}

func checkSettings(path string) (*settings.Store, Check) {
	store, err := settings.Load(path, nil)
	if err != nil {
		return nil, Check{Name: "settings", Pass: false, Message: err.Error()}
	}
	return store, Check{Name: "settings", Pass: true, Message: fmt.Sprintf("readable at %q", path)}
}

// checkDevice resolves a configured output device against the live sink list.
func checkDevice(ctx context.Context, name, id string) Check {
	if id == "" {
		id = audio.DefaultDeviceID
	}
	device, err := resolveDevice(ctx, id)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%q: %v", id, err)}
	}
	message := fmt.Sprintf("%q -> %s", id, device.Label())
	if !device.Available {
		return Check{Name: name, Pass: false, Message: message + " (unavailable)"}
	}
	if device.Muted {
		message += " (muted)"
	}
	return Check{Name: name, Pass: true, Message: message}
}

// checkLibrary loads the library and reports sounds whose files are gone.
func checkLibrary(path string) Check {
	lib, err := library.Open(path)
	if err != nil {
		return Check{Name: "library", Pass: false, Message: err.Error()}
	}

	boards := lib.Soundboards()
	var sounds int
	var missing []string
	for _, board := range boards {
		for _, sound := range board.Sounds {
			sounds++
			if info, err := os.Stat(sound.Path); err != nil || info.IsDir() {
				missing = append(missing, board.Name+"/"+sound.Name)
			}
		}
	}

	message := fmt.Sprintf("%d soundboard(s), %d sound(s)", len(boards), sounds)
	if len(missing) > 0 {
		return Check{Name: "library", Pass: false, Message: fmt.Sprintf("%s; missing files: %s", message, strings.Join(missing, ", "))}
	}
	return Check{Name: "library", Pass: true, Message: message}
}

// checkBindConflicts reports soundboard keybinds whose chord the compositor
// already binds to something else. Hyprland drops those binds when the
// daemon releases the chord.
func checkBindConflicts(ctx context.Context, libPath string, named map[string]keys.Combination) Check {
	lib, err := library.Open(libPath)
	if err != nil {
		return Check{Name: "keybinds", Pass: false, Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	active, err := hypr.QueryBinds(ctx)
	if err != nil {
		return Check{Name: "keybinds", Pass: false, Message: err.Error()}
	}

	type target struct {
		label string
		combo keys.Combination
	}
	var targets []target
	for _, board := range lib.Soundboards() {
		targets = append(targets, target{board.Name, board.Keys})
		for _, sound := range board.Sounds {
			targets = append(targets, target{board.Name + "/" + sound.Name, sound.Keys})
		}
	}
	actions := make([]string, 0, len(named))
	for name := range named {
		actions = append(actions, name)
	}
	sort.Strings(actions)
	for _, name := range actions {
		targets = append(targets, target{"action:" + name, named[name]})
	}

	var conflicts []string
	checked := 0
	for _, t := range targets {
		if t.combo.Empty() {
			continue
		}
		foreign, err := hotkey.ForeignBinds(t.combo, active)
		if err != nil {
			continue
		}
		checked++
		for _, bind := range foreign {
			conflicts = append(conflicts, fmt.Sprintf("%s (%s) shadows %s %s", t.label, t.combo, bind.Dispatcher, strings.TrimSpace(bind.Arg)))
		}
	}

	if len(conflicts) > 0 {
		return Check{Name: "keybinds", Pass: false, Message: "chords already bound in Hyprland: " + strings.Join(conflicts, "; ")}
	}
	return Check{Name: "keybinds", Pass: true, Message: fmt.Sprintf("%d keybind(s), no Hyprland conflicts", checked)}
}

// checkRemote asks a running daemon's health service whether remote control is serving.
func checkRemote(ctx context.Context, addr string) Check {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	client, err := remote.Dial(ctx, addr, probeTimeout)
	if err != nil {
		return Check{Name: "remote", Pass: false, Message: fmt.Sprintf("%s unreachable (is the daemon running?): %v", addr, err)}
	}
	defer func() { _ = client.Close() }()

	serving, err := client.Health(ctx)
	if err != nil {
		return Check{Name: "remote", Pass: false, Message: err.Error()}
	}
	if !serving {
		return Check{Name: "remote", Pass: false, Message: fmt.Sprintf("%s is not serving", addr)}
	}
	return Check{Name: "remote", Pass: true, Message: fmt.Sprintf("serving at %s", addr)}
}
