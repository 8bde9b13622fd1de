package hotkey

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/rbright/soundboard/internal/hypr"
	"github.com/rbright/soundboard/internal/keys"
)

var hyprKeyNames = map[string]string{
	"SPACE":     "space",
	"ENTER":     "Return",
	"ESC":       "Escape",
	"TAB":       "Tab",
	"BACKSPACE": "BackSpace",
	"DELETE":    "Delete",
	"INSERT":    "Insert",
	"HOME":      "Home",
	"END":       "End",
	"PAGEUP":    "Prior",
	"PAGEDOWN":  "Next",
	"UP":        "Up",
	"DOWN":      "Down",
	"LEFT":      "Left",
	"RIGHT":     "Right",
	"+":         "plus",
	"-":         "minus",
	"=":         "equal",
	",":         "comma",
	".":         "period",
	"/":         "slash",
	";":         "semicolon",
}

// HyprBackend binds combinations in Hyprland with an exec dispatcher that
// runs the fire command with the registration id appended. The daemon hears
// the press when that command reaches it and calls Fire.
//
// Hyprland unbinds by chord, so releasing a combination also drops any bind
// the user configured on the same chord until the compositor config is
// reloaded. ForeignBinds finds those chords ahead of time.
type HyprBackend struct {
	fireQueue

	command []string
	bind    func(ctx context.Context, mods, key, dispatcher, arg string) error
	unbind  func(ctx context.Context, mods, key string) error

	mu    sync.Mutex
	binds map[ID]keys.Combination
}

// NewHyprBackend uses fireCommand (e.g. ["/usr/bin/soundboard", "fire"]) as the exec prefix.
func NewHyprBackend(fireCommand []string) *HyprBackend {
	return &HyprBackend{
		fireQueue: newFireQueue(),
		command:   append([]string(nil), fireCommand...),
		bind:      hypr.Bind,
		unbind:    hypr.Unbind,
		binds:     make(map[ID]keys.Combination),
	}
}

func (b *HyprBackend) Register(ctx context.Context, combo keys.Combination) (ID, error) {
	mods, key, err := hyprChord(combo)
	if err != nil {
		return "", err
	}

	id := newID()
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.bind(ctx, mods, key, "exec", b.execLine(id)); err != nil {
		return "", err
	}
	b.binds[id] = combo
	return id, nil
}

// Unregister removes the bind for id. Hyprland unbinds every bind on a chord,
// so other ids sharing the combination are bound again.
func (b *HyprBackend) Unregister(ctx context.Context, id ID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	combo, ok := b.binds[id]
	if !ok {
		return nil
	}
	delete(b.binds, id)

	mods, key, err := hyprChord(combo)
	if err != nil {
		return err
	}
	if err := b.unbind(ctx, mods, key); err != nil {
		return err
	}

	for other, otherCombo := range b.binds {
		if !otherCombo.Equal(combo) {
			continue
		}
		if err := b.bind(ctx, mods, key, "exec", b.execLine(other)); err != nil {
			return fmt.Errorf("restore shared bind %s: %w", other, err)
		}
	}
	return nil
}

// ForeignBinds returns the active compositor binds on combo's chord that no
// soundboard registration installed.
func ForeignBinds(combo keys.Combination, active []hypr.Keybind) ([]hypr.Keybind, error) {
	mods, key, err := hyprChord(combo)
	if err != nil {
		return nil, err
	}
	mask := hypr.ModMask(mods)

	var out []hypr.Keybind
	for _, bind := range active {
		if bind.Modmask != mask || !strings.EqualFold(bind.Key, key) || ownBind(bind) {
			continue
		}
		out = append(out, bind)
	}
	return out, nil
}

// ownBind reports an exec bind whose last argument is a registration id.
func ownBind(bind hypr.Keybind) bool {
	if bind.Dispatcher != "exec" {
		return false
	}
	fields := strings.Fields(bind.Arg)
	if len(fields) == 0 {
		return false
	}
	_, err := uuid.Parse(strings.Trim(fields[len(fields)-1], "'"))
	return err == nil
}

func (b *HyprBackend) execLine(id ID) string {
	parts := make([]string, 0, len(b.command)+1)
	for _, arg := range b.command {
		parts = append(parts, shellQuote(arg))
	}
	parts = append(parts, shellQuote(string(id)))
	return strings.Join(parts, " ")
}

// hyprChord renders a combination as Hyprland's MODS and KEY fields.
func hyprChord(combo keys.Combination) (string, string, error) {
	others := combo.Others()
	if len(others) != 1 {
		return "", "", fmt.Errorf("%w: %q needs exactly one non-modifier key", ErrUnsupportedCombination, combo.String())
	}
	key := others[0]
	if mapped, ok := hyprKeyNames[key]; ok {
		key = mapped
	}
	return strings.Join(combo.Modifiers(), " "), key, nil
}

func shellQuote(arg string) string {
	if arg != "" && strings.IndexFunc(arg, func(r rune) bool {
		return !(r == '/' || r == '-' || r == '_' || r == '.' || r == '=' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	}) < 0 {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}
