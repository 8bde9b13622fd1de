// Package keys defines the canonical key-combination value used by keybinds.
package keys

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Modifier key names in display order.
const (
	Ctrl  = "CTRL"
	Alt   = "ALT"
	Shift = "SHIFT"
	Super = "SUPER"
)

var modifierOrder = map[string]int{
	Ctrl:  0,
	Alt:   1,
	Shift: 2,
	Super: 3,
}

var aliases = map[string]string{
	"CONTROL": Ctrl,
	"CTL":     Ctrl,
	"OPTION":  Alt,
	"WIN":     Super,
	"META":    Super,
	"CMD":     Super,
	"COMMAND": Super,
	"LOGO":    Super,
	"RETURN":  "ENTER",
	"ESCAPE":  "ESC",
	"DEL":     "DELETE",
	" ":       "SPACE",
}

// Combination is an immutable, unordered set of simultaneously held keys.
// The zero value is the empty (unbound) combination.
// Construct via New or Parse so the key set stays canonical.
type Combination struct {
	keys []string
}

// New builds a canonical combination from raw key names. Blank names are dropped.
func New(names ...string) Combination {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		key := canonicalKey(name)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if len(out) == 0 {
		return Combination{}
	}
	return Combination{keys: out}
}

// Parse reads a "+"-delimited combination such as "ctrl+shift+f1".
// Blank input yields the empty combination.
func Parse(raw string) (Combination, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Combination{}, nil
	}
	if raw == "+" {
		return New("+"), nil
	}
	parts := strings.Split(raw, "+")
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			return Combination{}, fmt.Errorf("invalid key combination %q: empty key", raw)
		}
	}
	return New(parts...), nil
}

// Empty reports whether the combination is unbound.
func (c Combination) Empty() bool { return len(c.keys) == 0 }

// Keys returns a copy of the canonical key names.
func (c Combination) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Modifiers returns the modifier keys in display order.
func (c Combination) Modifiers() []string {
	out := make([]string, 0, len(c.keys))
	for _, key := range c.keys {
		if IsModifier(key) {
			out = append(out, key)
		}
	}
	return out
}

// Others returns the non-modifier keys in display order.
func (c Combination) Others() []string {
	out := make([]string, 0, len(c.keys))
	for _, key := range c.keys {
		if !IsModifier(key) {
			out = append(out, key)
		}
	}
	return out
}

// Equal reports set equality.
func (c Combination) Equal(other Combination) bool {
	if len(c.keys) != len(other.keys) {
		return false
	}
	for i := range c.keys {
		if c.keys[i] != other.keys[i] {
			return false
		}
	}
	return true
}

// String renders the combination as "CTRL+SHIFT+F1"; empty renders as "".
func (c Combination) String() string {
	return strings.Join(c.keys, "+")
}

// IsModifier reports whether a canonical key name is a modifier.
func IsModifier(key string) bool {
	_, ok := modifierOrder[key]
	return ok
}

func (c Combination) MarshalJSON() ([]byte, error) {
	if c.Empty() {
		return []byte("null"), nil
	}
	return json.Marshal(c.keys)
}

// UnmarshalJSON accepts null, an array of key names, or a single "CTRL+F1" string.
func (c *Combination) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*c = Combination{}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*c = New(list...)
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		parsed, perr := Parse(single)
		if perr != nil {
			return perr
		}
		*c = parsed
		return nil
	}

	return fmt.Errorf("expected key array, combination string, or null")
}

func (c Combination) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

func (c *Combination) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*c = Combination{}
			return nil
		}
		parsed, err := Parse(value.Value)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*c = New(list...)
		return nil
	default:
		return fmt.Errorf("line %d: expected key combination string or list", value.Line)
	}
}

func canonicalKey(raw string) string {
	if raw == " " {
		return aliases[raw]
	}
	key := strings.ToUpper(strings.TrimSpace(raw))
	if key == "" {
		return ""
	}
	if alias, ok := aliases[key]; ok {
		return alias
	}
	return key
}

func less(a, b string) bool {
	ai, aMod := modifierOrder[a]
	bi, bMod := modifierOrder[b]
	switch {
	case aMod && bMod:
		return ai < bi
	case aMod:
		return true
	case bMod:
		return false
	default:
		return a < b
	}
}
