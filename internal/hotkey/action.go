// Package hotkey maps key combinations to soundboard actions over a global hotkey backend.
package hotkey

import "context"

// OwnerKind names the entity a keybind belongs to.
type OwnerKind string

const (
	OwnerSound      OwnerKind = "sound"
	OwnerSoundboard OwnerKind = "soundboard"
	OwnerAction     OwnerKind = "action"
)

// Owner identifies the single live registration slot of a sound, soundboard or named action.
type Owner struct {
	Kind OwnerKind
	ID   string
}

func (o Owner) String() string {
	return string(o.Kind) + ":" + o.ID
}

// ActionKind tags the Action variant.
type ActionKind string

const (
	ActionPlaySound        ActionKind = "play-sound"
	ActionSelectSoundboard ActionKind = "select-soundboard"
	ActionNamed            ActionKind = "named"
)

// Named global actions.
const (
	NamedStopAll        = "stop-all"
	NamedToggleKeybinds = "toggle-keybinds"
	NamedToggleOverlap  = "toggle-overlap"
)

// NamedActions lists every named action in display order.
var NamedActions = []string{NamedStopAll, NamedToggleKeybinds, NamedToggleOverlap}

// Action is what a keybind does when fired. Target is a sound id, a soundboard id or a named action.
type Action struct {
	Kind   ActionKind
	Target string
}

func PlaySound(soundID string) Action {
	return Action{Kind: ActionPlaySound, Target: soundID}
}

func SelectSoundboard(boardID string) Action {
	return Action{Kind: ActionSelectSoundboard, Target: boardID}
}

func Named(name string) Action {
	return Action{Kind: ActionNamed, Target: name}
}

// Handler executes dispatched actions.
type Handler interface {
	PlaySound(ctx context.Context, soundID string) error
	SelectSoundboard(ctx context.Context, boardID string) error
	RunNamed(ctx context.Context, name string) error
}

// Gate reports whether keybind handling is enabled in settings.
type Gate interface {
	KeybindsEnabled() bool
}

func run(ctx context.Context, h Handler, action Action) error {
	switch action.Kind {
	case ActionPlaySound:
		return h.PlaySound(ctx, action.Target)
	case ActionSelectSoundboard:
		return h.SelectSoundboard(ctx, action.Target)
	case ActionNamed:
		return h.RunNamed(ctx, action.Target)
	default:
		return errUnknownAction(action.Kind)
	}
}
