package indicator

import (
	"fmt"
	"os"
	"strings"
)

type locale string

const (
	localeEnglish locale = "en"
)

type messages struct {
	warning       string
	fileMissing   string
	keybindsOn    string
	keybindsOff   string
	overlapOn     string
	overlapOff    string
	boardSelected string
	playFailed    string
	bindsFailed   string
}

// Texts are the notice strings the daemon renders for state changes.
type Texts struct {
	Warning     string
	KeybindsOn  string
	KeybindsOff string
	OverlapOn   string
	OverlapOff  string

	fileMissing   string
	boardSelected string
	playFailed    string
	bindsFailed   string
}

// FileMissing formats the missing-file warning for a sound.
func (t Texts) FileMissing(sound string) string {
	return fmt.Sprintf(t.fileMissing, sound)
}

// PlayFailed formats the warning for a sound that could not start.
func (t Texts) PlayFailed(sound string) string {
	return fmt.Sprintf(t.playFailed, sound)
}

// KeybindsFailed formats the warning for keybinds the backend refused.
func (t Texts) KeybindsFailed(count int) string {
	return fmt.Sprintf(t.bindsFailed, count)
}

// BoardSelected formats the soundboard selection notice.
func (t Texts) BoardSelected(board string) string {
	return fmt.Sprintf(t.boardSelected, board)
}

// Toggle formats the notice for a flipped setting ("keybinds" or "overlap").
func (t Texts) Toggle(setting string, on bool) string {
	switch {
	case setting == "keybinds" && on:
		return t.KeybindsOn
	case setting == "keybinds":
		return t.KeybindsOff
	case setting == "overlap" && on:
		return t.OverlapOn
	case setting == "overlap":
		return t.OverlapOff
	case on:
		return setting + " enabled"
	default:
		return setting + " disabled"
	}
}

func (m messages) public() Texts {
	return Texts{
		Warning:       m.warning,
		KeybindsOn:    m.keybindsOn,
		KeybindsOff:   m.keybindsOff,
		OverlapOn:     m.overlapOn,
		OverlapOff:    m.overlapOff,
		fileMissing:   m.fileMissing,
		boardSelected: m.boardSelected,
		playFailed:    m.playFailed,
		bindsFailed:   m.bindsFailed,
	}
}

func indicatorMessagesFromEnv() messages {
	return indicatorMessages(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "en") {
		return localeEnglish
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeEnglish:
		fallthrough
	default:
		return messages{
			warning:       "Soundboard error",
			fileMissing:   "Sound file missing: %s",
			keybindsOn:    "Keybinds enabled",
			keybindsOff:   "Keybinds disabled",
			overlapOn:     "Overlapping sounds enabled",
			overlapOff:    "Overlapping sounds disabled",
			boardSelected: "Soundboard: %s",
			playFailed:    "Could not play %s",
			bindsFailed:   "%d keybinds could not be registered",
		}
	}
}
