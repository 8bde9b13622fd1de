package hotkey

import (
	"errors"
	"fmt"

	"github.com/rbright/soundboard/internal/keys"
)

var (
	// ErrBackendRegistrationFailed marks a combination the backend could not capture.
	ErrBackendRegistrationFailed = errors.New("hotkey backend registration failed")
	// ErrUnsupportedCombination is returned by backends for combinations they cannot express.
	ErrUnsupportedCombination = errors.New("unsupported key combination")
)

// RegistrationError reports which owner and combination failed to register.
type RegistrationError struct {
	Owner Owner
	Combo keys.Combination
	Err   error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register keybind %s for %s: %v", e.Combo, e.Owner, e.Err)
}

func (e *RegistrationError) Unwrap() []error {
	return []error{ErrBackendRegistrationFailed, e.Err}
}

func errUnknownAction(kind ActionKind) error {
	return fmt.Errorf("unknown action kind %q", kind)
}
