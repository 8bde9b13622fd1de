package hotkey

import (
	"context"

	"github.com/google/uuid"
	"github.com/rbright/soundboard/internal/keys"
)

// ID is a backend-issued registration id.
type ID string

// Backend captures key combinations at the OS level. Fired ids may be stale
// when they race an unregister; combinations are not assumed unique.
type Backend interface {
	Register(ctx context.Context, combo keys.Combination) (ID, error)
	Unregister(ctx context.Context, id ID) error
	Fired() <-chan ID
}

const firedBuffer = 32

type fireQueue struct {
	ch chan ID
}

func newFireQueue() fireQueue {
	return fireQueue{ch: make(chan ID, firedBuffer)}
}

// Fired streams ids reported by Fire.
func (q fireQueue) Fired() <-chan ID { return q.ch }

// Fire reports a pressed keybind. It never blocks; a full queue drops the press.
func (q fireQueue) Fire(id ID) bool {
	select {
	case q.ch <- id:
		return true
	default:
		return false
	}
}

func newID() ID {
	return ID(uuid.NewString())
}

// NoopBackend issues ids without capturing anything at the OS level. Fire
// still dispatches, so an external hotkey daemon can drive it.
type NoopBackend struct {
	fireQueue
}

func NewNoopBackend() *NoopBackend {
	return &NoopBackend{fireQueue: newFireQueue()}
}

func (b *NoopBackend) Register(context.Context, keys.Combination) (ID, error) {
	return newID(), nil
}

func (b *NoopBackend) Unregister(context.Context, ID) error {
	return nil
}
