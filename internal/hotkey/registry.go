package hotkey

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rbright/soundboard/internal/keys"
)

// Outcome reports how an asynchronous Register call ended.
type Outcome struct {
	Owner Owner
	ID    ID
	Err   error
	// Superseded is set when a later Register or Unregister for the owner won.
	Superseded bool
	// Skipped is set for an empty combination.
	Skipped bool
}

// Binding is one live registration.
type Binding struct {
	ID     ID
	Owner  Owner
	Combo  keys.Combination
	Action Action
}

// Registry holds at most one live registration per owner. Register requests
// carry a monotonic token; only the newest token for an owner may store its
// result, and superseded results are unregistered at the backend.
type Registry struct {
	backend Backend
	gate    Gate
	logger  *slog.Logger

	locked atomic.Bool
	wg     sync.WaitGroup

	mu      sync.Mutex
	handler Handler
	seq     uint64
	latest  map[Owner]uint64
	byOwner map[Owner]ID
	byID    map[ID]Binding
}

// NewRegistry creates a registry. gate may be nil, meaning always enabled.
// Dispatch is inert until SetHandler is called.
func NewRegistry(backend Backend, gate Gate, logger *slog.Logger) *Registry {
	return &Registry{
		backend: backend,
		gate:    gate,
		logger:  logger,
		latest:  make(map[Owner]uint64),
		byOwner: make(map[Owner]ID),
		byID:    make(map[ID]Binding),
	}
}

// Register replaces the owner's registration with combo. An empty combo is a
// no-op; callers unbind with Unregister. The returned channel yields exactly
// one Outcome and is then closed.
func (r *Registry) Register(ctx context.Context, owner Owner, combo keys.Combination, action Action) <-chan Outcome {
	out := make(chan Outcome, 1)
	if combo.Empty() {
		out <- Outcome{Owner: owner, Skipped: true}
		close(out)
		return out
	}

	r.mu.Lock()
	r.seq++
	token := r.seq
	r.latest[owner] = token
	prior, hadPrior := r.byOwner[owner]
	if hadPrior {
		delete(r.byOwner, owner)
		delete(r.byID, prior)
	}
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(out)
		if hadPrior {
			r.release(ctx, prior)
		}
		out <- r.complete(ctx, token, owner, combo, action)
	}()
	return out
}

// RegisterWait is Register followed by waiting for its outcome. A superseded
// or skipped registration is not an error.
func (r *Registry) RegisterWait(ctx context.Context, owner Owner, combo keys.Combination, action Action) error {
	select {
	case outcome := <-r.Register(ctx, owner, combo, action):
		return outcome.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) complete(ctx context.Context, token uint64, owner Owner, combo keys.Combination, action Action) Outcome {
	id, err := r.backend.Register(ctx, combo)

	r.mu.Lock()
	if r.latest[owner] != token {
		r.mu.Unlock()
		if err == nil {
			r.release(ctx, id)
		}
		return Outcome{Owner: owner, Superseded: true}
	}
	if err != nil {
		r.mu.Unlock()
		regErr := &RegistrationError{Owner: owner, Combo: combo, Err: err}
		r.logWarn("keybind registration failed", "owner", owner.String(), "keys", combo.String(), "error", err.Error())
		return Outcome{Owner: owner, Err: regErr}
	}
	r.byOwner[owner] = id
	r.byID[id] = Binding{ID: id, Owner: owner, Combo: combo, Action: action}
	r.mu.Unlock()

	r.logDebug("keybind registered", "owner", owner.String(), "keys", combo.String(), "id", string(id))
	return Outcome{Owner: owner, ID: id}
}

// Unregister drops the owner's registration and supersedes any in-flight Register.
func (r *Registry) Unregister(ctx context.Context, owner Owner) error {
	r.mu.Lock()
	r.seq++
	r.latest[owner] = r.seq
	id, ok := r.byOwner[owner]
	if ok {
		delete(r.byOwner, owner)
		delete(r.byID, id)
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return r.backend.Unregister(ctx, id)
}

// UnregisterAll drops every registration, waiting for in-flight requests first.
func (r *Registry) UnregisterAll(ctx context.Context) error {
	r.mu.Lock()
	owners := make([]Owner, 0, len(r.latest))
	for owner := range r.latest {
		owners = append(owners, owner)
	}
	r.mu.Unlock()

	for _, owner := range owners {
		r.mu.Lock()
		r.seq++
		r.latest[owner] = r.seq
		r.mu.Unlock()
	}
	r.wg.Wait()

	var firstErr error
	for _, owner := range owners {
		if err := r.Unregister(ctx, owner); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Dispatch runs the action bound to id. It reports whether an action ran.
func (r *Registry) Dispatch(ctx context.Context, id ID) bool {
	if r.locked.Load() {
		r.logDebug("keybind ignored while locked", "id", string(id))
		return false
	}

	r.mu.Lock()
	binding, ok := r.byID[id]
	handler := r.handler
	r.mu.Unlock()
	if !ok {
		r.logDebug("stale keybind id ignored", "id", string(id))
		return false
	}

	if !r.enabled(binding.Action) {
		r.logDebug("keybinds disabled", "id", string(id))
		return false
	}
	if handler == nil {
		return false
	}

	if err := run(ctx, handler, binding.Action); err != nil {
		r.logWarn("keybind action failed", "owner", binding.Owner.String(), "action", string(binding.Action.Kind), "error", err.Error())
	}
	return true
}

// Run dispatches fired ids until ctx is done or the backend closes its stream.
func (r *Registry) Run(ctx context.Context) error {
	fired := r.backend.Fired()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case id, ok := <-fired:
			if !ok {
				return nil
			}
			r.Dispatch(ctx, id)
		}
	}
}

// SetHandler installs the action handler.
func (r *Registry) SetHandler(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = h
}

// SetLocked gates dispatch while a capture dialog is open. Registrations survive.
func (r *Registry) SetLocked(locked bool) {
	r.locked.Store(locked)
}

func (r *Registry) Locked() bool {
	return r.locked.Load()
}

// Lookup returns the owner's live binding.
func (r *Registry) Lookup(owner Owner) (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byOwner[owner]
	if !ok {
		return Binding{}, false
	}
	return r.byID[id], true
}

// Bindings returns every live binding ordered by owner.
func (r *Registry) Bindings() []Binding {
	r.mu.Lock()
	out := make([]Binding, 0, len(r.byID))
	for _, binding := range r.byID {
		out = append(out, binding)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Owner.String() < out[j].Owner.String()
	})
	return out
}

// Wait blocks until in-flight Register calls finish.
func (r *Registry) Wait() {
	r.wg.Wait()
}

// toggle-keybinds stays reachable while keybinds are disabled so it can re-enable them.
func (r *Registry) enabled(action Action) bool {
	if r.gate == nil || r.gate.KeybindsEnabled() {
		return true
	}
	return action.Kind == ActionNamed && action.Target == NamedToggleKeybinds
}

func (r *Registry) release(ctx context.Context, id ID) {
	if err := r.backend.Unregister(ctx, id); err != nil {
		r.logWarn("keybind unregister failed", "id", string(id), "error", err.Error())
	}
}

func (r *Registry) logDebug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r *Registry) logWarn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
