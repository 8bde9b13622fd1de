package playback

import (
	"log/slog"
	"sync"

	"github.com/rbright/soundboard/internal/events"
	"github.com/rbright/soundboard/internal/fsm"
)

// Coordinator applies the overlap policy, owns the playing set and publishes
// start/stop events. Lock order is Coordinator.mu before Player.mu.
type Coordinator struct {
	player   *Player
	settings Settings
	bus      *events.Bus
	logger   *slog.Logger

	mu      sync.Mutex
	playing map[string]Sound
	order   []string
	states  map[string]fsm.State
}

// NewCoordinator wires a coordinator to its player and takes over the player's
// finished callback.
func NewCoordinator(player *Player, settings Settings, bus *events.Bus, logger *slog.Logger) *Coordinator {
	c := &Coordinator{
		player:   player,
		settings: settings,
		bus:      bus,
		logger:   logger,
		playing:  make(map[string]Sound),
		states:   make(map[string]fsm.State),
	}
	player.OnFinished(c.handleFinished)
	return c
}

// PlaySound starts a sound under the current settings. A missing file is
// reported before the overlap policy runs, so it never disturbs playback.
func (c *Coordinator) PlaySound(sound Sound) error {
	if err := c.player.Playable(sound); err != nil {
		return err
	}

	c.mu.Lock()
	cfg := c.settings.PlaybackConfig()
	if !cfg.Overlap && len(c.order) > 0 {
		c.stopAllLocked()
	}

	started, err := c.player.Play(sound, cfg)
	if err == nil && started {
		if _, ok := c.playing[sound.ID]; !ok {
			c.order = append(c.order, sound.ID)
		}
		c.playing[sound.ID] = sound
		c.transition(sound.ID, fsm.EventPlay)
		c.bus.Publish(soundEvent(events.SoundStarted, sound))
	}
	c.mu.Unlock()
	c.bus.Flush()
	return err
}

// StopSound stops a sound and always emits sound-stopped.
func (c *Coordinator) StopSound(sound Sound) {
	c.mu.Lock()
	if prior, ok := c.playing[sound.ID]; ok {
		c.remove(sound.ID)
		if sound.Name == "" {
			sound = prior
		}
	}
	c.player.Stop(sound.ID)
	c.transition(sound.ID, fsm.EventStop)
	c.bus.Publish(soundEvent(events.SoundStopped, sound))
	c.mu.Unlock()
	c.bus.Flush()
}

// StopAll stops every playing sound and emits a single all-stopped.
func (c *Coordinator) StopAll() {
	c.mu.Lock()
	c.stopAllLocked()
	c.mu.Unlock()
	c.bus.Flush()
}

// Playing returns the playing sounds in start order.
func (c *Coordinator) Playing() []Sound {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Sound, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.playing[id])
	}
	return out
}

// IsPlaying reports whether the sound's lifecycle state is active.
func (c *Coordinator) IsPlaying(soundID string) bool {
	return c.State(soundID).Active()
}

// State returns the lifecycle state of a sound.
func (c *Coordinator) State(soundID string) fsm.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if state, ok := c.states[soundID]; ok {
		return state
	}
	return fsm.StateIdle
}

// Overall is playing while any sound is active, idle otherwise.
func (c *Coordinator) Overall() fsm.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, state := range c.states {
		if state.Active() {
			return fsm.StatePlaying
		}
	}
	return fsm.StateIdle
}

func (c *Coordinator) stopAllLocked() {
	for _, id := range c.order {
		c.player.Stop(id)
		c.transition(id, fsm.EventStop)
	}
	c.order = nil
	clear(c.playing)
	c.bus.Publish(events.Event{Kind: events.AllStopped})
}

func (c *Coordinator) handleFinished(soundID string) {
	c.mu.Lock()
	sound, ok := c.playing[soundID]
	if !ok || c.player.Active(soundID) > 0 {
		c.mu.Unlock()
		if !ok && c.logger != nil {
			c.logger.Debug("finished sound no longer playing", "sound_id", soundID, "error", ErrStaleCallback.Error())
		}
		return
	}
	c.remove(soundID)
	c.transition(soundID, fsm.EventEnded)
	c.bus.Publish(soundEvent(events.SoundStopped, sound))
	c.mu.Unlock()
	c.bus.Flush()
}

func (c *Coordinator) remove(soundID string) {
	delete(c.playing, soundID)
	for i, id := range c.order {
		if id == soundID {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *Coordinator) transition(soundID string, event fsm.Event) {
	current, ok := c.states[soundID]
	if !ok {
		current = fsm.StateIdle
	}
	next, err := fsm.Transition(current, event)
	if err != nil && c.logger != nil {
		c.logger.Debug("sound state transition rejected", "sound_id", soundID, "error", err.Error())
	}
	if next == fsm.StateIdle {
		delete(c.states, soundID)
		return
	}
	c.states[soundID] = next
}

func soundEvent(kind events.Kind, sound Sound) events.Event {
	ev := events.Event{Kind: kind, SoundID: sound.ID, SoundName: sound.Name}
	if sound.Board != nil {
		ev.SoundboardID = sound.Board.ID
		ev.SoundboardName = sound.Board.Name
	}
	return ev
}
