// Package fsm tracks the per-sound playback lifecycle.
package fsm

import "fmt"

type (
	State string
	Event string
)

const (
	StateIdle    State = "idle"
	StatePlaying State = "playing"
)

const (
	EventPlay  Event = "play"
	EventStop  Event = "stop"
	EventEnded Event = "ended"
)

// transitions lists every legal move. Play on a playing sound stays playing:
// overlapping instances of one sound share a single state.
var transitions = map[State]map[Event]State{
	StateIdle: {
		EventPlay: StatePlaying,
		EventStop: StateIdle,
	},
	StatePlaying: {
		EventPlay:  StatePlaying,
		EventStop:  StateIdle,
		EventEnded: StateIdle,
	},
}

// Transition returns the state after event. On error the current state is
// returned unchanged.
func Transition(current State, event Event) (State, error) {
	moves, ok := transitions[current]
	if !ok {
		return current, fmt.Errorf("unknown state %q", current)
	}
	next, ok := moves[event]
	if !ok {
		return current, fmt.Errorf("invalid transition: %s --(%s)--> ?", current, event)
	}
	return next, nil
}

// Active reports whether s has at least one instance producing sound.
func (s State) Active() bool {
	return s == StatePlaying
}
