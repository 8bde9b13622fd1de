// Package playback runs sounds on one or two output devices and tracks what is playing.
package playback

import (
	"errors"
	"math"
)

var (
	// ErrFileMissing is returned when a sound's file does not exist at play time.
	ErrFileMissing = errors.New("sound file missing")
	// ErrStaleCallback marks a completion for an instance that was already cleared.
	ErrStaleCallback = errors.New("stale playback callback")
)

// DefaultDevice is the sentinel id for the system default output.
const DefaultDevice = "default"

// Board is the part of a soundboard playback needs.
type Board struct {
	ID     string
	Name   string
	Volume int
}

// Sound is a playable clip. Board is nil for a sound with no owning soundboard.
type Sound struct {
	ID     string
	Name   string
	Path   string
	Volume int
	Board  *Board
}

// BoardID returns the owning soundboard id, or "".
func (s Sound) BoardID() string {
	if s.Board == nil {
		return ""
	}
	return s.Board.ID
}

// Config is the playback slice of the runtime settings.
// An empty SecondaryDevice means no secondary output.
type Config struct {
	Overlap         bool
	MainDevice      string
	MainVolume      int
	SecondaryDevice string
	SecondaryVolume int
}

// Settings supplies the current playback configuration.
type Settings interface {
	PlaybackConfig() Config
}

// InstanceRequest describes one device-bound stream.
type InstanceRequest struct {
	Path   string
	Device string
	Gain   float64
	Name   string
}

// Instance is one running stream. Done closes exactly once when the stream ends
// for any reason; Stop ends it immediately and is safe to call repeatedly.
type Instance interface {
	Done() <-chan struct{}
	Stop()
}

// Output starts device-bound streams.
type Output interface {
	Start(req InstanceRequest) (Instance, error)
}

// Gain composes device, sound and soundboard volumes (0-100 each) into a linear
// amplitude factor on a squared perceptual curve.
func Gain(deviceVolume, soundVolume, boardVolume int) float64 {
	product := unit(deviceVolume) * unit(soundVolume) * unit(boardVolume)
	return math.Pow(product, 2)
}

// ClampVolume bounds a volume to [0,100].
func ClampVolume(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

func unit(v int) float64 {
	return float64(ClampVolume(v)) / 100
}
