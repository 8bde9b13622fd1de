// Package library persists soundboards and their sounds.
package library

import (
	"errors"

	"github.com/rbright/soundboard/internal/keys"
	"github.com/rbright/soundboard/internal/playback"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateName = errors.New("name already in use")
	ErrInvalidName   = errors.New("name must not be empty")
)

// Sound is a clip on a soundboard. IDs are issued at load time and are not persisted.
type Sound struct {
	ID           string
	Name         string
	Path         string
	Volume       int
	Keys         keys.Combination
	SoundboardID string
}

// Soundboard is an ordered collection of sounds.
type Soundboard struct {
	ID           string
	Name         string
	Volume       int
	Keys         keys.Combination
	LinkedFolder string
	Sounds       []Sound
}

// SyncResult lists what a linked-folder sync changed.
type SyncResult struct {
	Added   []Sound
	Removed []Sound
}

// Changed reports whether the sync altered the board.
func (r SyncResult) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0
}

// PlaybackSound converts a sound and its board into the playback view.
func PlaybackSound(sound Sound, board *Soundboard) playback.Sound {
	out := playback.Sound{
		ID:     sound.ID,
		Name:   sound.Name,
		Path:   sound.Path,
		Volume: sound.Volume,
	}
	if board != nil {
		out.Board = &playback.Board{ID: board.ID, Name: board.Name, Volume: board.Volume}
	}
	return out
}

type fileDocument struct {
	Soundboards []fileSoundboard `json:"soundboards"`
}

type fileSoundboard struct {
	Name         string           `json:"name"`
	Volume       *int             `json:"volume,omitempty"`
	Keys         keys.Combination `json:"keys"`
	LinkedFolder string           `json:"linkedFolder,omitempty"`
	Sounds       []fileSound      `json:"sounds"`
}

type fileSound struct {
	Name   string           `json:"name"`
	Path   string           `json:"path"`
	Volume *int             `json:"volume,omitempty"`
	Keys   keys.Combination `json:"keys"`
}
