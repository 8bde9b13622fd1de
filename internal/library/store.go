package library

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rbright/soundboard/internal/keys"
	"github.com/rbright/soundboard/internal/playback"
)

const defaultVolume = 100

// Store holds the soundboard library in memory and writes it back as JSON.
// Accessors return copies; mutate through Store methods.
type Store struct {
	path  string
	newID func() string

	mu     sync.RWMutex
	boards []Soundboard
}

// Open loads the library at path. A missing file yields an empty library.
func Open(path string) (*Store, error) {
	s := &Store{path: path, newID: uuid.NewString}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Load replaces the in-memory library with the file contents.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.mu.Lock()
		s.boards = nil
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("read library %q: %w", s.path, err)
	}

	doc, err := decodeDocument(data)
	if err != nil {
		return fmt.Errorf("parse library %q: %w", s.path, err)
	}

	boards := make([]Soundboard, 0, len(doc.Soundboards))
	for _, fb := range doc.Soundboards {
		board := Soundboard{
			ID:           s.newID(),
			Name:         strings.TrimSpace(fb.Name),
			Volume:       volumeOrDefault(fb.Volume),
			Keys:         fb.Keys,
			LinkedFolder: strings.TrimSpace(fb.LinkedFolder),
		}
		for _, fsnd := range fb.Sounds {
			board.Sounds = append(board.Sounds, Sound{
				ID:           s.newID(),
				Name:         strings.TrimSpace(fsnd.Name),
				Path:         fsnd.Path,
				Volume:       volumeOrDefault(fsnd.Volume),
				Keys:         fsnd.Keys,
				SoundboardID: board.ID,
			})
		}
		boards = append(boards, board)
	}

	s.mu.Lock()
	s.boards = boards
	s.mu.Unlock()
	return nil
}

// Save writes the library atomically.
func (s *Store) Save() error {
	s.mu.RLock()
	doc := fileDocument{Soundboards: make([]fileSoundboard, 0, len(s.boards))}
	for _, board := range s.boards {
		fb := fileSoundboard{
			Name:         board.Name,
			Volume:       intPtr(board.Volume),
			Keys:         board.Keys,
			LinkedFolder: board.LinkedFolder,
			Sounds:       make([]fileSound, 0, len(board.Sounds)),
		}
		for _, sound := range board.Sounds {
			fb.Sounds = append(fb.Sounds, fileSound{
				Name:   sound.Name,
				Path:   sound.Path,
				Volume: intPtr(sound.Volume),
				Keys:   sound.Keys,
			})
		}
		doc.Soundboards = append(doc.Soundboards, fb)
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode library: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create library dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".library-*.json")
	if err != nil {
		return fmt.Errorf("create temp library: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write library: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close library: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace library: %w", err)
	}
	return nil
}

// Soundboards returns every board in display order.
func (s *Store) Soundboards() []Soundboard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Soundboard, 0, len(s.boards))
	for _, board := range s.boards {
		out = append(out, cloneBoard(board))
	}
	return out
}

// Soundboard finds a board by id or case-insensitive name.
func (s *Store) Soundboard(ref string) (Soundboard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.boardIndex(ref)
	if !ok {
		return Soundboard{}, false
	}
	return cloneBoard(s.boards[idx]), true
}

// Sound finds a sound by id, case-insensitive name, or "board/sound".
func (s *Store) Sound(ref string) (Sound, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bi, si, ok := s.soundIndex(ref)
	if !ok {
		return Sound{}, false
	}
	return s.boards[bi].Sounds[si], true
}

// PlaybackSound resolves a sound together with its owning board.
func (s *Store) PlaybackSound(ref string) (playback.Sound, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bi, si, ok := s.soundIndex(ref)
	if !ok {
		return playback.Sound{}, false
	}
	board := s.boards[bi]
	return PlaybackSound(board.Sounds[si], &board), true
}

// LinkedFolders maps each linked folder to the ids of the boards linked to
// it, in library order. Several boards may share one folder.
func (s *Store) LinkedFolders() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]string)
	for _, board := range s.boards {
		if board.LinkedFolder != "" {
			out[board.LinkedFolder] = append(out[board.LinkedFolder], board.ID)
		}
	}
	return out
}

// AddSoundboard appends a board. Names are unique, case-insensitively.
func (s *Store) AddSoundboard(name string, volume int, linkedFolder string) (Soundboard, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Soundboard{}, ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.boardByName(name); exists {
		return Soundboard{}, fmt.Errorf("soundboard %q: %w", name, ErrDuplicateName)
	}
	board := Soundboard{
		ID:           s.newID(),
		Name:         name,
		Volume:       playback.ClampVolume(volume),
		LinkedFolder: strings.TrimSpace(linkedFolder),
	}
	s.boards = append(s.boards, board)
	return cloneBoard(board), nil
}

// RemoveSoundboard deletes a board and returns it with its sounds.
func (s *Store) RemoveSoundboard(id string) (Soundboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.boardIndex(id)
	if !ok {
		return Soundboard{}, boardNotFound(id)
	}
	removed := s.boards[idx]
	s.boards = append(s.boards[:idx:idx], s.boards[idx+1:]...)
	return removed, nil
}

func (s *Store) RenameSoundboard(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.boardIndex(id)
	if !ok {
		return boardNotFound(id)
	}
	if other, exists := s.boardByName(name); exists && other != idx {
		return fmt.Errorf("soundboard %q: %w", name, ErrDuplicateName)
	}
	s.boards[idx].Name = name
	return nil
}

func (s *Store) SetSoundboardVolume(id string, volume int) error {
	return s.updateBoard(id, func(b *Soundboard) { b.Volume = playback.ClampVolume(volume) })
}

func (s *Store) SetSoundboardKeys(id string, combo keys.Combination) error {
	return s.updateBoard(id, func(b *Soundboard) { b.Keys = combo })
}

func (s *Store) SetLinkedFolder(id, folder string) error {
	return s.updateBoard(id, func(b *Soundboard) { b.LinkedFolder = strings.TrimSpace(folder) })
}

// MoveSoundboard moves a board to index, clamped to the valid range.
func (s *Store) MoveSoundboard(id string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.boardIndex(id)
	if !ok {
		return boardNotFound(id)
	}
	s.boards = move(s.boards, idx, index)
	return nil
}

// AddSound appends a sound to a board. Sound names are unique within a board.
func (s *Store) AddSound(boardID, name, path string, volume int) (Sound, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Sound{}, ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	bi, ok := s.boardIndex(boardID)
	if !ok {
		return Sound{}, boardNotFound(boardID)
	}
	board := &s.boards[bi]
	for _, existing := range board.Sounds {
		if strings.EqualFold(existing.Name, name) {
			return Sound{}, fmt.Errorf("sound %q: %w", name, ErrDuplicateName)
		}
	}
	sound := Sound{
		ID:           s.newID(),
		Name:         name,
		Path:         path,
		Volume:       playback.ClampVolume(volume),
		SoundboardID: board.ID,
	}
	board.Sounds = append(board.Sounds, sound)
	return sound, nil
}

// RemoveSound deletes a sound and returns it.
func (s *Store) RemoveSound(id string) (Sound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bi, si, ok := s.soundIndex(id)
	if !ok {
		return Sound{}, soundNotFound(id)
	}
	board := &s.boards[bi]
	removed := board.Sounds[si]
	board.Sounds = append(board.Sounds[:si:si], board.Sounds[si+1:]...)
	return removed, nil
}

func (s *Store) RenameSound(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bi, si, ok := s.soundIndex(id)
	if !ok {
		return soundNotFound(id)
	}
	for i, existing := range s.boards[bi].Sounds {
		if i != si && strings.EqualFold(existing.Name, name) {
			return fmt.Errorf("sound %q: %w", name, ErrDuplicateName)
		}
	}
	s.boards[bi].Sounds[si].Name = name
	return nil
}

func (s *Store) SetSoundVolume(id string, volume int) error {
	return s.updateSound(id, func(snd *Sound) { snd.Volume = playback.ClampVolume(volume) })
}

func (s *Store) SetSoundKeys(id string, combo keys.Combination) error {
	return s.updateSound(id, func(snd *Sound) { snd.Keys = combo })
}

// MoveSound moves a sound to index within its board, clamped to the valid range.
func (s *Store) MoveSound(id string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bi, si, ok := s.soundIndex(id)
	if !ok {
		return soundNotFound(id)
	}
	s.boards[bi].Sounds = move(s.boards[bi].Sounds, si, index)
	return nil
}

// SyncFolder reconciles a linked board with its folder: sounds whose files
// are gone are removed and new supported files are added at full volume.
func (s *Store) SyncFolder(boardID string, supported func(path string) bool) (SyncResult, error) {
	s.mu.RLock()
	bi, ok := s.boardIndex(boardID)
	var folder string
	if ok {
		folder = s.boards[bi].LinkedFolder
	}
	s.mu.RUnlock()
	if !ok {
		return SyncResult{}, boardNotFound(boardID)
	}
	if folder == "" {
		return SyncResult{}, fmt.Errorf("soundboard %q has no linked folder", boardID)
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		return SyncResult{}, fmt.Errorf("read linked folder %q: %w", folder, err)
	}
	onDisk := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(folder, entry.Name())
		if supported(path) {
			onDisk = append(onDisk, path)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	bi, ok = s.boardIndex(boardID)
	if !ok {
		return SyncResult{}, boardNotFound(boardID)
	}
	board := &s.boards[bi]

	var result SyncResult
	known := make(map[string]struct{}, len(board.Sounds))
	kept := board.Sounds[:0:0]
	for _, sound := range board.Sounds {
		if _, err := os.Stat(sound.Path); err != nil {
			result.Removed = append(result.Removed, sound)
			continue
		}
		known[filepath.Clean(sound.Path)] = struct{}{}
		kept = append(kept, sound)
	}

	for _, path := range onDisk {
		if _, seen := known[filepath.Clean(path)]; seen {
			continue
		}
		sound := Sound{
			ID:           s.newID(),
			Name:         strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			Path:         path,
			Volume:       defaultVolume,
			SoundboardID: board.ID,
		}
		kept = append(kept, sound)
		result.Added = append(result.Added, sound)
	}
	board.Sounds = kept
	return result, nil
}

func (s *Store) updateBoard(id string, fn func(*Soundboard)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.boardIndex(id)
	if !ok {
		return boardNotFound(id)
	}
	fn(&s.boards[idx])
	return nil
}

func (s *Store) updateSound(id string, fn func(*Sound)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bi, si, ok := s.soundIndex(id)
	if !ok {
		return soundNotFound(id)
	}
	fn(&s.boards[bi].Sounds[si])
	return nil
}

func (s *Store) boardIndex(ref string) (int, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, false
	}
	for i, board := range s.boards {
		if board.ID == ref {
			return i, true
		}
	}
	return s.boardByName(ref)
}

func (s *Store) boardByName(name string) (int, bool) {
	for i, board := range s.boards {
		if strings.EqualFold(board.Name, name) {
			return i, true
		}
	}
	return 0, false
}

func (s *Store) soundIndex(ref string) (int, int, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, 0, false
	}
	for bi, board := range s.boards {
		for si, sound := range board.Sounds {
			if sound.ID == ref {
				return bi, si, true
			}
		}
	}
	if boardRef, soundRef, ok := strings.Cut(ref, "/"); ok {
		if bi, found := s.boardIndex(boardRef); found {
			for si, sound := range s.boards[bi].Sounds {
				if strings.EqualFold(sound.Name, strings.TrimSpace(soundRef)) {
					return bi, si, true
				}
			}
		}
	}
	for bi, board := range s.boards {
		for si, sound := range board.Sounds {
			if strings.EqualFold(sound.Name, ref) {
				return bi, si, true
			}
		}
	}
	return 0, 0, false
}

// decodeDocument accepts {"soundboards": [...]} or a bare board array.
func decodeDocument(data []byte) (fileDocument, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fileDocument{}, nil
	}
	if trimmed[0] == '[' {
		var boards []fileSoundboard
		if err := json.Unmarshal(trimmed, &boards); err != nil {
			return fileDocument{}, err
		}
		return fileDocument{Soundboards: boards}, nil
	}
	var doc fileDocument
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return fileDocument{}, err
	}
	return doc, nil
}

func cloneBoard(board Soundboard) Soundboard {
	board.Sounds = append([]Sound(nil), board.Sounds...)
	return board
}

func move[T any](items []T, from, to int) []T {
	if to < 0 {
		to = 0
	}
	if to > len(items)-1 {
		to = len(items) - 1
	}
	if from == to {
		return items
	}
	item := items[from]
	items = append(items[:from], items[from+1:]...)
	items = append(items[:to], append([]T{item}, items[to:]...)...)
	return items
}

func volumeOrDefault(v *int) int {
	if v == nil {
		return defaultVolume
	}
	return playback.ClampVolume(*v)
}

func intPtr(v int) *int { return &v }

func boardNotFound(ref string) error {
	return fmt.Errorf("soundboard %q: %w", ref, ErrNotFound)
}

func soundNotFound(ref string) error {
	return fmt.Errorf("sound %q: %w", ref, ErrNotFound)
}
