// Package folderwatch reports debounced changes in soundboard linked folders.
package folderwatch

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config controls change coalescing.
type Config struct {
	DebounceDur time.Duration
}

// DefaultConfig returns the default debounce.
func DefaultConfig() Config {
	return Config{DebounceDur: 250 * time.Millisecond}
}

// Watcher watches folders and calls onChange once per burst of changes in a folder.
type Watcher struct {
	cfg      Config
	onChange func(folder string)
	logger   *slog.Logger

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	folders map[string]struct{}
	timers  map[string]*time.Timer
	stopped bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a watcher. Call Start to begin delivering changes.
func New(cfg Config, onChange func(folder string), logger *slog.Logger) (*Watcher, error) {
	if cfg.DebounceDur <= 0 {
		cfg.DebounceDur = DefaultConfig().DebounceDur
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		cfg:      cfg,
		onChange: onChange,
		logger:   logger,
		fsw:      fsw,
		folders:  make(map[string]struct{}),
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}, nil
}

// Add starts watching folder. Adding a watched folder is a no-op.
func (w *Watcher) Add(folder string) error {
	folder = filepath.Clean(folder)
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.folders[folder]; ok {
		return nil
	}
	if err := w.fsw.Add(folder); err != nil {
		return fmt.Errorf("watch folder %q: %w", folder, err)
	}
	w.folders[folder] = struct{}{}
	return nil
}

// Remove stops watching folder.
func (w *Watcher) Remove(folder string) error {
	folder = filepath.Clean(folder)
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.folders[folder]; !ok {
		return nil
	}
	delete(w.folders, folder)
	if timer, ok := w.timers[folder]; ok {
		timer.Stop()
		delete(w.timers, folder)
	}
	if err := w.fsw.Remove(folder); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
		return fmt.Errorf("unwatch folder %q: %w", folder, err)
	}
	return nil
}

// Folders returns the watched folders.
func (w *Watcher) Folders() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.folders))
	for folder := range w.folders {
		out = append(out, folder)
	}
	return out
}

// Start begins the event loop.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop ends the event loop and cancels pending notifications.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	for folder, timer := range w.timers {
		timer.Stop()
		delete(w.timers, folder)
	}
	close(w.done)
	w.mu.Unlock()

	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			w.schedule(filepath.Dir(ev.Name))
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warn("folder watch error", "error", err.Error())
			}
		}
	}
}

func (w *Watcher) schedule(folder string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if _, ok := w.folders[folder]; !ok {
		return
	}
	if timer, ok := w.timers[folder]; ok {
		timer.Reset(w.cfg.DebounceDur)
		return
	}
	w.timers[folder] = time.AfterFunc(w.cfg.DebounceDur, func() { w.fire(folder) })
}

func (w *Watcher) fire(folder string) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	delete(w.timers, folder)
	_, watched := w.folders[folder]
	w.mu.Unlock()

	if watched && w.onChange != nil {
		w.onChange(folder)
	}
}
