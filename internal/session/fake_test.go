package session

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rbright/soundboard/internal/events"
	"github.com/rbright/soundboard/internal/hotkey"
	"github.com/rbright/soundboard/internal/keys"
	"github.com/rbright/soundboard/internal/library"
	"github.com/rbright/soundboard/internal/playback"
	"github.com/rbright/soundboard/internal/settings"
	"github.com/stretchr/testify/require"
)

type fakeInstance struct {
	done chan struct{}
	once sync.Once
}

func (f *fakeInstance) Done() <-chan struct{} { return f.done }
func (f *fakeInstance) Stop()                 { f.end() }
func (f *fakeInstance) end()                  { f.once.Do(func() { close(f.done) }) }

type fakeOutput struct {
	mu        sync.Mutex
	err       error
	requests  []playback.InstanceRequest
	instances []*fakeInstance
}

func (f *fakeOutput) Start(req playback.InstanceRequest) (playback.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	inst := &fakeInstance{done: make(chan struct{})}
	f.requests = append(f.requests, req)
	f.instances = append(f.instances, inst)
	return inst, nil
}

func (f *fakeOutput) last() *fakeInstance {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.instances[len(f.instances)-1]
}

func (f *fakeOutput) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// refusingBackend rejects every combination.
type refusingBackend struct {
	*hotkey.NoopBackend
}

func (refusingBackend) Register(context.Context, keys.Combination) (hotkey.ID, error) {
	return "", errors.New("chord taken")
}

type fakeIndicator struct {
	mu      sync.Mutex
	warns   []string
	notices []string
}

func (f *fakeIndicator) Warn(_ context.Context, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warns = append(f.warns, text)
}

func (f *fakeIndicator) warnings() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.warns...)
}

func (f *fakeIndicator) Notice(_ context.Context, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, text)
}

type fakeWatcher struct {
	mu      sync.Mutex
	folders map[string]bool
}

func (f *fakeWatcher) Add(folder string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.folders[folder] = true
	return nil
}

func (f *fakeWatcher) Remove(folder string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.folders, folder)
	return nil
}

func (f *fakeWatcher) watching(folder string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.folders[folder]
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) listen(ev events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) kinds() []events.Kind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]events.Kind, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Kind)
	}
	return out
}

type harness struct {
	dir       string
	c         *Controller
	lib       *library.Store
	settings  *settings.Store
	registry  *hotkey.Registry
	backend   *hotkey.NoopBackend
	output    *fakeOutput
	indicator *fakeIndicator
	watcher   *fakeWatcher
	events    *eventLog
}

// newHarness writes a library with boards "Memes" (airhorn, bruh) and
// "Ambience" (rain) whose files exist, plus extra raw JSON boards.
func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithBackend(t, nil)
}

// newHarnessWithBackend is newHarness with a custom keybind backend. A nil
// backend uses a NoopBackend, which also serves fire requests.
func newHarnessWithBackend(t *testing.T, custom hotkey.Backend) *harness {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"airhorn.wav", "bruh.mp3", "rain.ogg"} {
		touch(t, filepath.Join(dir, name))
	}

	doc := map[string]any{
		"soundboards": []map[string]any{
			{
				"name": "Memes",
				"keys": []string{"CTRL", "F1"},
				"sounds": []map[string]any{
					{"name": "airhorn", "path": filepath.Join(dir, "airhorn.wav"), "keys": []string{"CTRL", "1"}},
					{"name": "bruh", "path": filepath.Join(dir, "bruh.mp3"), "volume": 50},
				},
			},
			{
				"name":   "Ambience",
				"volume": 80,
				"sounds": []map[string]any{
					{"name": "rain", "path": filepath.Join(dir, "rain.ogg")},
				},
			},
		},
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	libPath := filepath.Join(dir, "library.json")
	require.NoError(t, os.WriteFile(libPath, raw, 0o600))

	lib, err := library.Open(libPath)
	require.NoError(t, err)
	store, err := settings.Load(filepath.Join(dir, "settings.yaml"), nil)
	require.NoError(t, err)

	bus := events.NewBus()
	log := &eventLog{}
	bus.Subscribe(log.listen)

	output := &fakeOutput{}
	player := playback.NewPlayer(output, nil)
	coord := playback.NewCoordinator(player, store, bus, nil)
	backend := hotkey.NewNoopBackend()
	var active hotkey.Backend = backend
	if custom != nil {
		active = custom
	}
	registry := hotkey.NewRegistry(active, store, nil)

	h := &harness{
		dir:       dir,
		lib:       lib,
		settings:  store,
		registry:  registry,
		backend:   backend,
		output:    output,
		indicator: &fakeIndicator{},
		watcher:   &fakeWatcher{folders: make(map[string]bool)},
		events:    log,
	}
	h.c = NewController(Deps{
		Library:     lib,
		Settings:    store,
		Coordinator: coord,
		Registry:    registry,
		Bus:         bus,
		Firer:       backend,
		Indicator:   h.indicator,
		Watcher:     h.watcher,
		Supported: func(path string) bool {
			ext := strings.ToLower(filepath.Ext(path))
			return ext == ".wav" || ext == ".mp3" || ext == ".ogg"
		},
	})
	t.Cleanup(func() { _ = h.c.Close(context.Background()) })
	return h
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o600))
}

func (h *harness) soundID(t *testing.T, ref string) string {
	t.Helper()
	sound, ok := h.lib.Sound(ref)
	require.True(t, ok, "sound %q", ref)
	return sound.ID
}

func (h *harness) boardID(t *testing.T, ref string) string {
	t.Helper()
	board, ok := h.lib.Soundboard(ref)
	require.True(t, ok, "soundboard %q", ref)
	return board.ID
}

func mustKeys(t *testing.T, raw string) keys.Combination {
	t.Helper()
	combo, err := keys.Parse(raw)
	require.NoError(t, err)
	return combo
}
