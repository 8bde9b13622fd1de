package playback

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rbright/soundboard/internal/events"
)

type fakeInstance struct {
	req     InstanceRequest
	done    chan struct{}
	once    sync.Once
	stopped atomic.Bool
}

func (f *fakeInstance) Done() <-chan struct{} { return f.done }

func (f *fakeInstance) Stop() {
	f.stopped.Store(true)
	f.end()
}

func (f *fakeInstance) end() {
	f.once.Do(func() { close(f.done) })
}

type fakeOutput struct {
	mu        sync.Mutex
	instances []*fakeInstance
	failOn    map[string]bool
}

func (f *fakeOutput) Start(req InstanceRequest) (Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[req.Device] {
		return nil, errors.New("sink unavailable")
	}
	inst := &fakeInstance{req: req, done: make(chan struct{})}
	f.instances = append(f.instances, inst)
	return inst, nil
}

func (f *fakeOutput) started() []*fakeInstance {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*fakeInstance, len(f.instances))
	copy(out, f.instances)
	return out
}

type staticSettings struct {
	mu  sync.Mutex
	cfg Config
}

func (s *staticSettings) PlaybackConfig() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) listen(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *recorder) count(kind events.Kind) int {
	n := 0
	for _, k := range r.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

func allFilesExist(string) bool { return true }
