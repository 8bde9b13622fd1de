package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

type target struct {
	device string
	volume int
}

// Player owns the active instances of every sound.
type Player struct {
	output Output
	logger *slog.Logger
	exists func(path string) bool

	mu         sync.Mutex
	active     map[string]map[uint64]Instance
	nextID     uint64
	onFinished func(soundID string)
}

// NewPlayer creates a player that starts streams on output.
func NewPlayer(output Output, logger *slog.Logger) *Player {
	return &Player{
		output: output,
		logger: logger,
		exists: fileExists,
		active: make(map[string]map[uint64]Instance),
	}
}

// OnFinished sets the callback run when a sound's active set empties through
// natural completion. It is called without the player lock held.
func (p *Player) OnFinished(fn func(soundID string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFinished = fn
}

// Playable reports ErrFileMissing when the sound's file is absent.
func (p *Player) Playable(sound Sound) error {
	if sound.Path == "" || !p.exists(sound.Path) {
		return fmt.Errorf("%w: %s", ErrFileMissing, sound.Path)
	}
	return nil
}

// Play starts one instance on the main device and, when configured, one on the
// secondary device. It returns without waiting for playback.
func (p *Player) Play(sound Sound, cfg Config) (bool, error) {
	if err := p.Playable(sound); err != nil {
		return false, err
	}

	boardVolume := 100
	if sound.Board == nil {
		p.logWarn("sound has no soundboard; using full soundboard volume", "sound", sound.Name)
	} else {
		boardVolume = sound.Board.Volume
	}

	targets := []target{{device: deviceOrDefault(cfg.MainDevice), volume: cfg.MainVolume}}
	if cfg.SecondaryDevice != "" {
		targets = append(targets, target{device: cfg.SecondaryDevice, volume: cfg.SecondaryVolume})
	}

	started := make([]Instance, 0, len(targets))
	var startErr error
	for _, t := range targets {
		inst, err := p.output.Start(InstanceRequest{
			Path:   sound.Path,
			Device: t.device,
			Gain:   Gain(t.volume, sound.Volume, boardVolume),
			Name:   sound.Name,
		})
		if err != nil {
			p.logWarn("start playback instance failed", "sound", sound.Name, "device", t.device, "error", err.Error())
			startErr = errors.Join(startErr, fmt.Errorf("device %s: %w", t.device, err))
			continue
		}
		started = append(started, inst)
	}
	if len(started) == 0 {
		return false, fmt.Errorf("start playback for %q: %w", sound.Name, startErr)
	}

	p.mu.Lock()
	set := p.active[sound.ID]
	if set == nil {
		set = make(map[uint64]Instance, len(started))
		p.active[sound.ID] = set
	}
	ids := make([]uint64, 0, len(started))
	for _, inst := range started {
		p.nextID++
		set[p.nextID] = inst
		ids = append(ids, p.nextID)
	}
	p.mu.Unlock()

	for i, inst := range started {
		go p.watch(sound.ID, ids[i], inst)
	}
	return true, nil
}

// Stop ends every active instance of the sound now. No finished callback runs.
func (p *Player) Stop(soundID string) {
	p.mu.Lock()
	set := p.active[soundID]
	delete(p.active, soundID)
	p.mu.Unlock()

	for _, inst := range set {
		inst.Stop()
	}
}

// Active returns the number of live instances for the sound.
func (p *Player) Active(soundID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active[soundID])
}

func (p *Player) watch(soundID string, id uint64, inst Instance) {
	<-inst.Done()
	if err := p.finish(soundID, id); err != nil && p.logger != nil {
		p.logger.Debug("playback completion ignored", "sound_id", soundID, "instance", id, "error", err.Error())
	}
}

func (p *Player) finish(soundID string, id uint64) error {
	p.mu.Lock()
	set := p.active[soundID]
	if _, ok := set[id]; !ok {
		p.mu.Unlock()
		return ErrStaleCallback
	}
	delete(set, id)
	empty := len(set) == 0
	if empty {
		delete(p.active, soundID)
	}
	cb := p.onFinished
	p.mu.Unlock()

	if empty && cb != nil {
		cb(soundID)
	}
	return nil
}

func (p *Player) logWarn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

func deviceOrDefault(device string) string {
	if device == "" {
		return DefaultDevice
	}
	return device
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
