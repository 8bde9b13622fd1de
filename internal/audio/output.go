package audio

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/jfreymuth/pulse"

	"github.com/rbright/soundboard/internal/playback"
)

const resampleQuality = 4

// OutputOptions tunes the playback streams.
type OutputOptions struct {
	SampleRate int
	Latency    time.Duration
}

// PulseOutput starts one Pulse playback stream per instance on a shared client.
type PulseOutput struct {
	client *pulse.Client
	opts   OutputOptions
	logger *slog.Logger
}

// NewPulseOutput connects to the Pulse server.
func NewPulseOutput(opts OutputOptions, logger *slog.Logger) (*PulseOutput, error) {
	if opts.SampleRate <= 0 {
		opts.SampleRate = 48000
	}
	if opts.Latency <= 0 {
		opts.Latency = 50 * time.Millisecond
	}
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	return &PulseOutput{client: client, opts: opts, logger: logger}, nil
}

// Devices lists sinks over the shared client.
func (o *PulseOutput) Devices() ([]Device, error) {
	return listDevices(o.client)
}

// Close disconnects from the Pulse server.
func (o *PulseOutput) Close() {
	o.client.Close()
}

// Start decodes the file and begins playback on the requested sink.
func (o *PulseOutput) Start(req playback.InstanceRequest) (playback.Instance, error) {
	sink, err := o.sink(req.Device)
	if err != nil {
		return nil, err
	}

	source, format, err := Decode(req.Path)
	if err != nil {
		return nil, err
	}

	var streamer beep.Streamer = source
	target := beep.SampleRate(o.opts.SampleRate)
	if format.SampleRate != target {
		streamer = beep.Resample(resampleQuality, format.SampleRate, target, streamer)
	}
	streamer = &effects.Gain{Streamer: streamer, Gain: req.Gain - 1}

	inst := &pulseInstance{
		streamer: streamer,
		source:   source,
		done:     make(chan struct{}),
		eof:      make(chan struct{}),
		logger:   o.logger,
	}

	stream, err := o.client.NewPlayback(
		pulse.Float32Reader(inst.read),
		pulse.PlaybackStereo,
		pulse.PlaybackSampleRate(o.opts.SampleRate),
		pulse.PlaybackSink(sink),
		pulse.PlaybackLatency(o.opts.Latency.Seconds()),
		pulse.PlaybackMediaName(req.Name),
	)
	if err != nil {
		_ = source.Close()
		return nil, fmt.Errorf("create pulse playback stream: %w", err)
	}
	inst.stream = stream

	stream.Start()
	go inst.drain()
	return inst, nil
}

func (o *PulseOutput) sink(id string) (*pulse.Sink, error) {
	if id == "" || id == DefaultDeviceID {
		sink, err := o.client.DefaultSink()
		if err != nil {
			return nil, fmt.Errorf("read default sink: %w", err)
		}
		return sink, nil
	}
	if sink, err := o.client.SinkByID(id); err == nil {
		return sink, nil
	}

	devices, err := listDevices(o.client)
	if err != nil {
		return nil, err
	}
	dev, err := resolveFromList(devices, id)
	if err != nil {
		return nil, err
	}
	sink, err := o.client.SinkByID(dev.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve sink %q: %w", dev.ID, err)
	}
	return sink, nil
}

// pulseInstance feeds one beep streamer into one Pulse playback stream.
type pulseInstance struct {
	stream *pulse.PlaybackStream
	logger *slog.Logger

	mu       sync.Mutex
	streamer beep.Streamer
	source   beep.StreamSeekCloser
	frames   [][2]float64
	stopped  bool
	ended    bool

	eof      chan struct{}
	done     chan struct{}
	doneOnce sync.Once
}

func (p *pulseInstance) Done() <-chan struct{} { return p.done }

// Stop discards buffered audio and ends the stream. It is idempotent.
func (p *pulseInstance) Stop() {
	p.mu.Lock()
	already := p.stopped
	p.stopped = true
	p.mu.Unlock()
	if already {
		return
	}

	p.stream.Stop()
	p.finish()
}

// read fills interleaved stereo samples.
func (p *pulseInstance) read(buf []float32) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || p.ended {
		return 0, pulse.EndOfData
	}

	want := len(buf) / 2
	if cap(p.frames) < want {
		p.frames = make([][2]float64, want)
	}
	frames := p.frames[:want]

	n, ok := p.streamer.Stream(frames)
	for i := 0; i < n; i++ {
		buf[2*i] = float32(frames[i][0])
		buf[2*i+1] = float32(frames[i][1])
	}
	if !ok || n < want {
		p.ended = true
		if err := p.streamer.Err(); err != nil && p.logger != nil {
			p.logger.Warn("sound decode failed mid-stream", "error", err.Error())
		}
		close(p.eof)
		return 2 * n, pulse.EndOfData
	}
	return 2 * n, nil
}

func (p *pulseInstance) drain() {
	select {
	case <-p.eof:
		p.stream.Drain()
		if err := p.stream.Error(); err != nil && p.logger != nil {
			p.logger.Warn("playback stream failed", "error", err.Error())
		}
	case <-p.done:
	}
	p.finish()
}

func (p *pulseInstance) finish() {
	p.doneOnce.Do(func() {
		close(p.done)
		p.stream.Close()
		p.mu.Lock()
		_ = p.source.Close()
		p.mu.Unlock()
	})
}
