package indicator

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gopxl/beep"
	"github.com/jfreymuth/pulse"

	"github.com/rbright/soundboard/internal/audio"
	"github.com/rbright/soundboard/internal/config"
)

const (
	cueRate = beep.SampleRate(22050)
	// maxCueLength caps how much of a custom cue file is played.
	maxCueLength = 3 * time.Second
	cueRamp      = 5 * time.Millisecond
)

// errorCue is the built-in two-tone descending blip.
func errorCue() beep.Streamer {
	return beep.Seq(
		tone(480, 75*time.Millisecond, 0.18),
		beep.Silence(cueRate.N(22*time.Millisecond)),
		tone(360, 110*time.Millisecond, 0.18),
	)
}

// tone is a sine burst with short linear attack and release ramps.
func tone(freq float64, d time.Duration, volume float64) beep.Streamer {
	total := cueRate.N(d)
	ramp := min(cueRate.N(cueRamp), total/10)
	pos := 0
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if pos >= total {
			return 0, false
		}
		n := min(len(samples), total-pos)
		for i := range n {
			env := 1.0
			if ramp > 0 {
				env = min(1, float64(pos)/float64(ramp), float64(total-pos-1)/float64(ramp))
			}
			v := math.Sin(2*math.Pi*freq*float64(pos)/float64(cueRate)) * volume * env
			samples[i] = [2]float64{v, v}
			pos++
		}
		return n, true
	})
}

// emitErrorCue plays cfg.SoundErrorFile when it decodes, else the built-in cue.
func emitErrorCue(ctx context.Context, cfg config.IndicatorConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pcm := render(errorCue(), cueRate.N(maxCueLength))
	if path := strings.TrimSpace(cfg.SoundErrorFile); path != "" {
		if custom, err := loadCue(path); err == nil {
			pcm = custom
		}
	}
	return playPCM(ctx, pcm)
}

// loadCue decodes a sound file and resamples it to the cue rate.
func loadCue(path string) ([]float32, error) {
	stream, format, err := audio.Decode(path)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var s beep.Streamer = stream
	if format.SampleRate != cueRate {
		s = beep.Resample(3, format.SampleRate, cueRate, stream)
	}
	pcm := render(s, cueRate.N(maxCueLength))
	if len(pcm) == 0 {
		return nil, fmt.Errorf("cue file %q is empty", path)
	}
	return pcm, nil
}

// render drains s into mono float32 samples, stopping at limit.
func render(s beep.Streamer, limit int) []float32 {
	out := make([]float32, 0, limit)
	buf := make([][2]float64, 512)
	for len(out) < limit {
		n, ok := s.Stream(buf[:min(len(buf), limit-len(out))])
		for _, frame := range buf[:n] {
			out = append(out, float32((frame[0]+frame[1])/2))
		}
		if !ok {
			break
		}
	}
	return out
}

func playPCM(ctx context.Context, pcm []float32) error {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("soundboard"),
		pulse.ClientApplicationIconName("audio-speakers"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Float32Reader(func(buf []float32) (int, error) {
		n := copy(buf, pcm[cursor:])
		cursor += n
		if cursor >= len(pcm) {
			return n, pulse.EndOfData
		}
		return n, nil
	})
	stream, err := client.NewPlayback(reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(int(cueRate)),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("soundboard error cue"),
	)
	if err != nil {
		return fmt.Errorf("create cue stream: %w", err)
	}
	defer stream.Close()

	if err := ctx.Err(); err != nil {
		return err
	}
	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play cue: %w", err)
	}
	return nil
}
