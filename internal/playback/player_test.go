package playback

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGain(t *testing.T) {
	require.InDelta(t, 0.16, Gain(80, 50, 100), 1e-9)
	require.InDelta(t, 1.0, Gain(100, 100, 100), 1e-9)
	require.InDelta(t, 0.0, Gain(0, 100, 100), 1e-9)
	require.InDelta(t, 1.0, Gain(150, 200, 101), 1e-9)
	require.InDelta(t, 0.0, Gain(-20, 100, 100), 1e-9)
}

func TestPlayMainOnlyCreatesOneInstance(t *testing.T) {
	out := &fakeOutput{}
	p := NewPlayer(out, nil)
	p.exists = allFilesExist

	started, err := p.Play(testSound("a", 50, 100), Config{MainDevice: "", MainVolume: 80})
	require.NoError(t, err)
	require.True(t, started)

	instances := out.started()
	require.Len(t, instances, 1)
	require.Equal(t, DefaultDevice, instances[0].req.Device)
	require.InDelta(t, 0.16, instances[0].req.Gain, 1e-9)
	require.Equal(t, 1, p.Active("a"))
}

func TestPlayWithSecondaryCreatesTwoInstances(t *testing.T) {
	out := &fakeOutput{}
	p := NewPlayer(out, nil)
	p.exists = allFilesExist

	started, err := p.Play(testSound("a", 100, 50), Config{
		MainDevice:      "speakers",
		MainVolume:      100,
		SecondaryDevice: "virtual-mic",
		SecondaryVolume: 40,
	})
	require.NoError(t, err)
	require.True(t, started)

	instances := out.started()
	require.Len(t, instances, 2)
	require.Equal(t, "speakers", instances[0].req.Device)
	require.InDelta(t, 0.25, instances[0].req.Gain, 1e-9)
	require.Equal(t, "virtual-mic", instances[1].req.Device)
	require.InDelta(t, 0.04, instances[1].req.Gain, 1e-9)
}

func TestPlayWithoutBoardUsesFullBoardVolume(t *testing.T) {
	out := &fakeOutput{}
	p := NewPlayer(out, nil)
	p.exists = allFilesExist

	sound := Sound{ID: "orphan", Name: "orphan", Path: "/x.wav", Volume: 50}
	_, err := p.Play(sound, Config{MainVolume: 100})
	require.NoError(t, err)
	require.InDelta(t, 0.25, out.started()[0].req.Gain, 1e-9)
}

func TestPlayMissingFileHasNoSideEffects(t *testing.T) {
	out := &fakeOutput{}
	p := NewPlayer(out, nil)

	started, err := p.Play(Sound{ID: "a", Name: "a", Path: t.TempDir() + "/gone.wav"}, Config{MainVolume: 100})
	require.ErrorIs(t, err, ErrFileMissing)
	require.False(t, started)
	require.Empty(t, out.started())
	require.Zero(t, p.Active("a"))
}

func TestPlayKeepsRunningWhenSecondaryFails(t *testing.T) {
	out := &fakeOutput{failOn: map[string]bool{"broken": true}}
	p := NewPlayer(out, nil)
	p.exists = allFilesExist

	started, err := p.Play(testSound("a", 100, 100), Config{MainVolume: 100, SecondaryDevice: "broken", SecondaryVolume: 100})
	require.NoError(t, err)
	require.True(t, started)
	require.Equal(t, 1, p.Active("a"))
}

func TestPlayFailsWhenNoInstanceStarts(t *testing.T) {
	out := &fakeOutput{failOn: map[string]bool{DefaultDevice: true}}
	p := NewPlayer(out, nil)
	p.exists = allFilesExist

	started, err := p.Play(testSound("a", 100, 100), Config{MainVolume: 100})
	require.Error(t, err)
	require.Contains(t, err.Error(), "sink unavailable")
	require.False(t, started)
}

func TestFinishedFiresOnceWhenAllInstancesEnd(t *testing.T) {
	out := &fakeOutput{}
	p := NewPlayer(out, nil)
	p.exists = allFilesExist
	var finished atomic.Int32
	p.OnFinished(func(string) { finished.Add(1) })

	_, err := p.Play(testSound("a", 100, 100), Config{MainVolume: 100, SecondaryDevice: "b", SecondaryVolume: 100})
	require.NoError(t, err)
	instances := out.started()

	instances[0].end()
	require.Eventually(t, func() bool { return p.Active("a") == 1 }, time.Second, 5*time.Millisecond)
	require.Zero(t, finished.Load())

	instances[1].end()
	require.Eventually(t, func() bool { return finished.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Zero(t, p.Active("a"))
}

func TestStopClearsWithoutFinishedCallback(t *testing.T) {
	out := &fakeOutput{}
	p := NewPlayer(out, nil)
	p.exists = allFilesExist
	var finished atomic.Int32
	p.OnFinished(func(string) { finished.Add(1) })

	_, err := p.Play(testSound("a", 100, 100), Config{MainVolume: 100, SecondaryDevice: "b", SecondaryVolume: 100})
	require.NoError(t, err)

	p.Stop("a")
	require.Zero(t, p.Active("a"))
	for _, inst := range out.started() {
		require.True(t, inst.stopped.Load())
	}

	time.Sleep(20 * time.Millisecond)
	require.Zero(t, finished.Load())
}

func TestFinishRejectsUnknownInstance(t *testing.T) {
	p := NewPlayer(&fakeOutput{}, nil)
	require.ErrorIs(t, p.finish("a", 42), ErrStaleCallback)
}

func testSound(id string, volume, boardVolume int) Sound {
	return Sound{
		ID:     id,
		Name:   id,
		Path:   "/sounds/" + id + ".wav",
		Volume: volume,
		Board:  &Board{ID: "board-1", Name: "Main", Volume: boardVolume},
	}
}
