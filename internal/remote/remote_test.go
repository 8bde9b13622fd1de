package remote

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rbright/soundboard/internal/events"
	"github.com/rbright/soundboard/internal/library"
	"github.com/rbright/soundboard/internal/playback"
	"github.com/rbright/soundboard/internal/session"
)

type fakeController struct {
	mu       sync.Mutex
	calls    []string
	selected string
	playErr  error
}

func (f *fakeController) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeController) Play(_ context.Context, ref string) error {
	f.record("play " + ref)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playErr
}

func (f *fakeController) Stop(_ context.Context, ref string) error {
	if ref == "ghost" {
		return fmt.Errorf("sound %q: %w", ref, library.ErrNotFound)
	}
	f.record("stop " + ref)
	return nil
}

func (f *fakeController) StopAll(context.Context) {
	f.record("stop-all")
}

func (f *fakeController) Select(_ context.Context, ref string) error {
	f.record("select " + ref)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = ref
	return nil
}

func (f *fakeController) Status(context.Context) session.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return session.Status{
		State:              "playing",
		Playing:            []session.PlayingSound{{ID: "s1", Name: "airhorn", SoundboardID: "b1"}},
		SelectedSoundboard: f.selected,
		KeybindsEnabled:    true,
		OverlapSounds:      true,
		Keybinds:           3,
		MainDevice:         "default",
	}
}

func (f *fakeController) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func startRemote(t *testing.T, ctrl Controller, bus *events.Bus) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(ctrl, bus, nil)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client, err := Dial(context.Background(), "passthrough:///bufnet", time.Second,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestUnaryCallsReachController(t *testing.T) {
	ctrl := &fakeController{}
	client := startRemote(t, ctrl, events.NewBus())
	ctx := context.Background()

	st, err := client.Play(ctx, "airhorn")
	require.NoError(t, err)
	require.Equal(t, "playing", st.State)
	require.Equal(t, []session.PlayingSound{{ID: "s1", Name: "airhorn", SoundboardID: "b1"}}, st.Playing)
	require.Equal(t, 3, st.Keybinds)

	_, err = client.Stop(ctx, "airhorn")
	require.NoError(t, err)
	_, err = client.StopAll(ctx)
	require.NoError(t, err)

	st, err = client.Select(ctx, "Memes")
	require.NoError(t, err)
	require.Equal(t, "Memes", st.SelectedSoundboard)

	st, err = client.Status(ctx)
	require.NoError(t, err)
	require.True(t, st.KeybindsEnabled)
	require.Equal(t, "default", st.MainDevice)

	require.Equal(t, []string{"play airhorn", "stop airhorn", "stop-all", "select Memes"}, ctrl.Calls())
}

func TestErrorsMapToStatusCodes(t *testing.T) {
	ctrl := &fakeController{playErr: fmt.Errorf("%w: /tmp/gone.wav", playback.ErrFileMissing)}
	client := startRemote(t, ctrl, events.NewBus())
	ctx := context.Background()

	_, err := client.Play(ctx, "gone")
	require.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = client.Stop(ctx, "ghost")
	require.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.Select(ctx, "  ")
	require.Equal(t, codes.InvalidArgument, status.Code(err))
	require.Empty(t, ctrl.Calls()[1:])
}

func TestHealthReportsServing(t *testing.T) {
	client := startRemote(t, &fakeController{}, events.NewBus())

	ok, err := client.Health(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestEventsStreamDeliversBusEvents(t *testing.T) {
	bus := events.NewBus()
	client := startRemote(t, &fakeController{}, bus)

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan events.Event, 16)
	done := make(chan error, 1)
	go func() {
		done <- client.Events(ctx, func(ev events.Event) { received <- ev })
	}()

	var got events.Event
	require.Eventually(t, func() bool {
		bus.Emit(events.Event{Kind: events.SoundboardSelected, SoundboardID: "b1", SoundboardName: "Memes"})
		select {
		case got = <-received:
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)

	require.Equal(t, events.SoundboardSelected, got.Kind)
	require.Equal(t, "Memes", got.SoundboardName)
	require.False(t, got.At.IsZero())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("event stream did not end after cancel")
	}
}

func TestDialRejectsEmptyAddress(t *testing.T) {
	_, err := Dial(context.Background(), " ", 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty")
}
