package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/soundboard/internal/audio"
	"github.com/rbright/soundboard/internal/config"
	"github.com/rbright/soundboard/internal/ipc"
	"github.com/rbright/soundboard/internal/playback"
	"github.com/rbright/soundboard/internal/session"
)

func TestExecuteHelp(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--help"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "Usage:")
	require.Empty(t, stderr.String())
}

func TestExecuteVersion(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"version"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "soundboard")
	require.Empty(t, stderr.String())
}

func TestExecuteUnknownCommand(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"definitely-not-a-command"}, &stdout, &stderr)
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown command")
	require.Contains(t, stderr.String(), "Usage:")
}

func TestRunnerStatusWhenDaemonNotRunning(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "not running\n", stdout.String())
	require.Empty(t, stderr.String())
}

func TestRunnerPlayFailsWithoutDaemon(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "play", "airhorn"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "soundboard daemon is not running")
}

func TestRunnerForwardsCommandsWithArgs(t *testing.T) {
	paths := setupRunnerEnv(t)
	requests := make(chan ipc.Request, 8)

	shutdown := startIPCServerForRunnerTest(t, paths.socketPath, func(_ context.Context, req ipc.Request) ipc.Response {
		requests <- req
		switch req.Command {
		case "play", "set", "board.volume":
			return ipc.Response{OK: true, Message: req.Command + " handled"}
		case "fire":
			return ipc.Response{OK: true}
		default:
			return ipc.Response{OK: false, Error: "unsupported"}
		}
	})
	defer shutdown()

	cases := []struct {
		args   []string
		want   ipc.Request
		stdout string
	}{
		{[]string{"play", "Memes/airhorn"}, ipc.Request{Command: "play", Args: []string{"Memes/airhorn"}}, "play handled\n"},
		{[]string{"set", "overlap", "off"}, ipc.Request{Command: "set", Args: []string{"overlap", "off"}}, "set handled\n"},
		{[]string{"board", "volume", "Memes", "40"}, ipc.Request{Command: "board.volume", Args: []string{"Memes", "40"}}, "board.volume handled\n"},
		{[]string{"fire", "abc"}, ipc.Request{Command: "fire", Args: []string{"abc"}}, ""},
	}

	for _, tc := range cases {
		stdout := &bytes.Buffer{}
		stderr := &bytes.Buffer{}
		runner := Runner{Stdout: stdout, Stderr: stderr}

		exitCode := runner.Execute(context.Background(), append([]string{"--config", paths.configPath}, tc.args...))
		require.Equal(t, 0, exitCode, tc.args)
		require.Empty(t, stderr.String(), tc.args)
		require.Equal(t, tc.stdout, stdout.String(), tc.args)
		require.Equal(t, tc.want, <-requests)
	}
}

func TestRunnerReportsDaemonErrors(t *testing.T) {
	paths := setupRunnerEnv(t)
	shutdown := startIPCServerForRunnerTest(t, paths.socketPath, func(_ context.Context, req ipc.Request) ipc.Response {
		return ipc.Response{OK: false, Error: fmt.Sprintf("sound %q: not found", req.Arg(0))}
	})
	defer shutdown()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "stop", "ghost"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), `sound "ghost": not found`)
}

func TestTryForwardSuccessAndFailureResponses(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "soundboard.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	serverCtx, cancelServer := context.WithCancel(context.Background())
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- ipc.Serve(serverCtx, listener, ipc.HandlerFunc(func(_ context.Context, req ipc.Request) ipc.Response {
			switch req.Command {
			case "status":
				return ipc.Response{OK: true, State: "playing"}
			default:
				return ipc.Response{OK: false, Error: "unsupported"}
			}
		}))
	}()

	resp, handled, err := tryForward(context.Background(), socketPath, ipc.Request{Command: "status"})
	require.True(t, handled)
	require.NoError(t, err)
	require.Equal(t, "playing", resp.State)

	_, handled, err = tryForward(context.Background(), socketPath, ipc.Request{Command: "bogus"})
	require.True(t, handled)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported")

	cancelServer()
	require.NoError(t, <-serverDone)
}

func TestTryForwardDoesNotRemoveSocketPathOnForwardFailure(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "soundboard.sock")
	require.NoError(t, os.WriteFile(socketPath, []byte("stale"), 0o600))

	_, handled, err := tryForward(context.Background(), socketPath, ipc.Request{Command: "status"})
	require.False(t, handled)
	require.NoError(t, err)

	_, statErr := os.Stat(socketPath)
	require.NoError(t, statErr)
}

func TestTryForwardTreatsReadFailuresAsHandledErrors(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "soundboard.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, acceptErr := listener.Accept()
		if acceptErr == nil {
			_ = conn.Close()
		}
	}()

	_, handled, err := tryForward(context.Background(), socketPath, ipc.Request{Command: "status"})
	require.True(t, handled)
	require.Error(t, err)
	require.Contains(t, err.Error(), "forward command \"status\":")

	<-done
	require.NoError(t, listener.Close())
}

func TestRunnerDoctorCommandDispatchesAndPrintsReport(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("XDG_SESSION_TYPE", "x11")
	t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "")
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "doctor"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stdout.String(), "config: loaded")
	require.Contains(t, stdout.String(), "XDG_SESSION_TYPE")
}

func TestRunnerDevicesCommandDispatches(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "devices"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error:")
}

func TestRunnerRunFailsWhenOutputUnavailable(t *testing.T) {
	paths := setupRunnerEnv(t)
	writeDaemonConfig(t, paths)

	var stderr bytes.Buffer
	runner := Runner{
		Stdout: &bytes.Buffer{},
		Stderr: &stderr,
		NewOutput: func(config.AudioConfig, *slog.Logger) (playback.Output, error) {
			return nil, errors.New("no pulse server")
		},
	}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "run"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "open audio output: no pulse server")

	_, statErr := os.Stat(paths.socketPath)
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestRunnerDaemonServesForwardedCommands(t *testing.T) {
	paths := setupRunnerEnv(t)
	writeDaemonConfig(t, paths)
	output := &fakeOutput{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	daemonDone := make(chan int, 1)
	go func() {
		runner := Runner{
			Stdout: &bytes.Buffer{},
			Stderr: &bytes.Buffer{},
			NewOutput: func(config.AudioConfig, *slog.Logger) (playback.Output, error) {
				return output, nil
			},
		}
		daemonDone <- runner.Execute(ctx, []string{"--config", paths.configPath, "run"})
	}()

	run := func(args ...string) (int, string, string) {
		var stdout, stderr bytes.Buffer
		runner := Runner{Stdout: &stdout, Stderr: &stderr}
		code := runner.Execute(context.Background(), append([]string{"--config", paths.configPath}, args...))
		return code, stdout.String(), stderr.String()
	}

	require.Eventually(t, func() bool {
		_, out, _ := run("status")
		return out != "" && out != "not running\n"
	}, 5*time.Second, 25*time.Millisecond)

	code, out, errOut := run("play", "Memes/airhorn")
	require.Equal(t, 0, code, errOut)
	require.Equal(t, "playing Memes/airhorn\n", out)
	require.Equal(t, 1, output.started())

	code, out, _ = run("status")
	require.Equal(t, 0, code)
	require.Contains(t, out, "playing\n")
	require.Contains(t, out, "playing: airhorn")

	code, out, _ = run("list")
	require.Equal(t, 0, code)
	require.Contains(t, out, "Memes (volume=100)")
	require.Contains(t, out, "airhorn (volume=100 keys=CTRL+1) [playing]")

	code, out, _ = run("stop-all")
	require.Equal(t, 0, code)
	require.Equal(t, "stopped all sounds\n", out)

	code, _, errOut = run("play", "ghost")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "not found")

	cancel()
	select {
	case code := <-daemonDone:
		require.Equal(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
	_, statErr := os.Stat(paths.socketPath)
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestTryForwardMissingSocketIsUnhandled(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "missing", "soundboard.sock")

	resp, handled, err := tryForward(context.Background(), socketPath, ipc.Request{Command: "stop-all"})
	require.False(t, handled)
	require.NoError(t, err)
	require.Equal(t, ipc.Response{}, resp)
}

func TestRenderStatusAndSync(t *testing.T) {
	resp, err := ipc.Response{State: "idle"}.WithData(session.Status{
		State:              "idle",
		SelectedSoundboard: "Memes",
		KeybindsEnabled:    true,
		Keybinds:           4,
		Locked:             true,
		MainDevice:         "default",
	})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, render(&out, "status", resp))
	require.Equal(t, "idle\nsoundboard: Memes\nkeybinds: on (4 registered), locked\noverlap: off\ndevices: main=default secondary=(none)\n", out.String())

	resp, err = ipc.Response{Message: "synced: 1 added, 1 removed"}.WithData(session.SyncView{Added: []string{"rain"}, Removed: []string{"wind"}})
	require.NoError(t, err)
	out.Reset()
	require.NoError(t, render(&out, "sync", resp))
	require.Equal(t, "synced: 1 added, 1 removed\n+ rain\n- wind\n", out.String())
}

type fakeOutput struct {
	mu        sync.Mutex
	instances []*fakeInstance
}

func (f *fakeOutput) Start(playback.InstanceRequest) (playback.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst := &fakeInstance{done: make(chan struct{})}
	f.instances = append(f.instances, inst)
	return inst, nil
}

func (f *fakeOutput) started() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.instances)
}

type fakeInstance struct {
	once sync.Once
	done chan struct{}
}

func (i *fakeInstance) Done() <-chan struct{} { return i.done }

func (i *fakeInstance) Stop() { i.once.Do(func() { close(i.done) }) }

type runnerPaths struct {
	configPath string
	runtimeDir string
	socketPath string
	dataDir    string
}

func setupRunnerEnv(t *testing.T) runnerPaths {
	t.Helper()

	runtimeDir := t.TempDir()
	dataDir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)
	t.Setenv("XDG_DATA_HOME", dataDir)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	configPath := filepath.Join(t.TempDir(), "config.jsonc")
	require.NoError(t, os.WriteFile(configPath, []byte("\n"), 0o600))

	return runnerPaths{
		configPath: configPath,
		runtimeDir: runtimeDir,
		socketPath: filepath.Join(runtimeDir, "soundboard.sock"),
		dataDir:    dataDir,
	}
}

// writeDaemonConfig points the daemon at a one-sound library with every
// external integration disabled.
func writeDaemonConfig(t *testing.T, paths runnerPaths) {
	t.Helper()

	soundPath := filepath.Join(paths.dataDir, "airhorn.wav")
	require.NoError(t, os.WriteFile(soundPath, []byte("RIFF"), 0o600))
	libraryPath := filepath.Join(paths.dataDir, "library.json")
	doc := fmt.Sprintf(`{"soundboards":[{"name":"Memes","sounds":[{"name":"airhorn","path":%q,"keys":["CTRL","1"]}]}]}`, soundPath)
	require.NoError(t, os.WriteFile(libraryPath, []byte(doc), 0o600))

	cfg := fmt.Sprintf(`{
  // test daemon
  "library": {"path": %q},
  "settings": {"path": %q},
  "hotkeys": {"backend": "none"},
  "indicator": {"enable": false, "sound_enable": false},
  "watch": {"enable": false},
  "event_feed": {"addr": "127.0.0.1:0"},
  "remote": {"addr": ""}
}
`, libraryPath, filepath.Join(paths.dataDir, "settings.yaml"))
	require.NoError(t, os.WriteFile(paths.configPath, []byte(cfg), 0o600))
}

func startIPCServerForRunnerTest(t *testing.T, socketPath string, handler func(context.Context, ipc.Request) ipc.Response) func() {
	t.Helper()

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ipc.Serve(ctx, listener, ipc.HandlerFunc(handler))
	}()

	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func TestRenderDevicesMarksRoles(t *testing.T) {
	devices := []audio.Device{
		{ID: "alsa_output.pci", Description: "Built-in Audio", State: "running", Available: true, Default: true},
		{ID: "null_sink", Description: "Virtual Mic", State: "idle", Available: true, Muted: true},
		{ID: "hdmi", State: "suspended"},
	}

	var out bytes.Buffer
	renderDevices(&out, devices, "default", "null_sink")
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, []string{"ID", "DESCRIPTION", "STATE", "ROLE"}, strings.Fields(lines[0]))
	require.Equal(t, []string{"alsa_output.pci", "*", "Built-in", "Audio", "running", "main"}, strings.Fields(lines[1]))
	require.Equal(t, []string{"null_sink", "Virtual", "Mic", "idle,muted", "secondary"}, strings.Fields(lines[2]))
	require.Equal(t, []string{"hdmi", "hdmi", "suspended,unavailable", "-"}, strings.Fields(lines[3]))

	out.Reset()
	renderDevices(&out, devices[:1], "alsa_output.pci", "")
	require.Contains(t, out.String(), "main\n")
}
