package session

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rbright/soundboard/internal/ipc"
	"github.com/rbright/soundboard/internal/keys"
	"github.com/rbright/soundboard/internal/library"
)

// SoundView is the client-facing rendering of a sound.
type SoundView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Path    string `json:"path"`
	Volume  int    `json:"volume"`
	Keys    string `json:"keys,omitempty"`
	Playing bool   `json:"playing,omitempty"`
}

// SoundboardView is the client-facing rendering of a soundboard.
type SoundboardView struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Volume       int         `json:"volume"`
	Keys         string      `json:"keys,omitempty"`
	LinkedFolder string      `json:"linkedFolder,omitempty"`
	Selected     bool        `json:"selected,omitempty"`
	Sounds       []SoundView `json:"sounds"`
}

// BindingView is one live keybind.
type BindingView struct {
	ID     string `json:"id"`
	Owner  string `json:"owner"`
	Keys   string `json:"keys"`
	Action string `json:"action"`
	Target string `json:"target"`
}

// SyncView reports a folder sync.
type SyncView struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// Handle implements ipc.Handler.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	resp, err := c.handle(ctx, req)
	if err != nil {
		c.logWarn("ipc command failed", "command", req.Command, "error", err.Error())
		return ipc.Fail(err)
	}
	resp.OK = true
	return resp
}

func (c *Controller) handle(ctx context.Context, req ipc.Request) (ipc.Response, error) {
	if err := checkArgs(req); err != nil {
		return ipc.Response{}, err
	}

	switch req.Command {
	case "status":
		status := c.Status(ctx)
		return ipc.Response{State: status.State}.WithData(status)
	case "list":
		return ipc.Response{}.WithData(c.ListViews())
	case "bindings":
		return ipc.Response{}.WithData(c.BindingViews())
	case "play":
		return message("playing %s", req.Arg(0)), c.Play(ctx, req.Arg(0))
	case "stop":
		return message("stopped %s", req.Arg(0)), c.Stop(ctx, req.Arg(0))
	case "stop-all":
		c.StopAll(ctx)
		return message("stopped all sounds"), nil
	case "select":
		return message("selected %s", req.Arg(0)), c.Select(ctx, req.Arg(0))
	case "fire":
		return ipc.Response{}, c.Fire(ctx, req.Arg(0))
	case "bind":
		combo, err := keys.Parse(req.Arg(1))
		if err != nil {
			return ipc.Response{}, err
		}
		return message("bound %s to %s", req.Arg(0), combo), c.Bind(ctx, req.Arg(0), combo)
	case "unbind":
		return message("unbound %s", req.Arg(0)), c.Unbind(ctx, req.Arg(0))
	case "lock":
		c.SetLocked(true)
		return message("keybinds locked"), nil
	case "unlock":
		c.SetLocked(false)
		return message("keybinds unlocked"), nil
	case "set":
		return message("%s = %s", req.Arg(0), req.Arg(1)), c.Set(ctx, req.Arg(0), req.Arg(1))
	case "sync":
		result, err := c.Sync(ctx, req.Arg(0))
		if err != nil {
			return ipc.Response{}, err
		}
		return syncResponse(result)
	case "board.add":
		board, err := c.AddSoundboard(ctx, req.Arg(0), req.Arg(1))
		if err != nil {
			return ipc.Response{}, err
		}
		return message("added soundboard %s (%d sounds)", board.Name, len(board.Sounds)), nil
	case "board.remove":
		return message("removed soundboard %s", req.Arg(0)), c.RemoveSoundboard(ctx, req.Arg(0))
	case "board.rename":
		return message("renamed soundboard %s to %s", req.Arg(0), req.Arg(1)), c.RenameSoundboard(ctx, req.Arg(0), req.Arg(1))
	case "board.volume":
		volume, err := intArg(req, 1)
		if err != nil {
			return ipc.Response{}, err
		}
		return message("soundboard %s volume %d", req.Arg(0), volume), c.SetSoundboardVolume(ctx, req.Arg(0), volume)
	case "board.move":
		index, err := intArg(req, 1)
		if err != nil {
			return ipc.Response{}, err
		}
		return message("moved soundboard %s to %d", req.Arg(0), index), c.MoveSoundboard(ctx, req.Arg(0), index)
	case "board.link":
		result, err := c.LinkFolder(ctx, req.Arg(0), req.Arg(1))
		if err != nil {
			return ipc.Response{}, err
		}
		return syncResponse(result)
	case "sound.add":
		sound, err := c.AddSound(ctx, req.Arg(0), req.Arg(1), req.Arg(2))
		if err != nil {
			return ipc.Response{}, err
		}
		return message("added sound %s", sound.Name), nil
	case "sound.remove":
		return message("removed sound %s", req.Arg(0)), c.RemoveSound(ctx, req.Arg(0))
	case "sound.rename":
		return message("renamed sound %s to %s", req.Arg(0), req.Arg(1)), c.RenameSound(ctx, req.Arg(0), req.Arg(1))
	case "sound.volume":
		volume, err := intArg(req, 1)
		if err != nil {
			return ipc.Response{}, err
		}
		return message("sound %s volume %d", req.Arg(0), volume), c.SetSoundVolume(ctx, req.Arg(0), volume)
	case "sound.move":
		index, err := intArg(req, 1)
		if err != nil {
			return ipc.Response{}, err
		}
		return message("moved sound %s to %d", req.Arg(0), index), c.MoveSound(ctx, req.Arg(0), index)
	default:
		return ipc.Response{}, fmt.Errorf("unknown command %q", req.Command)
	}
}

// minArgs lists required positional arguments per command.
var minArgs = map[string]int{
	"play": 1, "stop": 1, "select": 1, "fire": 1,
	"bind": 2, "unbind": 1, "set": 2, "sync": 1,
	"board.add": 1, "board.remove": 1, "board.rename": 2, "board.volume": 2, "board.move": 2, "board.link": 1,
	"sound.add": 2, "sound.remove": 1, "sound.rename": 2, "sound.volume": 2, "sound.move": 2,
}

func checkArgs(req ipc.Request) error {
	want := minArgs[req.Command]
	if len(req.Args) < want {
		return fmt.Errorf("%s requires %d argument(s), got %d", req.Command, want, len(req.Args))
	}
	return nil
}

func intArg(req ipc.Request, i int) (int, error) {
	n, err := strconv.Atoi(req.Arg(i))
	if err != nil {
		return 0, fmt.Errorf("%s: argument %d must be an integer", req.Command, i+1)
	}
	return n, nil
}

func message(format string, args ...any) ipc.Response {
	return ipc.Response{Message: fmt.Sprintf(format, args...)}
}

func syncResponse(result library.SyncResult) (ipc.Response, error) {
	view := SyncView{Added: make([]string, 0, len(result.Added)), Removed: make([]string, 0, len(result.Removed))}
	for _, sound := range result.Added {
		view.Added = append(view.Added, sound.Name)
	}
	for _, sound := range result.Removed {
		view.Removed = append(view.Removed, sound.Name)
	}
	resp := message("synced: %d added, %d removed", len(view.Added), len(view.Removed))
	return resp.WithData(view)
}

// ListViews renders the library with playing and selection state.
func (c *Controller) ListViews() []SoundboardView {
	selected := c.settings.Snapshot().SelectedSoundboard
	boards := c.lib.Soundboards()
	out := make([]SoundboardView, 0, len(boards))
	for _, board := range boards {
		view := SoundboardView{
			ID:           board.ID,
			Name:         board.Name,
			Volume:       board.Volume,
			Keys:         board.Keys.String(),
			LinkedFolder: board.LinkedFolder,
			Selected:     board.ID == selected,
			Sounds:       make([]SoundView, 0, len(board.Sounds)),
		}
		for _, sound := range board.Sounds {
			view.Sounds = append(view.Sounds, SoundView{
				ID:      sound.ID,
				Name:    sound.Name,
				Path:    sound.Path,
				Volume:  sound.Volume,
				Keys:    sound.Keys.String(),
				Playing: c.coord.IsPlaying(sound.ID),
			})
		}
		out = append(out, view)
	}
	return out
}

// BindingViews renders the live keybinds.
func (c *Controller) BindingViews() []BindingView {
	bindings := c.registry.Bindings()
	out := make([]BindingView, 0, len(bindings))
	for _, binding := range bindings {
		out = append(out, BindingView{
			ID:     string(binding.ID),
			Owner:  binding.Owner.String(),
			Keys:   binding.Combo.String(),
			Action: string(binding.Action.Kind),
			Target: binding.Action.Target,
		})
	}
	return out
}

var _ ipc.Handler = (*Controller)(nil)
