package app

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rbright/soundboard/internal/audio"
	"github.com/rbright/soundboard/internal/cli"
	"github.com/rbright/soundboard/internal/ipc"
	"github.com/rbright/soundboard/internal/session"
)

// render prints a daemon reply in the form each command expects.
func render(w io.Writer, cmd cli.Command, resp ipc.Response) error {
	switch cmd {
	case cli.CommandStatus:
		var status session.Status
		if err := resp.DecodeData(&status); err != nil {
			status.State = resp.State
		}
		renderStatus(w, status)
	case cli.CommandList:
		var boards []session.SoundboardView
		if err := resp.DecodeData(&boards); err != nil {
			return err
		}
		renderList(w, boards)
	case cli.CommandBindings:
		var bindings []session.BindingView
		if err := resp.DecodeData(&bindings); err != nil {
			return err
		}
		for _, b := range bindings {
			fmt.Fprintf(w, "%-24s %-28s %s\n", b.Keys, b.Owner, b.Target)
		}
	case cli.CommandSync, cli.CommandBoardLink:
		fmt.Fprintln(w, resp.Message)
		var view session.SyncView
		if err := resp.DecodeData(&view); err != nil {
			return err
		}
		for _, name := range view.Added {
			fmt.Fprintf(w, "+ %s\n", name)
		}
		for _, name := range view.Removed {
			fmt.Fprintf(w, "- %s\n", name)
		}
	default:
		if resp.Message != "" {
			fmt.Fprintln(w, resp.Message)
		}
	}
	return nil
}

func renderStatus(w io.Writer, status session.Status) {
	state := status.State
	if state == "" {
		state = "idle"
	}
	fmt.Fprintln(w, state)
	if status.MainDevice == "" {
		return
	}

	selected := status.SelectedSoundboard
	if selected == "" {
		selected = "(none)"
	}
	secondary := status.SecondaryDevice
	if secondary == "" {
		secondary = "(none)"
	}
	fmt.Fprintf(w, "soundboard: %s\n", selected)
	fmt.Fprintf(w, "keybinds: %s (%d registered)%s\n", onOff(status.KeybindsEnabled), status.Keybinds, lockedSuffix(status.Locked))
	fmt.Fprintf(w, "overlap: %s\n", onOff(status.OverlapSounds))
	fmt.Fprintf(w, "devices: main=%s secondary=%s\n", status.MainDevice, secondary)
	for _, sound := range status.Playing {
		fmt.Fprintf(w, "playing: %s\n", sound.Name)
	}
}

func renderList(w io.Writer, boards []session.SoundboardView) {
	if len(boards) == 0 {
		fmt.Fprintln(w, "no soundboards")
		return
	}
	for _, board := range boards {
		mark := " "
		if board.Selected {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %s%s\n", mark, board.Name, details(board.Volume, board.Keys, board.LinkedFolder))
		for _, sound := range board.Sounds {
			playing := ""
			if sound.Playing {
				playing = " [playing]"
			}
			fmt.Fprintf(w, "    %s%s%s\n", sound.Name, details(sound.Volume, sound.Keys, ""), playing)
		}
	}
}

func details(volume int, keys, folder string) string {
	parts := []string{fmt.Sprintf("volume=%d", volume)}
	if keys != "" {
		parts = append(parts, "keys="+keys)
	}
	if folder != "" {
		parts = append(parts, "folder="+folder)
	}
	return " (" + strings.Join(parts, " ") + ")"
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func lockedSuffix(locked bool) string {
	if locked {
		return ", locked"
	}
	return ""
}

// renderDevices prints one row per sink. ROLE names the settings slots the
// sink fills; "default" in a slot matches the server's default sink.
func renderDevices(w io.Writer, devices []audio.Device, main, secondary string) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDESCRIPTION\tSTATE\tROLE")
	for _, d := range devices {
		var roles []string
		if fills(d, main) {
			roles = append(roles, "main")
		}
		if secondary != "" && fills(d, secondary) {
			roles = append(roles, "secondary")
		}
		state := d.State
		if !d.Available {
			state += ",unavailable"
		}
		if d.Muted {
			state += ",muted"
		}
		id := d.ID
		if d.Default {
			id += " *"
		}
		role := strings.Join(roles, ",")
		if role == "" {
			role = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id, d.Label(), state, role)
	}
	_ = tw.Flush()
}

func fills(d audio.Device, slot string) bool {
	if slot == audio.DefaultDeviceID {
		return d.Default
	}
	return d.ID == slot
}
