// Package cli parses the soundboard command line.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// Command names one invocation. Nested commands use "group.verb".
type Command string

const (
	CommandRun      Command = "run"
	CommandPlay     Command = "play"
	CommandStop     Command = "stop"
	CommandStopAll  Command = "stop-all"
	CommandSelect   Command = "select"
	CommandFire     Command = "fire"
	CommandBind     Command = "bind"
	CommandUnbind   Command = "unbind"
	CommandLock     Command = "lock"
	CommandUnlock   Command = "unlock"
	CommandStatus   Command = "status"
	CommandList     Command = "list"
	CommandBindings Command = "bindings"
	CommandSet      Command = "set"
	CommandSync     Command = "sync"
	CommandDevices  Command = "devices"
	CommandDoctor   Command = "doctor"
	CommandVersion  Command = "version"
	CommandHelp     Command = "help"

	CommandBoardAdd    Command = "board.add"
	CommandBoardRemove Command = "board.remove"
	CommandBoardRename Command = "board.rename"
	CommandBoardVolume Command = "board.volume"
	CommandBoardMove   Command = "board.move"
	CommandBoardLink   Command = "board.link"

	CommandSoundAdd    Command = "sound.add"
	CommandSoundRemove Command = "sound.remove"
	CommandSoundRename Command = "sound.rename"
	CommandSoundVolume Command = "sound.volume"
	CommandSoundMove   Command = "sound.move"
)

// Parsed is the outcome of Parse.
type Parsed struct {
	Command    Command
	ConfigPath string
	Args       []string
	ShowHelp   bool
}

// Forwarded reports whether the command is served by a running daemon.
func (p Parsed) Forwarded() bool {
	switch p.Command {
	case CommandRun, CommandDevices, CommandDoctor, CommandVersion, CommandHelp:
		return false
	default:
		return true
	}
}

type leaf struct {
	use   string
	short string
	cmd   Command
	args  cobra.PositionalArgs
}

var topLevel = []leaf{
	{"run", "Run the soundboard daemon", CommandRun, cobra.NoArgs},
	{"play <sound>", "Play a sound by id, name or board/sound", CommandPlay, cobra.ExactArgs(1)},
	{"stop <sound>", "Stop every instance of a sound", CommandStop, cobra.ExactArgs(1)},
	{"stop-all", "Stop all sounds", CommandStopAll, cobra.NoArgs},
	{"select <board>", "Select the current soundboard", CommandSelect, cobra.ExactArgs(1)},
	{"fire <id>", "Deliver a keybind press to the daemon", CommandFire, cobra.ExactArgs(1)},
	{"bind <target> <keys>", "Assign keys to a sound, soundboard or action", CommandBind, cobra.ExactArgs(2)},
	{"unbind <target>", "Clear the keys of a sound, soundboard or action", CommandUnbind, cobra.ExactArgs(1)},
	{"lock", "Suspend keybind handling", CommandLock, cobra.NoArgs},
	{"unlock", "Resume keybind handling", CommandUnlock, cobra.NoArgs},
	{"status", "Print daemon status", CommandStatus, cobra.NoArgs},
	{"list", "List soundboards and sounds", CommandList, cobra.NoArgs},
	{"bindings", "List live keybinds", CommandBindings, cobra.NoArgs},
	{"set <key> <value>", "Change a runtime setting", CommandSet, cobra.ExactArgs(2)},
	{"sync <board>", "Resync a soundboard with its linked folder", CommandSync, cobra.ExactArgs(1)},
	{"devices", "List output devices", CommandDevices, cobra.NoArgs},
	{"doctor", "Run configuration and environment checks", CommandDoctor, cobra.NoArgs},
	{"version", "Print version information", CommandVersion, cobra.NoArgs},
}

var boardLeaves = []leaf{
	{"add <name> [folder]", "Add a soundboard, optionally linked to a folder", CommandBoardAdd, cobra.RangeArgs(1, 2)},
	{"remove <board>", "Remove a soundboard", CommandBoardRemove, cobra.ExactArgs(1)},
	{"rename <board> <name>", "Rename a soundboard", CommandBoardRename, cobra.ExactArgs(2)},
	{"volume <board> <0-100>", "Set a soundboard volume", CommandBoardVolume, cobra.ExactArgs(2)},
	{"move <board> <index>", "Move a soundboard to a position", CommandBoardMove, cobra.ExactArgs(2)},
	{"link <board> [folder]", "Link a folder, or unlink when omitted", CommandBoardLink, cobra.RangeArgs(1, 2)},
}

var soundLeaves = []leaf{
	{"add <board> <path> [name]", "Add a sound file to a soundboard", CommandSoundAdd, cobra.RangeArgs(2, 3)},
	{"remove <sound>", "Remove a sound", CommandSoundRemove, cobra.ExactArgs(1)},
	{"rename <sound> <name>", "Rename a sound", CommandSoundRename, cobra.ExactArgs(2)},
	{"volume <sound> <0-100>", "Set a sound volume", CommandSoundVolume, cobra.ExactArgs(2)},
	{"move <sound> <index>", "Move a sound within its soundboard", CommandSoundMove, cobra.ExactArgs(2)},
}

// Parse maps argv (without the binary name) onto a command.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}
	root := newRoot(&parsed)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return Parsed{}, err
	}
	return parsed, nil
}

func newRoot(parsed *Parsed) *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:           "soundboard",
		Short:         "Keybind-driven soundboard daemon",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(*cobra.Command, []string) error {
			if showVersion {
				parsed.Command = CommandVersion
				parsed.ShowHelp = false
			}
			return nil
		},
	}
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetHelpFunc(func(*cobra.Command, []string) {
		parsed.Command = CommandHelp
		parsed.ShowHelp = true
	})
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&parsed.ConfigPath, "config", "", "config file path")
	root.Flags().BoolVar(&showVersion, "version", false, "show version")

	for _, l := range topLevel {
		root.AddCommand(l.command(parsed))
	}
	root.AddCommand(group("board", "Manage soundboards", boardLeaves, parsed))
	root.AddCommand(group("sound", "Manage sounds", soundLeaves, parsed))
	return root
}

func (l leaf) command(parsed *Parsed) *cobra.Command {
	return &cobra.Command{
		Use:   l.use,
		Short: l.short,
		Args:  l.args,
		RunE: func(_ *cobra.Command, args []string) error {
			parsed.Command = l.cmd
			parsed.Args = args
			parsed.ShowHelp = false
			return nil
		},
	}
}

func group(name, short string, leaves []leaf, parsed *Parsed) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return fmt.Errorf("%s requires a subcommand", name)
		},
	}
	for _, l := range leaves {
		cmd.AddCommand(l.command(parsed))
	}
	return cmd
}

// HelpText renders usage for binaryName.
func HelpText(binaryName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Usage:\n  %s [--config PATH] <command> [args]\n\nCommands:\n", binaryName)
	writeLeaves(&b, "", topLevel)
	writeLeaves(&b, "board ", boardLeaves)
	writeLeaves(&b, "sound ", soundLeaves)
	fmt.Fprintf(&b, "  %-34s %s\n", "help", "Show this help")
	b.WriteString(`
Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/soundboard/config.jsonc)
  -h, --help      Show help
  --version       Show version
`)
	return b.String()
}

func writeLeaves(b *strings.Builder, prefix string, leaves []leaf) {
	for _, l := range leaves {
		fmt.Fprintf(b, "  %-34s %s\n", prefix+l.use, l.short)
	}
}
