package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToHelp(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.True(t, parsed.ShowHelp)
	require.Equal(t, CommandHelp, parsed.Command)
}

func TestParseCommandWithConfig(t *testing.T) {
	parsed, err := Parse([]string{"--config", "/tmp/soundboard.jsonc", "doctor"})
	require.NoError(t, err)
	require.Equal(t, CommandDoctor, parsed.Command)
	require.Equal(t, "/tmp/soundboard.jsonc", parsed.ConfigPath)
	require.False(t, parsed.ShowHelp)
	require.False(t, parsed.Forwarded())
}

func TestParseArgMatrix(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErr  string
		wantCmd  Command
		wantArgs []string
		wantHelp bool
		wantPath string
	}{
		{name: "help short flag", args: []string{"-h"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "help long flag", args: []string{"--help"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "help command", args: []string{"help"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "version flag", args: []string{"--version"}, wantCmd: CommandVersion},
		{name: "config after command", args: []string{"status", "--config", "/tmp/cfg"}, wantCmd: CommandStatus, wantPath: "/tmp/cfg"},
		{name: "missing config path", args: []string{"--config"}, wantErr: "needs an argument"},
		{name: "unknown flag", args: []string{"--bogus"}, wantErr: "unknown flag"},
		{name: "unknown command", args: []string{"bogus"}, wantErr: "unknown command"},
		{name: "extra args after command", args: []string{"doctor", "extra"}, wantErr: "unknown command"},
		{name: "play requires a sound", args: []string{"play"}, wantErr: "accepts 1 arg(s)"},
		{name: "play", args: []string{"play", "Memes/airhorn"}, wantCmd: CommandPlay, wantArgs: []string{"Memes/airhorn"}},
		{name: "bind", args: []string{"bind", "action:stop-all", "CTRL+ESCAPE"}, wantCmd: CommandBind, wantArgs: []string{"action:stop-all", "CTRL+ESCAPE"}},
		{name: "set", args: []string{"set", "overlap", "off"}, wantCmd: CommandSet, wantArgs: []string{"overlap", "off"}},
		{name: "fire", args: []string{"fire", "1b4e28ba"}, wantCmd: CommandFire, wantArgs: []string{"1b4e28ba"}},
		{name: "board add with folder", args: []string{"board", "add", "Memes", "~/sounds"}, wantCmd: CommandBoardAdd, wantArgs: []string{"Memes", "~/sounds"}},
		{name: "board link without folder", args: []string{"board", "link", "Memes"}, wantCmd: CommandBoardLink, wantArgs: []string{"Memes"}},
		{name: "board without subcommand", args: []string{"board"}, wantErr: "requires a subcommand"},
		{name: "sound add too few", args: []string{"sound", "add", "Memes"}, wantErr: "accepts between 2 and 3 arg(s)"},
		{name: "sound volume", args: []string{"sound", "volume", "bruh", "40"}, wantCmd: CommandSoundVolume, wantArgs: []string{"bruh", "40"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse(tc.args)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.wantCmd, parsed.Command)
			require.Equal(t, tc.wantHelp, parsed.ShowHelp)
			require.Equal(t, tc.wantPath, parsed.ConfigPath)
			if tc.wantArgs != nil {
				require.Equal(t, tc.wantArgs, parsed.Args)
			}
		})
	}
}

func TestForwardedCommands(t *testing.T) {
	for _, cmd := range []Command{CommandPlay, CommandStatus, CommandFire, CommandBoardAdd, CommandSoundMove} {
		require.True(t, Parsed{Command: cmd}.Forwarded(), cmd)
	}
	for _, cmd := range []Command{CommandRun, CommandDevices, CommandDoctor, CommandVersion, CommandHelp} {
		require.False(t, Parsed{Command: cmd}.Forwarded(), cmd)
	}
}

func TestHelpTextListsCommands(t *testing.T) {
	text := HelpText("soundboard")
	require.Contains(t, text, "soundboard [--config PATH] <command>")
	require.Contains(t, text, "stop-all")
	require.Contains(t, text, "board add <name> [folder]")
	require.Contains(t, text, "sound volume <sound> <0-100>")
	require.Contains(t, text, "soundboard/config.jsonc")
}
