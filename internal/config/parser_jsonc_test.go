package config

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeJSONCRemovesCommentsAndTrailingCommas(t *testing.T) {
	input := `
{
  // line comment
  "items": [
    "one", /* block comment */
    "two",
  ],
  "nested": {
    "enabled": true,
  },
}
`

	normalized, err := normalizeJSONC(input)
	require.NoError(t, err)
	require.NotContains(t, normalized, "//")
	require.NotContains(t, normalized, "/*")
	require.NotContains(t, normalized, ",]")
	require.NotContains(t, normalized, ",}")
}

func TestNormalizeJSONCRetainsCommentLikeTextInsideStrings(t *testing.T) {
	input := `{"value":"contains // and /* comment-like */ text",}`
	normalized, err := normalizeJSONC(input)
	require.NoError(t, err)
	require.Contains(t, normalized, "// and /* comment-like */")
}

func TestNormalizeJSONCUnterminatedBlockCommentFails(t *testing.T) {
	_, err := normalizeJSONC("{ /* unterminated ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unterminated block comment")
}

func TestEnsureSingleJSONValueRejectsExtraPayload(t *testing.T) {
	decoder := json.NewDecoder(strings.NewReader(`{"one":1}{"two":2}`))
	var payload map[string]any
	require.NoError(t, decoder.Decode(&payload))

	err := ensureSingleJSONValue(decoder)
	require.Error(t, err)
	require.Contains(t, err.Error(), "multiple JSON values")
}

func TestOffsetToLineCol(t *testing.T) {
	content := "line1\nline2\nline3"
	line, col := offsetToLineCol(content, 1)
	require.Equal(t, 1, line)
	require.Equal(t, 1, col)

	line, col = offsetToLineCol(content, 8) // line2, col2
	require.Equal(t, 2, line)
	require.Equal(t, 2, col)

	line, col = offsetToLineCol(content, 999)
	require.Equal(t, 3, line)
	require.Equal(t, 5, col)
}

func TestParseJSONCRejectsInvalidFireCommand(t *testing.T) {
	_, _, err := parseJSONC(`{"hotkeys":{"fire_cmd":"unterminated ' quote"}}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid hotkeys.fire_cmd")
}

func TestParseJSONCAppliesSections(t *testing.T) {
	cfg, warnings, err := parseJSONC(`{
  "library": {"path": "/srv/sounds/library.json"},
  "settings": {"path": "/srv/sounds/settings.yaml"},
  "hotkeys": {"backend": " HYPR ", "fire_cmd": "soundboard --config '/etc/sb/config.jsonc' fire"},
  "audio": {"sample_rate": 44100, "latency_ms": 20},
  "watch": {"enable": false, "debounce_ms": 500},
  "event_feed": {"addr": ""},
  "remote": {"addr": "127.0.0.1:7466"}
}`, Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, "/srv/sounds/library.json", cfg.Library.Path)
	require.Equal(t, "/srv/sounds/settings.yaml", cfg.Settings.Path)
	require.Equal(t, "hypr", cfg.Hotkeys.Backend)
	require.Equal(t, []string{"soundboard", "--config", "/etc/sb/config.jsonc", "fire"}, cfg.Hotkeys.FireCmd.Argv)
	require.Equal(t, 44100, cfg.Audio.SampleRate)
	require.Equal(t, 20, cfg.Audio.LatencyMS)
	require.False(t, cfg.Watch.Enable)
	require.Equal(t, 500, cfg.Watch.DebounceMS)
	require.Empty(t, cfg.EventFeed.Addr)
	require.Equal(t, "127.0.0.1:7466", cfg.Remote.Addr)
}

func TestParseJSONCTrimsIndicatorFields(t *testing.T) {
	cfg, _, err := parseJSONC(`{
  "indicator": {
    "backend": " desktop ",
    "desktop_app_name": "  soundboard-indicator  "
  }
}`, Default())
	require.NoError(t, err)
	require.Equal(t, "desktop", cfg.Indicator.Backend)
	require.Equal(t, "soundboard-indicator", cfg.Indicator.DesktopAppName)
}

func TestParseJSONCWarnsOnIgnoredFireCommand(t *testing.T) {
	_, warnings, err := parseJSONC(`{"hotkeys":{"backend":"none","fire_cmd":"soundboard fire"}}`, Default())
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "fire_cmd is ignored")
}

func TestParseJSONCRejectsUnknownField(t *testing.T) {
	_, _, err := parseJSONC(`{"speech":{"grpc":"x"}}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown field")
}

func TestParseJSONCRejectsMultipleTopLevelValues(t *testing.T) {
	_, _, err := parseJSONC(`{"watch":{"enable":false}}{"watch":{"enable":true}}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "multiple JSON values")
}

func TestParseJSONCTypeErrorIncludesLocation(t *testing.T) {
	_, _, err := parseJSONC(`{
  "audio": {"sample_rate": "fast"}
}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "line")
	require.Contains(t, err.Error(), "column")
}

func TestParseAcceptsCommentsAndEmptyContent(t *testing.T) {
	cfg, _, err := Parse("  \n", Default())
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	cfg, _, err = Parse(`{
  // louder stream buffer
  "audio": {"latency_ms": 80,},
}`, Default())
	require.NoError(t, err)
	require.Equal(t, 80, cfg.Audio.LatencyMS)

	_, _, err = Parse(`["not", "an", "object"]`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "JSONC object")
}

func TestNormalizeJSONCKeepsOffsetsAndDropsCommaBeforeComment(t *testing.T) {
	input := "{\n  \"watch\": {\"enable\": true, /* keep */ },\n  \"a\\\"b\": 1, // tail\n}"
	normalized, err := normalizeJSONC(input)
	require.NoError(t, err)
	require.Len(t, normalized, len(input))
	require.Equal(t, strings.Count(input, "\n"), strings.Count(normalized, "\n"))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(normalized), &decoded))
	require.Equal(t, map[string]any{"enable": true}, decoded["watch"])
	require.Equal(t, float64(1), decoded[`a"b`])
}
