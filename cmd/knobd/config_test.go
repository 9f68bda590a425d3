package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"endlessknob/endless"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "knobd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, endless.DefaultConfig(), cfg.DecoderSettings())
	assert.Equal(t, endless.FilterSlew, cfg.DecoderSettings().Filter)
}

func TestLoadConfigFile_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
source:
  kind: serial
  path: /dev/ttyACM0
  serial:
    baud_rate: 921600
decoder:
  lag_threshold: 4
  filter: backlash
  seed_on_first_sample: true
pitch:
  base_note: 60
logging:
  level: debug
`)

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, sourceSerial, cfg.Source.Kind)
	assert.Equal(t, "/dev/ttyACM0", cfg.Source.Path)
	assert.Equal(t, 921600, cfg.Source.Serial.BaudRate)
	assert.Equal(t, 8, cfg.Source.Serial.DataBits, "unset nested fields keep defaults")

	assert.Equal(t, endless.Range, cfg.Decoder.Range)
	assert.Equal(t, 4, cfg.Decoder.LagThreshold)
	assert.True(t, cfg.Decoder.SeedOnFirstSample)
	assert.Equal(t, endless.FilterBacklash, cfg.DecoderSettings().Filter)

	assert.Equal(t, 60, cfg.Pitch.BaseNote)
	assert.Equal(t, defaultSemitonesPerTurn, cfg.Pitch.SemitonesPerTurn)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/tmp/knobd.sock", cfg.IPC.SocketPath)
}

func TestLoadConfigFile_RejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "decoder:\n  lag_treshold: 4\n")
	_, err := LoadConfigFile(path)
	assert.ErrorContains(t, err, "lag_treshold")
}

func TestLoadConfigFile_RejectsTrailingDocument(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\n---\nlogging:\n  level: debug\n")
	_, err := LoadConfigFile(path)
	assert.ErrorContains(t, err, "trailing document")
}

func TestLoadConfigFile_Errors(t *testing.T) {
	_, err := LoadConfigFile("")
	assert.Error(t, err)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFlagOverrides_Apply(t *testing.T) {
	cfg := DefaultConfig()

	kind := sourceFile
	path := "/var/lib/knobd/session.zst"
	zero := 0
	backlash := string(endless.FilterBacklash)
	seed := true
	listen := ""

	FlagOverrides{
		SourceKind:   &kind,
		SourcePath:   &path,
		LagThreshold: &zero,
		Filter:       &backlash,
		Seed:         &seed,
		HTTPListen:   &listen,
	}.Apply(&cfg)

	assert.Equal(t, sourceFile, cfg.Source.Kind)
	assert.Equal(t, path, cfg.Source.Path)
	assert.Equal(t, 0, cfg.Decoder.LagThreshold, "zero values are applied")
	assert.True(t, cfg.Decoder.SeedOnFirstSample)
	assert.Empty(t, cfg.HTTP.Listen)

	assert.Equal(t, "info", cfg.Logging.Level, "nil overrides are ignored")
	require.NoError(t, cfg.Validate())

	FlagOverrides{}.Apply(nil)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown source", func(c *Config) { c.Source.Kind = "i2c" }, "source.kind"},
		{"missing path", func(c *Config) { c.Source.Path = "" }, "source.path"},
		{"stdin needs no path", func(c *Config) { c.Source.Kind = sourceStdin; c.Source.Path = "" }, ""},
		{"bad parity", func(c *Config) { c.Source.Kind = sourceSerial; c.Source.Serial.Parity = "M" }, "source.serial"},
		{"negative replay", func(c *Config) { c.Source.ReplayHz = -1 }, "replay_hz"},
		{"range not power of two", func(c *Config) { c.Decoder.Range = 3000 }, "decoder"},
		{"unknown filter", func(c *Config) { c.Decoder.Filter = "median" }, "decoder"},
		{"slew without dead zone", func(c *Config) { c.Decoder.LagThreshold = 0 }, "slew filter"},
		{"backlash without dead zone", func(c *Config) { c.Decoder.LagThreshold = 0; c.Decoder.Filter = "backlash" }, ""},
		{"zero semitones", func(c *Config) { c.Pitch.SemitonesPerTurn = 0 }, "semitones_per_turn"},
		{"note range", func(c *Config) { c.Pitch.BaseNote = 128 }, "base_note"},
		{"bend range", func(c *Config) { c.Pitch.BendRangeSemitones = 0 }, "bend_range"},
		{"window", func(c *Config) { c.Motion.WindowMS = 0 }, "window_ms"},
		{"tick", func(c *Config) { c.Motion.TickHz = 5000 }, "tick_hz"},
		{"socket", func(c *Config) { c.IPC.SocketPath = "" }, "socket_path"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestConfig_ToReducerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Motion.WindowMS = 400
	cfg.Motion.IdleAfterMS = 1500

	rc := cfg.ToReducerConfig()
	assert.Equal(t, 400*time.Millisecond, rc.MotionWindow)
	assert.Equal(t, 1500*time.Millisecond, rc.IdleAfter)
	assert.Equal(t, cfg.Pitch, rc.Pitch)
	assert.Equal(t, defaultFastTurnsPerSec, rc.FastTurnsPerSec)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, "/abs/path", ExpandPath("/abs/path"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "knob.zst"), ExpandPath("~/knob.zst"))
	assert.Equal(t, "~other/x", ExpandPath("~other/x"))
}

func TestPortOptions_SerialMode(t *testing.T) {
	opts, err := PortOptions{Parity: "even", StopBits: 2}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 2, Parity: "E"}, opts)

	mode, err := PortOptions{BaudRate: 9600}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, 9600, mode.BaudRate)

	_, err = PortOptions{DataBits: 9}.Normalize()
	assert.Error(t, err)
	_, err = PortOptions{StopBits: 3}.Normalize()
	assert.Error(t, err)
}
