package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"endlessknob/endless"
)

// Config is the top-level YAML configuration for the knobd daemon.
//
// Defaults and validation live here so the rest of the daemon can assume a
// well-formed config.
type Config struct {
	// Where raw samples come from
	Source SourceConfig `yaml:"source"`

	// Decoder numeric convention
	Decoder DecoderConfig `yaml:"decoder"`

	// Position to pitch mapping
	Pitch PitchConfig `yaml:"pitch"`

	// Speed / idle estimation
	Motion MotionConfig `yaml:"motion"`

	IPC     IPCConfig     `yaml:"ipc"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
}

type SourceConfig struct {
	Kind string `yaml:"kind"` // serial | fifo | file | stdin
	Path string `yaml:"path"`

	// Serial port settings (kind: serial)
	Serial PortOptions `yaml:"serial"`

	// Replay pacing in samples per second (kind: file). 0 replays as fast as
	// the daemon consumes.
	ReplayHz int `yaml:"replay_hz,omitempty"`

	// Optional capture of every sample fed to the decoder. A ".zst" suffix
	// compresses the capture.
	RecordPath string `yaml:"record_path,omitempty"`
}

type DecoderConfig struct {
	Range             int    `yaml:"range"`
	LagThreshold      int    `yaml:"lag_threshold"`
	Filter            string `yaml:"filter"`
	SeedOnFirstSample bool   `yaml:"seed_on_first_sample"`
}

type PitchConfig struct {
	SemitonesPerTurn   float64 `yaml:"semitones_per_turn"`
	ReferenceHz        float64 `yaml:"reference_hz"`
	BaseNote           int     `yaml:"base_note"`
	BendRangeSemitones float64 `yaml:"bend_range_semitones"`
}

type MotionConfig struct {
	WindowMS        int     `yaml:"window_ms"`
	FastTurnsPerSec float64 `yaml:"fast_turns_per_sec"`
	IdleAfterMS     int     `yaml:"idle_after_ms"`
	TickHz          int     `yaml:"tick_hz"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	// Listen is the address for /ws and /healthz. Empty disables HTTP.
	Listen string `yaml:"listen"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		Source: SourceConfig{
			Kind: sourceFIFO,
			Path: "/tmp/knobd.fifo",
			Serial: PortOptions{
				BaudRate: 115200,
				DataBits: 8,
				StopBits: 1,
				Parity:   "N",
			},
		},
		Decoder: DecoderConfig{
			Range:        endless.Range,
			LagThreshold: endless.LagThreshold,
			Filter:       string(endless.FilterSlew),
		},
		Pitch: PitchConfig{
			SemitonesPerTurn:   defaultSemitonesPerTurn,
			ReferenceHz:        defaultReferenceHz,
			BaseNote:           defaultBaseNote,
			BendRangeSemitones: defaultBendRangeSemitones,
		},
		Motion: MotionConfig{
			WindowMS:        defaultMotionWindowMS,
			FastTurnsPerSec: defaultFastTurnsPerSec,
			IdleAfterMS:     defaultIdleAfterMS,
			TickHz:          defaultTickHz,
		},
		IPC: IPCConfig{
			SocketPath: "/tmp/knobd.sock",
		},
		HTTP: HTTPConfig{
			Listen: "127.0.0.1:3002",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads a YAML config file on top of DefaultConfig.
// Unknown fields and trailing documents are rejected.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, errors.New("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides carries command-line overrides. A nil pointer means the flag
// was not given; a non-nil pointer is applied even for zero values.
type FlagOverrides struct {
	SourceKind *string
	SourcePath *string
	ReplayHz   *int
	RecordPath *string

	LagThreshold *int
	Filter       *string
	Seed         *bool

	BaseNote *int

	IPCSocketPath *string
	HTTPListen    *string

	LogLevel *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.SourceKind != nil {
		cfg.Source.Kind = *o.SourceKind
	}
	if o.SourcePath != nil {
		cfg.Source.Path = *o.SourcePath
	}
	if o.ReplayHz != nil {
		cfg.Source.ReplayHz = *o.ReplayHz
	}
	if o.RecordPath != nil {
		cfg.Source.RecordPath = *o.RecordPath
	}

	if o.LagThreshold != nil {
		cfg.Decoder.LagThreshold = *o.LagThreshold
	}
	if o.Filter != nil {
		cfg.Decoder.Filter = *o.Filter
	}
	if o.Seed != nil {
		cfg.Decoder.SeedOnFirstSample = *o.Seed
	}

	if o.BaseNote != nil {
		cfg.Pitch.BaseNote = *o.BaseNote
	}

	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPListen != nil {
		cfg.HTTP.Listen = *o.HTTPListen
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-facing error.
// Call it after defaults, file and overrides have been applied.
func (c *Config) Validate() error {
	// Source
	switch c.Source.Kind {
	case sourceSerial, sourceFIFO, sourceFile:
		if c.Source.Path == "" {
			return fmt.Errorf("source.path must not be empty for source.kind %q", c.Source.Kind)
		}
	case sourceStdin:
	default:
		return fmt.Errorf("source.kind must be one of %q, %q, %q, %q", sourceSerial, sourceFIFO, sourceFile, sourceStdin)
	}
	if c.Source.Kind == sourceSerial {
		if _, err := c.Source.Serial.Normalize(); err != nil {
			return fmt.Errorf("source.serial: %w", err)
		}
	}
	if c.Source.ReplayHz < 0 {
		return errors.New("source.replay_hz must be >= 0")
	}

	// Decoder
	if err := c.DecoderSettings().Validate(); err != nil {
		return fmt.Errorf("decoder: %w", err)
	}

	// Pitch
	if c.Pitch.SemitonesPerTurn == 0 {
		return errors.New("pitch.semitones_per_turn must not be 0")
	}
	if c.Pitch.ReferenceHz <= 0 {
		return errors.New("pitch.reference_hz must be > 0")
	}
	if c.Pitch.BaseNote < 0 || c.Pitch.BaseNote > 127 {
		return errors.New("pitch.base_note must be between 0 and 127")
	}
	if c.Pitch.BendRangeSemitones <= 0 {
		return errors.New("pitch.bend_range_semitones must be > 0")
	}

	// Motion
	if c.Motion.WindowMS <= 0 {
		return errors.New("motion.window_ms must be > 0")
	}
	if c.Motion.FastTurnsPerSec <= 0 {
		return errors.New("motion.fast_turns_per_sec must be > 0")
	}
	if c.Motion.IdleAfterMS < 0 {
		return errors.New("motion.idle_after_ms must be >= 0")
	}
	if c.Motion.TickHz <= 0 || c.Motion.TickHz > 1000 {
		return errors.New("motion.tick_hz must be between 1 and 1000")
	}

	// IPC
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// DecoderSettings converts the decoder section into the decoder's own config.
func (c *Config) DecoderSettings() endless.Config {
	return endless.Config{
		Range:        c.Decoder.Range,
		LagThreshold: c.Decoder.LagThreshold,
		Filter:       endless.FilterMode(c.Decoder.Filter),
	}
}

// ToReducerConfig collects everything the reducer needs.
func (c *Config) ToReducerConfig() ReducerConfig {
	return ReducerConfig{
		Decoder:           c.DecoderSettings(),
		SeedOnFirstSample: c.Decoder.SeedOnFirstSample,
		Pitch:             c.Pitch,
		MotionWindow:      time.Duration(c.Motion.WindowMS) * time.Millisecond,
		FastTurnsPerSec:   c.Motion.FastTurnsPerSec,
		IdleAfter:         time.Duration(c.Motion.IdleAfterMS) * time.Millisecond,
	}
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
