package main

import (
	"time"

	"endlessknob/endless"
)

// DaemonState is the top-level, daemon-owned state container. Only the
// daemon goroutine touches it; other goroutines get StateSnapshot copies.
type DaemonState struct {
	// Decoder is the single decoder instance for the knob.
	Decoder *endless.Decoder

	// Seeded is false until the first sample (or seed) reached the decoder.
	Seeded bool

	Knob   KnobState
	Pitch  PitchState
	Motion MotionState
	Stats  DaemonStats

	initialized bool
}

// KnobState mirrors the latest decoder reading.
type KnobState struct {
	Position  int64
	Delta     int64
	Laps      int
	Sector    endless.Sector
	Smooth1   int
	Smooth2   int
	UpdatedAt time.Time
}

// PitchState holds the pitch anchor and the last published pitch.
type PitchState struct {
	// BaseNote is the MIDI note played at Origin.
	BaseNote int
	Origin   int64

	Current Pitch
	Known   bool
}

// DaemonStats counts what the reducer has seen.
type DaemonStats struct {
	Samples      uint64
	Updates      uint64
	SectorSkips  uint64
	Resets       uint64
	EffectErrors uint64
}

// NewDaemonState returns a state with a decoder built from cfg.
func NewDaemonState(cfg ReducerConfig) (*DaemonState, error) {
	d, err := endless.NewDecoder(cfg.Decoder)
	if err != nil {
		return nil, err
	}
	s := &DaemonState{Decoder: d}
	s.init(cfg)
	return s, nil
}

// init fills what a zero DaemonState lacks. If cfg.Decoder is invalid the
// decoder is built from endless.DefaultConfig and the validation error is
// returned.
func (s *DaemonState) init(cfg ReducerConfig) error {
	if s.initialized {
		return nil
	}
	var err error
	if s.Decoder == nil {
		d, derr := endless.NewDecoder(cfg.Decoder)
		if derr != nil {
			err = derr
			d = endless.MustNewDecoder(endless.DefaultConfig())
		}
		s.Decoder = d
	}
	s.Pitch.BaseNote = cfg.Pitch.BaseNote
	s.initialized = true
	return err
}

func (s *DaemonState) syncKnob(at time.Time) {
	r := s.Decoder.Reading()
	s.Knob = KnobState{
		Position:  r.Position,
		Delta:     r.Delta,
		Laps:      r.Laps,
		Sector:    r.Sector,
		Smooth1:   r.Smooth1,
		Smooth2:   r.Smooth2,
		UpdatedAt: at,
	}
}

// Turns is the position in revolutions.
func (s *DaemonState) Turns() float64 {
	if s.Decoder == nil {
		return 0
	}
	return float64(s.Knob.Position) / float64(s.Decoder.TurnUnits())
}

// StateSnapshot is an immutable copy of DaemonState for other goroutines.
type StateSnapshot struct {
	Position int64   `json:"position"`
	Laps     int     `json:"laps"`
	Sector   int     `json:"sector"`
	Turns    float64 `json:"turns"`
	Smooth1  int     `json:"smooth1"`
	Smooth2  int     `json:"smooth2"`
	Seeded   bool    `json:"seeded"`

	BaseNote int   `json:"base_note"`
	Pitch    Pitch `json:"pitch"`

	TurnsPerSec float64 `json:"turns_per_sec"`
	Direction   int     `json:"direction"`
	Fast        bool    `json:"fast"`
	Idle        bool    `json:"idle"`

	Samples     uint64 `json:"samples"`
	Updates     uint64 `json:"updates"`
	SectorSkips uint64 `json:"sector_skips"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot copies the externally visible state.
func (s *DaemonState) Snapshot() StateSnapshot {
	return StateSnapshot{
		Position:    s.Knob.Position,
		Laps:        s.Knob.Laps,
		Sector:      int(s.Knob.Sector),
		Turns:       s.Turns(),
		Smooth1:     s.Knob.Smooth1,
		Smooth2:     s.Knob.Smooth2,
		Seeded:      s.Seeded,
		BaseNote:    s.Pitch.BaseNote,
		Pitch:       s.Pitch.Current,
		TurnsPerSec: s.Motion.TurnsPerSec,
		Direction:   s.Motion.Direction,
		Fast:        s.Motion.Fast,
		Idle:        s.Motion.Idle,
		Samples:     s.Stats.Samples,
		Updates:     s.Stats.Updates,
		SectorSkips: s.Stats.SectorSkips,
		UpdatedAt:   s.Knob.UpdatedAt,
	}
}
