package main

import "math"

// Pitch is the musical reading of a knob offset.
type Pitch struct {
	Semitones   float64 `json:"semitones"`
	Cents       int     `json:"cents"`
	Note        float64 `json:"note"`
	FrequencyHz float64 `json:"frequency_hz"`
	Bend        int     `json:"bend"`
}

// computePitch maps an offset in turn units to a pitch relative to baseNote.
//
// The 14-bit MIDI bend is centred on 8192 and reaches the ends of its range at
// +/- BendRangeSemitones; offsets beyond that are clamped.
func computePitch(cfg PitchConfig, baseNote int, units int64, turnUnits int) Pitch {
	semis := float64(units) / float64(turnUnits) * cfg.SemitonesPerTurn
	note := float64(baseNote) + semis

	p := Pitch{
		Semitones:   semis,
		Cents:       int(math.Round(semis * 100)),
		Note:        note,
		FrequencyHz: cfg.ReferenceHz * math.Exp2((note-defaultReferenceNote)/12),
		Bend:        midiBendCenter,
	}

	if cfg.BendRangeSemitones > 0 {
		bend := midiBendCenter + int(math.Round(semis/cfg.BendRangeSemitones*midiBendCenter))
		p.Bend = min(max(bend, 0), midiBendMax)
	}
	return p
}
