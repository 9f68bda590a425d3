package main

import (
	"math"
	"time"

	"endlessknob/capture"
	"endlessknob/endless"
)

// This file implements the reducer:
//
//   - Events: inputs (samples, IPC requests, ticks, effect failures)
//   - Commands: side effects for the effects layer (recording, logging, replies)
//   - Broadcasts: state changes for websocket clients
//
// Reduce performs no I/O and never reads the clock; timestamps come from
// TimedEvent and Tick.

// ReducerConfig is the reducer's view of the daemon config.
type ReducerConfig struct {
	Decoder           endless.Config
	SeedOnFirstSample bool

	Pitch PitchConfig

	MotionWindow    time.Duration
	FastTurnsPerSec float64
	IdleAfter       time.Duration
}

// ReduceResult is the next state plus the effects and broadcasts it implies.
type ReduceResult struct {
	State      *DaemonState
	Commands   []Command
	Broadcasts []StateBroadcast
}

func (r *ReduceResult) command(c Command)          { r.Commands = append(r.Commands, c) }
func (r *ReduceResult) broadcast(b StateBroadcast) { r.Broadcasts = append(r.Broadcasts, b) }

// Reduce is the pure reducer. It mutates only the state it returns.
//
// A nil or reset state gets a decoder built from cfg.Decoder. When that
// config does not validate the decoder uses endless.DefaultConfig instead
// and the result carries a CmdReportDecoderFallback.
func Reduce(s *DaemonState, e Event, cfg ReducerConfig) ReduceResult {
	if s == nil {
		s = &DaemonState{}
	}
	out := ReduceResult{State: s}
	if err := s.init(cfg); err != nil {
		out.command(CmdReportDecoderFallback{Err: err})
	}

	var at time.Time
	if te, ok := e.(TimedEvent); ok {
		e, at = te.Event, te.At
	}

	switch ev := e.(type) {
	case SampleReceived:
		s.Stats.Samples++
		out.command(CmdRecordSample{Sample: capture.Sample{Raw1: ev.Raw1, Raw2: ev.Raw2}})

		if cfg.SeedOnFirstSample && !s.Seeded {
			s.Decoder.Seed(ev.Raw1, ev.Raw2)
			s.Seeded = true
			reduceJump(s, at, cfg, &out)
			break
		}
		s.Seeded = true

		prevSector := s.Knob.Sector
		if !s.Decoder.Update(ev.Raw1, ev.Raw2) {
			// Within the dead zone: nothing moved.
			s.Knob.Delta = 0
			break
		}
		reduceUpdate(s, prevSector, at, cfg, &out)

	case SeedKnob:
		s.Decoder.Seed(ev.Raw1, ev.Raw2)
		s.Seeded = true
		reduceJump(s, at, cfg, &out)

	case ResetKnob:
		s.Decoder = nil
		s.initialized = false
		if err := s.init(cfg); err != nil {
			out.command(CmdReportDecoderFallback{Err: err})
		}
		s.Seeded = false
		s.Stats.Resets++
		s.Pitch.Origin = 0
		reduceJump(s, at, cfg, &out)

	case SetPitchBase:
		s.Pitch.BaseNote = ev.Note
		s.Pitch.Origin = s.Knob.Position
		reducePitch(s, at, cfg, true, &out)

	case Tick:
		reduceTick(s, ev.Now, cfg, &out)

	case RequestStateSnapshot:
		out.command(CmdPublishStateSnapshot{Reply: ev.Reply, Snapshot: s.Snapshot()})

	case CommandFailed:
		s.Stats.EffectErrors++

	default:
		// Unknown event type: no-op.
	}

	return out
}

// reduceUpdate publishes a regular decoder update.
func reduceUpdate(s *DaemonState, prevSector endless.Sector, at time.Time, cfg ReducerConfig, out *ReduceResult) {
	prevLaps := s.Knob.Laps
	s.syncKnob(at)
	s.Stats.Updates++

	out.broadcast(positionBroadcast(s, at))
	if s.Knob.Laps != prevLaps {
		out.broadcast(BroadcastLapChanged{Laps: s.Knob.Laps, Direction: sign(s.Knob.Laps - prevLaps), At: at})
	}

	if s.Decoder.Reading().SectorSkipped {
		s.Stats.SectorSkips++
		out.command(CmdReportSectorSkip{
			From:     prevSector,
			To:       s.Knob.Sector,
			Position: s.Knob.Position,
			Skips:    s.Stats.SectorSkips,
		})
	}

	s.Motion.record(at, s.Knob.Position, cfg.MotionWindow)
	reduceActivity(s, at, out)
	reducePitch(s, at, cfg, false, out)
}

// reduceJump publishes a position set directly (seed or reset). Jumps are
// not motion, so the speed history is dropped.
func reduceJump(s *DaemonState, at time.Time, cfg ReducerConfig, out *ReduceResult) {
	prevLaps := s.Knob.Laps
	s.syncKnob(at)

	out.broadcast(positionBroadcast(s, at))
	if s.Knob.Laps != prevLaps {
		out.broadcast(BroadcastLapChanged{Laps: s.Knob.Laps, Direction: sign(s.Knob.Laps - prevLaps), At: at})
	}

	s.Motion.clear()
	reduceActivity(s, at, out)
	reducePitch(s, at, cfg, false, out)
}

// reducePitch recomputes the pitch and broadcasts when the rounded cents
// value moved, or always when force is set.
func reducePitch(s *DaemonState, at time.Time, cfg ReducerConfig, force bool, out *ReduceResult) {
	p := computePitch(cfg.Pitch, s.Pitch.BaseNote, s.Knob.Position-s.Pitch.Origin, s.Decoder.TurnUnits())

	changed := force || !s.Pitch.Known || p.Cents != s.Pitch.Current.Cents
	s.Pitch.Current = p
	s.Pitch.Known = true

	if changed {
		out.broadcast(BroadcastPitchChanged{Pitch: p, BaseNote: s.Pitch.BaseNote, At: at})
	}
}

// reduceActivity restarts the idle timer.
func reduceActivity(s *DaemonState, at time.Time, out *ReduceResult) {
	s.Motion.LastChangeAt = at
	if s.Motion.Idle {
		s.Motion.Idle = false
		out.broadcast(BroadcastIdleChanged{Idle: false, At: at})
	}
}

// reduceTick decays the speed estimate and drives the idle timer.
func reduceTick(s *DaemonState, now time.Time, cfg ReducerConfig, out *ReduceResult) {
	s.Motion.prune(now, cfg.MotionWindow)

	speed := roundSpeed(estimateSpeed(s.Motion.Points, s.Decoder.TurnUnits()))
	dir := motionDirection(speed)
	fast := cfg.FastTurnsPerSec > 0 && math.Abs(speed) >= cfg.FastTurnsPerSec
	if dir == 0 {
		speed = 0
	}

	if speed != s.Motion.TurnsPerSec || dir != s.Motion.Direction || fast != s.Motion.Fast {
		s.Motion.TurnsPerSec = speed
		s.Motion.Direction = dir
		s.Motion.Fast = fast
		out.broadcast(BroadcastMotionChanged{TurnsPerSec: speed, Direction: dir, Fast: fast, At: now})
	}

	if s.Motion.LastChangeAt.IsZero() {
		s.Motion.LastChangeAt = now
	}
	if !s.Motion.Idle && cfg.IdleAfter > 0 && now.Sub(s.Motion.LastChangeAt) >= cfg.IdleAfter {
		s.Motion.Idle = true
		out.broadcast(BroadcastIdleChanged{Idle: true, At: now})
	}
}

func positionBroadcast(s *DaemonState, at time.Time) BroadcastPositionChanged {
	return BroadcastPositionChanged{
		Position: s.Knob.Position,
		Delta:    s.Knob.Delta,
		Laps:     s.Knob.Laps,
		Sector:   int(s.Knob.Sector),
		Turns:    s.Turns(),
		At:       at,
	}
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	default:
		return 0
	}
}
