package main

import "time"

// StateBroadcast is a state change the reducer wants pushed to websocket
// clients. The broadcaster turns each into a JSON frame.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastPositionChanged is emitted on every decoder update.
type BroadcastPositionChanged struct {
	Position int64
	Delta    int64
	Laps     int
	Sector   int
	Turns    float64
	At       time.Time
}

func (BroadcastPositionChanged) broadcastMarker() {}

// BroadcastLapChanged is emitted when the lap count moves.
type BroadcastLapChanged struct {
	Laps      int
	Direction int
	At        time.Time
}

func (BroadcastLapChanged) broadcastMarker() {}

// BroadcastPitchChanged is emitted when the pitch moves by at least a cent.
type BroadcastPitchChanged struct {
	Pitch    Pitch
	BaseNote int
	At       time.Time
}

func (BroadcastPitchChanged) broadcastMarker() {}

// BroadcastMotionChanged is emitted when the rounded speed, direction or
// fast flag changes.
type BroadcastMotionChanged struct {
	TurnsPerSec float64
	Direction   int
	Fast        bool
	At          time.Time
}

func (BroadcastMotionChanged) broadcastMarker() {}

// BroadcastIdleChanged is emitted on entering and leaving idle.
type BroadcastIdleChanged struct {
	Idle bool
	At   time.Time
}

func (BroadcastIdleChanged) broadcastMarker() {}
