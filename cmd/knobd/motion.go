package main

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// MotionState tracks recent positions for speed estimation and the
// idle timer. It is owned by the reducer.
type MotionState struct {
	Points []MotionPoint

	// Last published values
	TurnsPerSec float64
	Direction   int
	Fast        bool

	LastChangeAt time.Time
	Idle         bool
}

// MotionPoint is one decoded position at a given time.
type MotionPoint struct {
	At       time.Time
	Position int64
}

// record appends a point and drops the ones older than window.
func (m *MotionState) record(at time.Time, position int64, window time.Duration) {
	m.Points = append(m.Points, MotionPoint{At: at, Position: position})
	m.prune(at, window)
}

// prune removes points that fell out of the window ending at now.
func (m *MotionState) prune(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)

	kept := m.Points[:0]
	for _, p := range m.Points {
		if !p.At.Before(cutoff) {
			kept = append(kept, p)
		}
	}
	m.Points = kept
}

// clear forgets the history, used after jumps that are not real motion.
func (m *MotionState) clear() {
	m.Points = m.Points[:0]
}

// estimateSpeed fits a least-squares line through the points and returns
// its slope in turns per second. Fewer than two distinct instants give 0.
func estimateSpeed(points []MotionPoint, turnUnits int) float64 {
	if len(points) < 2 || turnUnits <= 0 {
		return 0
	}

	t0 := points[0].At
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.At.Sub(t0).Seconds()
		ys[i] = float64(p.Position) / float64(turnUnits)
	}
	if xs[len(xs)-1] == xs[0] {
		return 0
	}

	_, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return 0
	}
	return beta
}

// motionDirection returns -1, 0 or +1 for a speed in turns per second.
func motionDirection(turnsPerSec float64) int {
	switch {
	case turnsPerSec > motionSpeedEpsilon:
		return 1
	case turnsPerSec < -motionSpeedEpsilon:
		return -1
	default:
		return 0
	}
}

func roundSpeed(turnsPerSec float64) float64 {
	return math.Round(turnsPerSec*motionBroadcastPrecision) / motionBroadcastPrecision
}
