package main

import "time"

// Sample source kinds
const (
	sourceSerial = "serial"
	sourceFIFO   = "fifo"
	sourceFile   = "file"
	sourceStdin  = "stdin"
)

// Pitch mapping defaults. One turn bends the note by two semitones.
const (
	defaultSemitonesPerTurn   = 2.0
	defaultReferenceHz        = 440.0
	defaultReferenceNote      = 69 // A4
	defaultBaseNote           = 69
	defaultBendRangeSemitones = 2.0

	midiBendCenter = 8192
	midiBendMax    = 16383
)

// Motion estimator defaults
const (
	defaultMotionWindowMS    = 250
	defaultFastTurnsPerSec   = 1.5
	defaultIdleAfterMS       = 3000
	defaultTickHz            = 20
	motionSpeedEpsilon       = 0.01 // turns/s below which the knob counts as still
	motionBroadcastPrecision = 100  // speed is broadcast rounded to 1/100 turn/s
)

// Channel and queue sizes
const (
	eventQueueSize     = 256
	broadcastQueueSize = 256
)

const snapshotTimeout = 1 * time.Second
