package main

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// Events - reducer inputs
// ============================================================================
// Events come from the sample source, IPC clients, the tick timer, the state
// websocket (snapshot requests) and the effects layer (failures).
// ============================================================================

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// SampleReceived carries one raw channel pair.
type SampleReceived struct {
	Raw1 int `json:"raw1"`
	Raw2 int `json:"raw2"`
}

func (SampleReceived) eventMarker() {}

// ResetKnob returns the decoder to its zero state.
type ResetKnob struct{}

func (ResetKnob) eventMarker() {}

// SeedKnob places the decoder directly on a sample without counting a lap.
type SeedKnob struct {
	Raw1 int `json:"raw1"`
	Raw2 int `json:"raw2"`
}

func (SeedKnob) eventMarker() {}

// SetPitchBase makes the current knob position play Note.
type SetPitchBase struct {
	Note int `json:"note"`
}

func (SetPitchBase) eventMarker() {}

// Tick is emitted by the daemon loop at a fixed cadence.
type Tick struct {
	Now time.Time
}

func (Tick) eventMarker() {}

// TimedEvent stamps an event with its arrival time so the reducer never
// reads the clock.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// RequestStateSnapshot asks the daemon loop for a coherent snapshot. The
// reply is delivered by the effects layer.
type RequestStateSnapshot struct {
	Reply chan<- StateSnapshot
}

func (RequestStateSnapshot) eventMarker() {}

// CommandFailed is emitted when executing a Command fails.
type CommandFailed struct {
	Command Command
	Err     error
	At      time.Time
}

func (CommandFailed) eventMarker() {}

// ============================================================================
// JSON envelope
// ============================================================================

// EventEnvelope wraps events with a type discriminator on the IPC wire.
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	eventTypeSample       = "sample"
	eventTypeReset        = "reset"
	eventTypeSeed         = "seed"
	eventTypeSetPitchBase = "set_pitch_base"
)

// UnmarshalEvent decodes an IPC envelope into a concrete Event.
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case eventTypeSample:
		var e SampleReceived
		if err := unmarshalData(env, &e); err != nil {
			return nil, err
		}
		return e, nil

	case eventTypeReset:
		return ResetKnob{}, nil

	case eventTypeSeed:
		var e SeedKnob
		if err := unmarshalData(env, &e); err != nil {
			return nil, err
		}
		return e, nil

	case eventTypeSetPitchBase:
		var e SetPitchBase
		if err := unmarshalData(env, &e); err != nil {
			return nil, err
		}
		if e.Note < 0 || e.Note > 127 {
			return nil, fmt.Errorf("set_pitch_base: note %d out of range 0..127", e.Note)
		}
		return e, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

func unmarshalData(env EventEnvelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%s: missing data", env.Type)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", env.Type, err)
	}
	return nil
}

// MarshalEvent encodes an IPC-capable Event into its envelope.
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch e := e.(type) {
	case SampleReceived:
		env.Type = eventTypeSample
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal SampleReceived: %w", err)
		}
		env.Data = data

	case ResetKnob:
		env.Type = eventTypeReset

	case SeedKnob:
		env.Type = eventTypeSeed
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal SeedKnob: %w", err)
		}
		env.Data = data

	case SetPitchBase:
		env.Type = eventTypeSetPitchBase
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal SetPitchBase: %w", err)
		}
		env.Data = data

	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	return json.Marshal(env)
}
