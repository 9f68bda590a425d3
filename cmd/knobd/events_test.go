package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalEvent(t *testing.T) {
	tests := []struct {
		line string
		want Event
	}{
		{`{"type":"sample","data":{"raw1":100,"raw2":2000}}`, SampleReceived{Raw1: 100, Raw2: 2000}},
		{`{"type":"reset"}`, ResetKnob{}},
		{`{"type":"seed","data":{"raw1":3000,"raw2":1500}}`, SeedKnob{Raw1: 3000, Raw2: 1500}},
		{`{"type":"set_pitch_base","data":{"note":60}}`, SetPitchBase{Note: 60}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := UnmarshalEvent([]byte(tt.line))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			data, err := MarshalEvent(got)
			require.NoError(t, err)
			assert.JSONEq(t, tt.line, string(data))
		})
	}
}

func TestUnmarshalEvent_Errors(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"not json", `sample 1 2`, "unmarshal envelope"},
		{"unknown type", `{"type":"spin"}`, "unknown event type"},
		{"missing data", `{"type":"sample"}`, "missing data"},
		{"bad data", `{"type":"seed","data":{"raw1":"x"}}`, "unmarshal seed"},
		{"note too high", `{"type":"set_pitch_base","data":{"note":128}}`, "out of range"},
		{"note negative", `{"type":"set_pitch_base","data":{"note":-1}}`, "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalEvent([]byte(tt.line))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestMarshalEvent_RejectsInternalEvents(t *testing.T) {
	_, err := MarshalEvent(Tick{Now: time.Now()})
	assert.ErrorContains(t, err, "unsupported event type")
}
