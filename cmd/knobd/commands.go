package main

import (
	"fmt"

	"endlessknob/capture"
	"endlessknob/endless"
)

// Command is a side effect requested by the reducer and executed by the
// effects layer.
type Command interface {
	commandMarker()
	String() string
}

// CmdRecordSample appends a sample to the capture file, if recording.
type CmdRecordSample struct {
	Sample capture.Sample
}

func (CmdRecordSample) commandMarker() {}
func (c CmdRecordSample) String() string {
	return fmt.Sprintf("CmdRecordSample(%d,%d)", c.Sample.Raw1, c.Sample.Raw2)
}

// CmdReportSectorSkip logs an update that jumped two sectors, where a lap
// may have been missed.
type CmdReportSectorSkip struct {
	From     endless.Sector
	To       endless.Sector
	Position int64
	Skips    uint64
}

func (CmdReportSectorSkip) commandMarker() {}
func (c CmdReportSectorSkip) String() string {
	return fmt.Sprintf("CmdReportSectorSkip(%s->%s)", c.From, c.To)
}

// CmdReportDecoderFallback logs a decoder config that failed validation and
// was replaced by the defaults.
type CmdReportDecoderFallback struct {
	Err error
}

func (CmdReportDecoderFallback) commandMarker() {}
func (c CmdReportDecoderFallback) String() string {
	return fmt.Sprintf("CmdReportDecoderFallback(%v)", c.Err)
}

// CmdPublishStateSnapshot delivers a snapshot to whoever asked for it.
type CmdPublishStateSnapshot struct {
	Reply    chan<- StateSnapshot
	Snapshot StateSnapshot
}

func (CmdPublishStateSnapshot) commandMarker() {}
func (CmdPublishStateSnapshot) String() string { return "CmdPublishStateSnapshot()" }
