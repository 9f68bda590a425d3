package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"endlessknob/capture"
)

// recorder tees samples into a capture file.
type recorder struct {
	mu     sync.Mutex
	path   string
	file   io.WriteCloser
	w      *capture.Writer
	closed bool
}

// newRecorder creates the capture file at path and writes a header comment.
func newRecorder(path string, now time.Time) (*recorder, error) {
	f, err := capture.Create(ExpandPath(path))
	if err != nil {
		return nil, err
	}
	r := &recorder{path: path, file: f, w: capture.NewWriter(f)}
	if err := r.w.Comment("knobd capture " + now.UTC().Format(time.RFC3339)); err != nil {
		f.Close()
		return nil, fmt.Errorf("write capture header: %w", err)
	}
	return r, nil
}

func (r *recorder) Write(s capture.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errRecorderClosed
	}
	return r.w.Write(s)
}

// Close flushes and closes the capture file. It is safe to call twice.
func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.w.Flush(); err != nil {
		r.file.Close()
		return fmt.Errorf("flush capture %s: %w", r.path, err)
	}
	return r.file.Close()
}

var errRecorderClosed = errors.New("recorder closed")

// effectEnv holds the external resources commands act on. A nil recorder
// makes CmdRecordSample a no-op.
type effectEnv struct {
	recorder *recorder
}

// runEffect executes a single reducer-emitted Command and reports failures
// via onEvent.
//
// It may perform I/O but never calls Reduce; the daemon loop sequences
// Reduce -> Commands -> runEffect -> Events -> Reduce.
func runEffect(env *effectEnv, cmd Command, logger *slog.Logger, onEvent func(Event)) {
	now := time.Now()

	switch c := cmd.(type) {
	case CmdRecordSample:
		if env == nil || env.recorder == nil {
			return
		}
		if err := env.recorder.Write(c.Sample); err != nil {
			logger.Error("capture write failed", "error", err, "path", env.recorder.path)
			if onEvent != nil {
				onEvent(CommandFailed{Command: cmd, Err: err, At: now})
			}
		}

	case CmdReportSectorSkip:
		logger.Warn("knob skipped a sector, lap count may be off",
			"from", c.From.String(),
			"to", c.To.String(),
			"position", c.Position,
			"skips", c.Skips)

	case CmdReportDecoderFallback:
		logger.Error("invalid decoder config, using defaults", "error", c.Err)

	case CmdPublishStateSnapshot:
		if c.Reply == nil {
			logger.Warn("state snapshot requested with nil reply channel")
			return
		}

		// Never block the daemon loop on a slow requester.
		select {
		case c.Reply <- c.Snapshot:
		default:
			logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}

	default:
		logger.Warn("unknown command type", "command", cmd.String())
		if onEvent != nil {
			onEvent(CommandFailed{Command: cmd, Err: errUnknownCommand{cmd: cmd}, At: now})
		}
	}
}

type errUnknownCommand struct {
	cmd Command
}

func (e errUnknownCommand) Error() string { return "unknown command: " + e.cmd.String() }
