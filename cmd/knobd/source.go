package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"endlessknob/capture"
)

// openSource opens the configured sample stream.
func openSource(cfg SourceConfig) (io.ReadCloser, error) {
	path := ExpandPath(cfg.Path)

	switch cfg.Kind {
	case sourceSerial:
		return openSerial(path, cfg.Serial)
	case sourceFIFO:
		return openFIFO(path)
	case sourceFile:
		return capture.Open(path)
	case sourceStdin:
		return io.NopCloser(os.Stdin), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

// sourceStats counts what the reader saw. Only the reader goroutine writes it.
type sourceStats struct {
	Samples   uint64
	Malformed uint64
}

// readSamples scans sample lines from r and forwards them as events until
// EOF, a read error, or ctx is canceled. Malformed lines are logged and
// skipped. A positive pace spaces samples out in time (capture replay).
//
// readSamples returns nil on EOF and on cancellation.
func readSamples(ctx context.Context, r io.Reader, pace time.Duration, events chan<- Event, logger *slog.Logger) (sourceStats, error) {
	var stats sourceStats
	sc := capture.NewScanner(r)

	var tick <-chan time.Time
	if pace > 0 {
		t := time.NewTicker(pace)
		defer t.Stop()
		tick = t.C
	}

	for {
		s, err := sc.Next()
		if err != nil {
			var lineErr *capture.LineError
			switch {
			case errors.As(err, &lineErr):
				stats.Malformed++
				logger.Debug("skipping malformed sample line", "line", lineErr.Line, "text", lineErr.Text, "error", lineErr.Err)
				continue
			case errors.Is(err, io.EOF):
				return stats, nil
			case ctx.Err() != nil:
				return stats, nil
			default:
				return stats, fmt.Errorf("read samples: %w", err)
			}
		}

		if tick != nil {
			select {
			case <-ctx.Done():
				return stats, nil
			case <-tick:
			}
		}

		select {
		case <-ctx.Done():
			return stats, nil
		case events <- SampleReceived{Raw1: s.Raw1, Raw2: s.Raw2}:
			stats.Samples++
		}
	}
}

// runSource opens the configured source and pumps it into events. The
// stream is closed when ctx ends so a blocked read returns.
func runSource(ctx context.Context, cfg SourceConfig, events chan<- Event, logger *slog.Logger) error {
	rc, err := openSource(cfg)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = rc.Close()
	}()

	var pace time.Duration
	if cfg.Kind == sourceFile && cfg.ReplayHz > 0 {
		pace = time.Second / time.Duration(cfg.ReplayHz)
	}

	logger.Info("sample source open", "kind", cfg.Kind, "path", cfg.Path, "replay_hz", cfg.ReplayHz)

	stats, err := readSamples(ctx, rc, pace, events, logger)
	if err != nil {
		logger.Error("sample source failed", "error", err, "samples", stats.Samples, "malformed", stats.Malformed)
		return err
	}
	logger.Info("sample source finished", "samples", stats.Samples, "malformed", stats.Malformed)
	return nil
}
