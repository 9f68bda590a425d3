package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// IsCompressed reports whether path names a zstd capture.
func IsCompressed(path string) bool {
	return strings.HasSuffix(path, ".zst")
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r readCloser) Close() error { return r.close() }

// Open opens a capture file for reading.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	if !IsCompressed(path) {
		return f, nil
	}

	dec, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("zstd reader %s: %w", path, err)
	}
	return readCloser{
		Reader: dec,
		close: func() error {
			dec.Close()
			return f.Close()
		},
	}, nil
}

type writeCloser struct {
	io.Writer
	close func() error
}

func (w writeCloser) Close() error { return w.close() }

// Create creates or truncates a capture file for writing. Close must be
// called to finish the zstd frame.
func Create(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create capture: %w", err)
	}
	if !IsCompressed(path) {
		return f, nil
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("zstd writer %s: %w", path, err)
	}
	return writeCloser{
		Writer: enc,
		close: func() error {
			return errors.Join(enc.Close(), f.Close())
		},
	}, nil
}
