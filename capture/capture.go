// Package capture reads and writes raw knob samples as text lines.
//
// Each line holds the two channel readings separated by spaces, tabs or a
// comma. Blank lines and lines starting with '#' are ignored. Files whose
// name ends in ".zst" are zstd-compressed transparently.
package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrMalformedLine is wrapped by every parse failure.
var ErrMalformedLine = errors.New("malformed sample line")

// Sample is one pair of raw channel readings.
type Sample struct {
	Raw1 int
	Raw2 int
}

// LineError reports a malformed line and where it was found.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v: %q", e.Line, e.Err, e.Text)
}

func (e *LineError) Unwrap() error { return e.Err }

// ParseLine parses one line. ok is false for blank and comment lines.
func ParseLine(line string) (s Sample, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Sample{}, false, nil
	}

	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ','
	})
	if len(fields) != 2 {
		return Sample{}, false, fmt.Errorf("%w: want 2 fields, got %d", ErrMalformedLine, len(fields))
	}

	raw1, err := strconv.Atoi(fields[0])
	if err != nil {
		return Sample{}, false, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}
	raw2, err := strconv.Atoi(fields[1])
	if err != nil {
		return Sample{}, false, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}
	return Sample{Raw1: raw1, Raw2: raw2}, true, nil
}

// FormatLine renders s without a trailing newline.
func FormatLine(s Sample) string {
	return strconv.Itoa(s.Raw1) + " " + strconv.Itoa(s.Raw2)
}

// Scanner reads samples from a line stream.
type Scanner struct {
	sc   *bufio.Scanner
	line int
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{sc: bufio.NewScanner(r)}
}

// Next returns the next sample. It returns io.EOF at the end of input and a
// *LineError for malformed lines; after a *LineError the caller may keep
// calling Next.
func (s *Scanner) Next() (Sample, error) {
	for s.sc.Scan() {
		s.line++
		text := s.sc.Text()
		sample, ok, err := ParseLine(text)
		if err != nil {
			return Sample{}, &LineError{Line: s.line, Text: text, Err: err}
		}
		if ok {
			return sample, nil
		}
	}
	if err := s.sc.Err(); err != nil {
		return Sample{}, err
	}
	return Sample{}, io.EOF
}

// Line returns the number of lines consumed so far.
func (s *Scanner) Line() int { return s.line }

// Writer appends samples as lines.
type Writer struct {
	bw *bufio.Writer
}

// NewWriter returns a buffered Writer. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// Comment writes a '#' line.
func (w *Writer) Comment(text string) error {
	_, err := w.bw.WriteString("# " + text + "\n")
	return err
}

// Write appends one sample line.
func (w *Writer) Write(s Sample) error {
	_, err := w.bw.WriteString(FormatLine(s) + "\n")
	return err
}

// Flush writes any buffered lines to the underlying writer.
func (w *Writer) Flush() error {
	return w.bw.Flush()
}
