package capture

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		in      string
		want    Sample
		ok      bool
		wantErr bool
	}{
		{in: "100 200", want: Sample{100, 200}, ok: true},
		{in: "  4095\t0 ", want: Sample{4095, 0}, ok: true},
		{in: "1,2", want: Sample{1, 2}, ok: true},
		{in: "1, 2", want: Sample{1, 2}, ok: true},
		{in: ""},
		{in: "   "},
		{in: "# recorded at 1kHz"},
		{in: "12", wantErr: true},
		{in: "1 2 3", wantErr: true},
		{in: "a 2", wantErr: true},
		{in: "1 0x10", wantErr: true},
	}

	for _, tt := range tests {
		got, ok, err := ParseLine(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrMalformedLine, "%q", tt.in)
			continue
		}
		require.NoError(t, err, "%q", tt.in)
		assert.Equal(t, tt.ok, ok, "%q", tt.in)
		assert.Equal(t, tt.want, got, "%q", tt.in)
	}
}

func TestScanner_SkipsCommentsAndReportsBadLines(t *testing.T) {
	in := strings.Join([]string{
		"# header",
		"1 2",
		"",
		"oops",
		"3 4",
	}, "\n")

	sc := NewScanner(strings.NewReader(in))

	s, err := sc.Next()
	require.NoError(t, err)
	assert.Equal(t, Sample{1, 2}, s)

	_, err = sc.Next()
	var lineErr *LineError
	require.ErrorAs(t, err, &lineErr)
	assert.Equal(t, 4, lineErr.Line)
	assert.True(t, errors.Is(err, ErrMalformedLine))

	s, err = sc.Next()
	require.NoError(t, err)
	assert.Equal(t, Sample{3, 4}, s)

	_, err = sc.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 5, sc.Line())
}

func readAll(t *testing.T, r io.Reader) []Sample {
	t.Helper()
	var out []Sample
	sc := NewScanner(r)
	for {
		s, err := sc.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, s)
	}
}

func TestWriter_RoundTripsThroughScanner(t *testing.T) {
	samples := []Sample{{0, 2048}, {64, 1984}, {4095, 2048}}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Comment("sim"))
	for _, s := range samples {
		require.NoError(t, w.Write(s))
	}
	require.NoError(t, w.Flush())

	assert.Equal(t, "# sim\n0 2048\n64 1984\n4095 2048\n", buf.String())
	if diff := cmp.Diff(samples, readAll(t, &buf)); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}
}

func TestFiles(t *testing.T) {
	samples := []Sample{{1, 2}, {3, 4}, {5, 6}}

	for _, name := range []string{"plain.txt", "packed.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)

			wc, err := Create(path)
			require.NoError(t, err)
			w := NewWriter(wc)
			for _, s := range samples {
				require.NoError(t, w.Write(s))
			}
			require.NoError(t, w.Flush())
			require.NoError(t, wc.Close())

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, IsCompressed(path), !bytes.HasPrefix(raw, []byte("1 2")))

			rc, err := Open(path)
			require.NoError(t, err)
			defer rc.Close()

			if diff := cmp.Diff(samples, readAll(t, rc)); diff != "" {
				t.Errorf("samples mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.zst"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
