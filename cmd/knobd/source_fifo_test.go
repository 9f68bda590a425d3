//go:build unix

package main

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenFIFO(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knobd.fifo")

	r, err := openFIFO(path)
	require.NoError(t, err)
	defer r.Close()

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, fi.Mode()&os.ModeNamedPipe)

	// The reader holds a write end too, so opening a writer never blocks.
	w, err := os.OpenFile(path, os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = w.WriteString("1024 3072\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	line, err := bufio.NewReader(r).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "1024 3072\n", line)

	// Reopening an existing FIFO is fine.
	again, err := openFIFO(path)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestOpenFIFO_RejectsRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := openFIFO(path)
	assert.ErrorContains(t, err, "not a fifo")
}
