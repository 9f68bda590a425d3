package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ipcRoundTrip(t *testing.T, conn net.Conn, dec *json.Decoder, line string) IPCResponse {
	t.Helper()
	_, err := fmt.Fprintln(conn, line)
	require.NoError(t, err)

	var resp IPCResponse
	require.NoError(t, dec.Decode(&resp))
	return resp
}

func TestHandleIPCConnection(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	events := make(chan Event, 1)
	go handleIPCConnection(server, events, discardLogger())

	dec := json.NewDecoder(client)

	resp := ipcRoundTrip(t, client, dec, `{"type":"seed","data":{"raw1":1000,"raw2":1048}}`)
	assert.Equal(t, IPCResponse{Status: "ok"}, resp)
	assert.Equal(t, SeedKnob{Raw1: 1000, Raw2: 1048}, <-events)

	resp = ipcRoundTrip(t, client, dec, `{"type":"spin"}`)
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Error, "unknown event type")

	// Fill the queue so the next event is rejected.
	events <- ResetKnob{}
	resp = ipcRoundTrip(t, client, dec, `{"type":"reset"}`)
	assert.Equal(t, IPCResponse{Status: "error", Error: "event queue full"}, resp)
}

func TestIPCServer_SendIPCEvent(t *testing.T) {
	dir, err := os.MkdirTemp("", "knobd")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	socket := filepath.Join(dir, "ipc.sock")

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan Event, 4)
	done := make(chan error, 1)
	go func() { done <- runIPCServer(ctx, socket, events, discardLogger()) }()

	waitUntil(t, time.Second, func() bool {
		_, err := os.Stat(socket)
		return err == nil
	}, "socket not created")

	require.NoError(t, SendIPCEvent(socket, SetPitchBase{Note: 60}))
	assert.Equal(t, SetPitchBase{Note: 60}, <-events)

	err = SendIPCEvent(socket, Tick{})
	assert.ErrorContains(t, err, "marshal event")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("IPC server did not stop")
	}

	_, err = os.Stat(socket)
	assert.ErrorIs(t, err, os.ErrNotExist, "socket is removed on shutdown")
}
