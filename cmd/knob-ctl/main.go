package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// ============================================================================
// knob-ctl - Command-line IPC Client
// ============================================================================
// Sends requests to the knobd daemon over its unix socket.
//
// Usage:
//   knob-ctl reset
//   knob-ctl seed 1000 3000
//   knob-ctl sample 1200 2900
//   knob-ctl pitch-base 60
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/knobd.sock)
// ============================================================================

// Request types (duplicated from knobd for a standalone binary)
type Request interface{}

type Sample struct {
	Raw1 int `json:"raw1"`
	Raw2 int `json:"raw2"`
}

type Seed struct {
	Raw1 int `json:"raw1"`
	Raw2 int `json:"raw2"`
}

type Reset struct{}

type SetPitchBase struct {
	Note int `json:"note"`
}

// Envelope wraps requests for JSON
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IPCResponse is the daemon's reply
type IPCResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

const ipcTimeout = 2 * time.Second

func main() {
	socketPath := "/tmp/knobd.sock"

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	req, err := parseRequest(args)
	if errors.Is(err, errUsage) {
		printUsage()
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := sendRequest(socketPath, req); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("ok")
}

var errUsage = errors.New("usage requested")

// parseRequest turns command-line words into a request.
func parseRequest(args []string) (Request, error) {
	switch args[0] {
	case "reset":
		return Reset{}, nil

	case "seed", "sample":
		if len(args) < 3 {
			return nil, fmt.Errorf("%s requires two raw values", args[0])
		}
		raw1, err := parseRaw(args[1])
		if err != nil {
			return nil, err
		}
		raw2, err := parseRaw(args[2])
		if err != nil {
			return nil, err
		}
		if args[0] == "seed" {
			return Seed{Raw1: raw1, Raw2: raw2}, nil
		}
		return Sample{Raw1: raw1, Raw2: raw2}, nil

	case "pitch-base", "base":
		if len(args) < 2 {
			return nil, fmt.Errorf("pitch-base requires a MIDI note")
		}
		note, err := strconv.Atoi(args[1])
		if err != nil || note < 0 || note > 127 {
			return nil, fmt.Errorf("invalid MIDI note %q (0..127)", args[1])
		}
		return SetPitchBase{Note: note}, nil

	case "help", "-h", "--help":
		return nil, errUsage

	default:
		return nil, fmt.Errorf("unknown command: %s", args[0])
	}
}

func parseRaw(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid raw value %q", s)
	}
	return v, nil
}

func sendRequest(socketPath string, req Request) error {
	conn, err := net.DialTimeout("unix", socketPath, ipcTimeout)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(ipcTimeout))

	data, err := marshalRequest(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	// Line-delimited JSON
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	var response IPCResponse
	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if response.Status == "error" {
		return fmt.Errorf("daemon error: %s", response.Error)
	}
	return nil
}

func marshalRequest(req Request) ([]byte, error) {
	var env Envelope

	withData := func(typ string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		env.Type = typ
		env.Data = data
		return nil
	}

	var err error
	switch r := req.(type) {
	case Sample:
		err = withData("sample", r)
	case Seed:
		err = withData("seed", r)
	case Reset:
		env.Type = "reset"
	case SetPitchBase:
		err = withData("set_pitch_base", r)
	default:
		return nil, fmt.Errorf("unknown request type: %T", req)
	}
	if err != nil {
		return nil, err
	}

	return json.Marshal(env)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `knob-ctl - Control the knobd daemon via IPC

Usage:
  knob-ctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: /tmp/knobd.sock)

Commands:
  reset                   Return the decoder to position zero
  seed <raw1> <raw2>      Place the decoder on a sample without counting a lap
  sample <raw1> <raw2>    Inject one raw sample
  pitch-base, base <n>    Make the current position play MIDI note n
  help, -h, --help        Show this help message

Examples:
  knob-ctl reset
  knob-ctl pitch-base 60
  knob-ctl -socket /run/knobd.sock seed 1000 3000
`)
}
