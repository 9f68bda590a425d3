package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

const version = "0.3.0"

func printVersion() {
	fmt.Printf("knobd v%s\n", version)
	fmt.Println("Endless potentiometer decoder daemon")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  knobd [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Reads raw two-channel samples of an endless potentiometer from a serial")
	fmt.Println("  port, FIFO, capture file or stdin, decodes them into a multi-turn")
	fmt.Println("  position and publishes position, pitch and motion over a websocket.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Decode a USB-CDC stream")
	fmt.Println("  knobd -source serial -source-path /dev/ttyACM0")
	fmt.Println()
	fmt.Println("  # Replay a compressed capture at 1 kHz")
	fmt.Println("  knobd -source file -source-path knob.zst -replay-hz 1000")
	fmt.Println()
	fmt.Println("  # Feed the daemon from the simulator")
	fmt.Println("  knob-sim -turns 3 > /tmp/knobd.fifo")
	fmt.Println()
}

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		sourceKind  = flag.String("source", "", "Sample source: serial|fifo|file|stdin")
		sourcePath  = flag.String("source-path", "", "Serial device, FIFO or capture file path")
		replayHz    = flag.Int("replay-hz", 0, "Replay pacing for file sources in samples/s (0 = unpaced)")
		recordPath  = flag.String("record", "", "Record every sample to this capture file (.zst compresses)")
		lag         = flag.Int("lag-threshold", 0, "Dead zone in ADC units")
		filter      = flag.String("filter", "", "Dead zone filter: slew (default) or backlash")
		seed        = flag.Bool("seed", false, "Seed the decoder from the first sample")
		baseNote    = flag.Int("base-note", 0, "MIDI note at position zero")
		ipcSocket   = flag.String("ipc-socket", "", "Unix domain socket path for IPC")
		httpListen  = flag.String("http-listen", "", "HTTP listen address for /ws and /healthz (empty disables)")
		logLevelStr = flag.String("log-level", "", "Log level: error, warn, info, debug")
		showVersion = flag.Bool("version", false, "Print version and exit")
		showHelp    = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Only flags given on the command line override the file.
	var o FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "source":
			o.SourceKind = sourceKind
		case "source-path":
			o.SourcePath = sourcePath
		case "replay-hz":
			o.ReplayHz = replayHz
		case "record":
			o.RecordPath = recordPath
		case "lag-threshold":
			o.LagThreshold = lag
		case "filter":
			o.Filter = filter
		case "seed":
			o.Seed = seed
		case "base-note":
			o.BaseNote = baseNote
		case "ipc-socket":
			o.IPCSocketPath = ipcSocket
		case "http-listen":
			o.HTTPListen = httpListen
		case "log-level":
			o.LogLevel = logLevelStr
		}
	})
	o.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	level, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(os.Stdout, level)

	if err := run(cfg, logger); err != nil {
		logger.Error("knobd stopped with error", "error", err)
		os.Exit(1)
	}
}

// run wires the daemon goroutines together and blocks until a signal
// arrives or one of them fails.
func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rcfg := cfg.ToReducerConfig()
	state, err := NewDaemonState(rcfg)
	if err != nil {
		return fmt.Errorf("decoder: %w", err)
	}

	env := &effectEnv{}
	if cfg.Source.RecordPath != "" {
		rec, err := newRecorder(cfg.Source.RecordPath, time.Now())
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				logger.Error("closing capture failed", "error", err)
			}
		}()
		env.recorder = rec
		logger.Info("recording samples", "path", cfg.Source.RecordPath)
	}

	events := make(chan Event, eventQueueSize)
	var broadcasts chan StateBroadcast
	if cfg.HTTP.Listen != "" {
		broadcasts = make(chan StateBroadcast, broadcastQueueSize)
	}
	ws := NewServer(logger, events, ServerConfig{})

	logger.Debug("starting knobd", "version", version, "session_id", ws.SessionID())
	logger.Debug("configuration",
		"source", cfg.Source.Kind,
		"source_path", cfg.Source.Path,
		"range", cfg.Decoder.Range,
		"lag_threshold", cfg.Decoder.LagThreshold,
		"filter", cfg.Decoder.Filter,
		"seed_on_first_sample", cfg.Decoder.SeedOnFirstSample,
		"semitones_per_turn", cfg.Pitch.SemitonesPerTurn,
		"base_note", cfg.Pitch.BaseNote,
		"motion_window_ms", cfg.Motion.WindowMS,
		"tick_hz", cfg.Motion.TickHz,
		"ipc_socket", cfg.IPC.SocketPath,
		"http_listen", cfg.HTTP.Listen)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		runDaemon(ctx, events, env, rcfg, state, cfg.Motion.TickHz, broadcasts, logger)
		return nil
	})
	g.Go(func() error {
		return runIPCServer(ctx, cfg.IPC.SocketPath, events, logger)
	})
	g.Go(func() error {
		return runSource(ctx, cfg.Source, events, logger)
	})

	if cfg.HTTP.Listen != "" {
		g.Go(func() error {
			ws.Hub().Run(ctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(ctx, ws.Hub(), broadcasts, logger)
			return nil
		})
		g.Go(func() error {
			return runHTTPServer(ctx, cfg.HTTP.Listen, newHTTPMux(ws, time.Now()), logger)
		})
	}

	logger.Info("listening", "source", cfg.Source.Kind, "ipc", cfg.IPC.SocketPath, "http", cfg.HTTP.Listen)

	err = g.Wait()
	logger.Info("shutting down")
	return err
}
