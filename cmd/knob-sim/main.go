package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"endlessknob/capture"
	"endlessknob/endless"
)

// knob-sim writes the ideal two-channel samples of a turning endless
// potentiometer, optionally with noise, in the knobd capture format.

type simConfig struct {
	Turns        float64
	StepsPerTurn int
	Start        int
	Noise        int
	Range        int
	Seed         uint64
}

func main() {
	var (
		turns   = flag.Float64("turns", 1, "Revolutions to turn; negative turns counter-clockwise")
		steps   = flag.Int("steps-per-turn", 256, "Samples per revolution")
		start   = flag.Int("start", 0, "Starting angle in turn units")
		noise   = flag.Int("noise", 0, "Uniform noise amplitude in ADC units")
		adc     = flag.Int("range", endless.Range, "ADC range (power of two)")
		seed    = flag.Uint64("seed", 1, "Noise seed")
		rate    = flag.Int("rate", 0, "Samples per second (0 = as fast as possible)")
		outPath = flag.String("out", "", "Output path; .zst compresses, a FIFO streams (default stdout)")
	)
	flag.Parse()

	cfg := simConfig{
		Turns:        *turns,
		StepsPerTurn: *steps,
		Start:        *start,
		Noise:        *noise,
		Range:        *adc,
		Seed:         *seed,
	}

	if err := run(cfg, *rate, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg simConfig, rate int, outPath string) (err error) {
	var out io.Writer = os.Stdout
	if outPath != "" {
		f, cerr := capture.Create(outPath)
		if cerr != nil {
			return cerr
		}
		// Closing finishes the zstd frame, so its error matters.
		defer func() { err = errors.Join(err, f.Close()) }()
		out = f
	}

	w := capture.NewWriter(out)
	if err := w.Comment(fmt.Sprintf("knob-sim turns=%g steps_per_turn=%d noise=%d", cfg.Turns, cfg.StepsPerTurn, cfg.Noise)); err != nil {
		return err
	}

	var pace <-chan time.Time
	if rate > 0 {
		t := time.NewTicker(time.Second / time.Duration(rate))
		defer t.Stop()
		pace = t.C
	}

	err = simulate(cfg, func(s capture.Sample) error {
		if err := w.Write(s); err != nil {
			return err
		}
		if pace == nil {
			return nil
		}
		// Paced output streams each sample as it is produced.
		<-pace
		return w.Flush()
	})
	if err != nil {
		return err
	}
	return w.Flush()
}

// simulate emits the samples of cfg in order.
func simulate(cfg simConfig, emit func(capture.Sample) error) error {
	dcfg := endless.Config{Range: cfg.Range, LagThreshold: endless.LagThreshold}
	if err := dcfg.Validate(); err != nil {
		return err
	}
	if cfg.StepsPerTurn <= 0 {
		return errors.New("steps-per-turn must be > 0")
	}
	if cfg.Noise < 0 {
		return errors.New("noise must be >= 0")
	}

	turnUnits := dcfg.TurnUnits()
	total := int(cfg.Turns * float64(cfg.StepsPerTurn))
	dir := 1
	if total < 0 {
		total, dir = -total, -1
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	jitter := func(v int) int {
		if cfg.Noise == 0 {
			return v
		}
		v += rng.IntN(2*cfg.Noise+1) - cfg.Noise
		return min(max(v, 0), cfg.Range-1)
	}

	for i := 0; i <= total; i++ {
		angle := cfg.Start + dir*i*turnUnits/cfg.StepsPerTurn
		raw1, raw2 := endless.Synthesize(dcfg, angle)
		if err := emit(capture.Sample{Raw1: jitter(raw1), Raw2: jitter(raw2)}); err != nil {
			return err
		}
	}
	return nil
}
