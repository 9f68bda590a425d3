package endless

import (
	"errors"
	"fmt"
	"math/bits"
)

// Fixed-point convention used by default.
//
// A 12-bit ADC delivers samples in [0, Range). Each channel of an endless
// potentiometer is a triangle wave that rises over half a turn and falls over
// the other half, so one full revolution spans 2*Range turn units.
const (
	Range        = 4096
	Midpoint     = Range / 2
	TurnUnits    = 2 * Range
	LagThreshold = 10
)

var (
	// ErrInvalidRange is returned when Config.Range is not a power of two >= 8.
	ErrInvalidRange = errors.New("range must be a power of two >= 8")

	// ErrInvalidThreshold is returned for a negative lag threshold.
	ErrInvalidThreshold = errors.New("lag threshold must be >= 0")
)

// FilterMode selects how the smoothed value follows the raw sample once the
// difference exceeds the lag threshold.
type FilterMode string

const (
	// FilterSlew moves the smoothed value by exactly the lag threshold per
	// update, limiting how fast it can follow large jumps. A jump of n units
	// takes about n/threshold updates to settle. This is the default.
	FilterSlew FilterMode = "slew"

	// FilterBacklash moves the smoothed value to trail the raw sample by
	// exactly the lag threshold, like mechanical backlash. Any jump settles
	// in a single update.
	FilterBacklash FilterMode = "backlash"
)

// Config describes the numeric convention of one decoder. Zero fields take
// the defaults from DefaultConfig, so the filter is FilterSlew unless
// FilterBacklash is asked for.
type Config struct {
	Range        int
	LagThreshold int
	Filter       FilterMode
}

// DefaultConfig returns the 12-bit convention with a 10 unit dead zone and
// the slew filter.
func DefaultConfig() Config {
	return Config{
		Range:        Range,
		LagThreshold: LagThreshold,
		Filter:       FilterSlew,
	}
}

// withDefaults fills zero fields. LagThreshold 0 is kept only if the whole
// config is non-zero, so Config{} still means "defaults".
func (c Config) withDefaults() Config {
	if c == (Config{}) {
		return DefaultConfig()
	}
	if c.Range == 0 {
		c.Range = Range
	}
	if c.Filter == "" {
		c.Filter = FilterSlew
	}
	return c
}

// Validate reports whether the config can drive a decoder.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.Range < 8 || bits.OnesCount(uint(c.Range)) != 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidRange, c.Range)
	}
	if c.LagThreshold < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidThreshold, c.LagThreshold)
	}
	switch c.Filter {
	case FilterSlew:
		if c.LagThreshold == 0 {
			return fmt.Errorf("%w: slew filter needs a step > 0", ErrInvalidThreshold)
		}
	case FilterBacklash:
	default:
		return fmt.Errorf("unknown filter mode %q", c.Filter)
	}
	return nil
}

// Midpoint is the classification threshold for this config.
func (c Config) Midpoint() int { return c.withDefaults().Range / 2 }

// TurnUnits is the number of position units in one revolution.
func (c Config) TurnUnits() int { return 2 * c.withDefaults().Range }

// geometry holds the derived constants used on every update.
type geometry struct {
	mid        int
	turn       int
	halfTurn   int
	blendShift uint
	threshold  int
	filter     FilterMode
}

func newGeometry(c Config) geometry {
	c = c.withDefaults()
	mid := c.Range / 2
	return geometry{
		mid:        mid,
		turn:       2 * c.Range,
		halfTurn:   c.Range,
		blendShift: uint(bits.TrailingZeros(uint(mid))),
		threshold:  c.LagThreshold,
		filter:     c.Filter,
	}
}
