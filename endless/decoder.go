// Package endless decodes the two analog channels of an endless (no
// end-stop) potentiometer into an unbounded multi-turn position.
//
// Each channel is a triangle wave offset by a quarter turn from the other.
// The decoder filters jitter with a dead zone, classifies the smoothed pair
// into one of four clockwise sectors, counts laps on the 3<->0 wrap and
// blends two linear ramps into a position within the current lap. All
// arithmetic is integer fixed point.
//
// Laps are only detected across adjacent sectors. If the caller samples so
// slowly that a whole sector is skipped, laps are silently under-counted;
// Reading.SectorSkipped reports the condition but does not correct it.
package endless

// Decoder holds the filter, sector and lap state of one knob.
//
// A Decoder is not safe for concurrent use; drive it from a single goroutine.
type Decoder struct {
	geo geometry

	smooth1 int
	smooth2 int

	prevSector Sector
	laps       int
	skipped    bool

	position     int64
	prevPosition int64
}

// Reading is a snapshot of the decoder after the latest update.
type Reading struct {
	Smooth1       int
	Smooth2       int
	Sector        Sector
	Laps          int
	Position      int64
	Delta         int64
	SectorSkipped bool
}

// NewDecoder validates cfg and returns a decoder in its zero state.
func NewDecoder(cfg Config) (*Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Decoder{geo: newGeometry(cfg)}, nil
}

// MustNewDecoder is NewDecoder for configs known to be valid.
func MustNewDecoder(cfg Config) *Decoder {
	d, err := NewDecoder(cfg)
	if err != nil {
		panic(err)
	}
	return d
}

// Update feeds one raw sample pair. It returns false, and leaves the
// position untouched, when neither channel moved beyond the lag threshold.
func (d *Decoder) Update(raw1, raw2 int) bool {
	var changed1, changed2 bool
	d.smooth1, changed1 = follow(d.smooth1, raw1, d.geo.threshold, d.geo.filter)
	d.smooth2, changed2 = follow(d.smooth2, raw2, d.geo.threshold, d.geo.filter)

	if !changed1 && !changed2 {
		d.prevPosition = d.position
		d.skipped = false
		return false
	}

	sector := ClassifySector(d.smooth1, d.smooth2, d.geo.mid)

	switch {
	case d.prevSector == Sector0 && sector == Sector3:
		d.laps--
	case d.prevSector == Sector3 && sector == Sector0:
		d.laps++
	}
	d.skipped = steps(d.prevSector, sector) == 2

	d.prevPosition = d.position
	d.position = int64(d.laps)*int64(d.geo.turn) + int64(d.offset(sector))
	d.prevSector = sector
	return true
}

// Seed places the decoder directly on a sample: the smoothed pair is set to
// the raw values, the lap count is cleared and the delta reads zero.
func (d *Decoder) Seed(raw1, raw2 int) {
	d.smooth1 = raw1
	d.smooth2 = raw2
	d.prevSector = ClassifySector(raw1, raw2, d.geo.mid)
	d.laps = 0
	d.skipped = false
	d.position = int64(d.offset(d.prevSector))
	d.prevPosition = d.position
}

// offset reconstructs the position inside the current lap.
func (d *Decoder) offset(sector Sector) int {
	g := d.geo

	// rampA follows channel 1; it is reflected on the falling half so it
	// grows with clockwise motion.
	rampA := d.smooth1
	if sector == Sector2 || sector == Sector3 {
		rampA = g.turn - rampA
	}

	// rampB follows channel 2, a quarter turn behind channel 1.
	rampB := d.smooth2 - g.mid
	if sector == Sector1 || sector == Sector2 {
		rampB += g.halfTurn
	} else {
		rampB = (g.turn - rampB) & (g.turn - 1)
	}

	// ratio is 0 where channel 1 crosses the midpoint (rampA is steepest)
	// and reaches mid at its extremes, where rampB takes over.
	ratio := d.smooth1 - g.mid
	if ratio < 0 {
		ratio = -ratio
	}
	return (rampA*(g.mid-ratio) + rampB*ratio) >> g.blendShift
}

// Position returns the absolute multi-turn position in turn units.
func (d *Decoder) Position() int64 { return d.position }

// RelativeDelta returns the position change caused by the latest Update.
func (d *Decoder) RelativeDelta() int64 { return d.position - d.prevPosition }

// Laps returns the signed number of completed revolutions.
func (d *Decoder) Laps() int { return d.laps }

// Sector returns the sector of the latest position update.
func (d *Decoder) Sector() Sector { return d.prevSector }

// Smoothed returns the filtered channel values.
func (d *Decoder) Smoothed() (int, int) { return d.smooth1, d.smooth2 }

// TurnUnits returns the number of position units per revolution.
func (d *Decoder) TurnUnits() int { return d.geo.turn }

// Reading returns a snapshot of the current state.
func (d *Decoder) Reading() Reading {
	return Reading{
		Smooth1:       d.smooth1,
		Smooth2:       d.smooth2,
		Sector:        d.prevSector,
		Laps:          d.laps,
		Position:      d.position,
		Delta:         d.RelativeDelta(),
		SectorSkipped: d.skipped,
	}
}
