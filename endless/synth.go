package endless

// Synthesize returns the ideal channel pair for a knob at angle (in turn
// units, any sign). Channel 1 is a triangle wave peaking at half a turn and
// channel 2 lags it by a quarter turn. Peaks are clamped to Range-1 as a
// real ADC would.
func Synthesize(cfg Config, angle int) (raw1, raw2 int) {
	g := newGeometry(cfg)
	return triangle(g, angle), triangle(g, angle-g.mid)
}

func triangle(g geometry, angle int) int {
	a := angle & (g.turn - 1)
	if a >= g.halfTurn {
		a = g.turn - a
	}
	if a > g.halfTurn-1 {
		a = g.halfTurn - 1
	}
	return a
}
