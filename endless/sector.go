package endless

import "strconv"

// Sector is one quadrant of the (smooth1, smooth2) plane, numbered so that
// increasing values follow clockwise rotation.
type Sector uint8

const (
	Sector0 Sector = iota
	Sector1
	Sector2
	Sector3
)

// clockwise maps the binary quadrant index (b1 | b2<<1) to the clockwise
// sector order. Entries 2 and 3 are swapped: (b1=0,b2=1) follows (1,1).
var clockwise = [4]Sector{
	0b00: Sector0,
	0b01: Sector1,
	0b10: Sector3,
	0b11: Sector2,
}

// ClassifySector returns the clockwise sector of a smoothed pair. A channel
// counts as high only when strictly above the midpoint.
func ClassifySector(smooth1, smooth2, midpoint int) Sector {
	var idx uint8
	if smooth1 > midpoint {
		idx |= 0b01
	}
	if smooth2 > midpoint {
		idx |= 0b10
	}
	return clockwise[idx]
}

// steps returns how many sectors clockwise cur lies from prev, in [0, 3].
func steps(prev, cur Sector) int {
	return int(cur-prev) & 3
}

func (s Sector) String() string {
	return "sector" + strconv.Itoa(int(s))
}
