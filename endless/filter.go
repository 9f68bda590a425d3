package endless

// follow applies the dead-zone filter to one channel. Differences up to the
// threshold are ignored entirely.
func follow(smoothed, raw, threshold int, mode FilterMode) (int, bool) {
	diff := raw - smoothed
	if diff <= threshold && diff >= -threshold {
		return smoothed, false
	}

	switch mode {
	case FilterBacklash:
		if diff > 0 {
			return raw - threshold, true
		}
		return raw + threshold, true
	default:
		if diff > 0 {
			return smoothed + threshold, true
		}
		return smoothed - threshold, true
	}
}
