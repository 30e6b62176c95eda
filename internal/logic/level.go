package logic

// DefaultFullScale is the full-scale reading of a 10-bit ADC.
const DefaultFullScale = 1023

// Level converts a raw analog magnitude into a 0-100 light level.
// The reading is inverted: a higher raw magnitude means less light.
// Raw values outside [0, fullScale] saturate.
func Level(raw, fullScale int) int {
	if fullScale <= 0 {
		fullScale = DefaultFullScale
	}
	if raw < 0 {
		raw = 0
	}
	if raw > fullScale {
		raw = fullScale
	}

	// Integer form of (fullScale-raw) / (fullScale/100); raw 0 must map to 100.
	return (fullScale - raw) * 100 / fullScale
}
