package logic

const (
	MinThreshold = 0
	MaxThreshold = 99

	// DefaultThreshold is used for channels with nothing stored yet.
	DefaultThreshold = 70
)

// ClampThreshold bounds an externally supplied threshold to [0, 99].
func ClampThreshold(v int) int {
	if v < MinThreshold {
		return MinThreshold
	}
	if v > MaxThreshold {
		return MaxThreshold
	}
	return v
}
