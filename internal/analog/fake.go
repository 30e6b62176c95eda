package analog

import (
	"errors"
	"fmt"
)

// FakeSource is a test double that returns scripted raw readings.
type FakeSource struct {
	// Frames contains scripted readings, one value per input.
	// Each Read(input) consumes the next frame for that input;
	// once exhausted the last frame repeats.
	Frames [][]int

	// Scale is returned by FullScale. Zero means 1023.
	Scale int

	// cursor tracks the next frame per input
	cursor map[int]int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeSource creates a FakeSource with the given frames.
func NewFakeSource(frames [][]int) *FakeSource {
	return &FakeSource{Frames: frames}
}

// Read returns the next scripted reading for input.
func (f *FakeSource) Read(input int) (int, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}

	if len(f.Frames) == 0 {
		return 0, errors.New("no frames configured")
	}
	if f.cursor == nil {
		f.cursor = make(map[int]int)
	}

	i := f.cursor[input]
	frame := f.Frames[i]
	if input < 0 || input >= len(frame) {
		return 0, fmt.Errorf("input %d not in frame %d", input, i)
	}
	if i < len(f.Frames)-1 {
		f.cursor[input] = i + 1
	}

	return frame[input], nil
}

// FullScale returns the configured scale.
func (f *FakeSource) FullScale() int {
	if f.Scale == 0 {
		return 1023
	}
	return f.Scale
}

// Close marks the source as closed.
func (f *FakeSource) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds every input to the first frame.
func (f *FakeSource) Reset() {
	f.cursor = nil
	f.Closed = false
}
