package gpio

import "fmt"

// FakeWriter is a test double that records output writes.
type FakeWriter struct {
	// Names are the outputs the fake accepts, in order.
	Names []string

	// Writes contains every write in call order.
	Writes []Write

	// State holds the last level written per output.
	State map[string]bool

	// Closed tracks if Close was called
	Closed bool

	// WriteError, if set, will be returned by Write()
	WriteError error
}

// Write is a single recorded write.
type Write struct {
	Output string
	Active bool
}

// NewFakeWriter creates a FakeWriter accepting the given outputs.
func NewFakeWriter(names ...string) *FakeWriter {
	return &FakeWriter{
		Names: names,
		State: make(map[string]bool),
	}
}

// Write records the write.
func (f *FakeWriter) Write(output string, active bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	if !f.known(output) {
		return fmt.Errorf("unknown output %q", output)
	}

	f.Writes = append(f.Writes, Write{Output: output, Active: active})
	f.State[output] = active
	return nil
}

func (f *FakeWriter) known(output string) bool {
	for _, n := range f.Names {
		if n == output {
			return true
		}
	}
	return false
}

// Outputs returns the accepted output names.
func (f *FakeWriter) Outputs() []string {
	return f.Names
}

// Active returns the outputs currently driven active.
func (f *FakeWriter) Active() []string {
	var out []string
	for _, n := range f.Names {
		if f.State[n] {
			out = append(out, n)
		}
	}
	return out
}

// Close marks the writer as closed.
func (f *FakeWriter) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded writes and state.
func (f *FakeWriter) Reset() {
	f.Writes = nil
	f.State = make(map[string]bool)
	f.Closed = false
	f.WriteError = nil
}
