//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealWriter drives outputs on actual hardware using Linux GPIO character device.
type RealWriter struct {
	chip  *gpiocdev.Chip
	lines map[string]*gpiocdev.Line
	names []string
}

// NewRealWriter requests every configured line as an output, initially inactive.
func NewRealWriter(chipName string, outputs []OutputConfig) (*RealWriter, error) {
	if chipName == "" {
		chipName = DefaultChip
	}
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	w := &RealWriter{
		chip:  chip,
		lines: make(map[string]*gpiocdev.Line, len(outputs)),
	}

	for _, o := range outputs {
		// Logical 0 is inactive; active-low lines are inverted by the kernel.
		opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
		if o.ActiveLow {
			opts = append(opts, gpiocdev.AsActiveLow)
		}

		line, err := chip.RequestLine(o.Line, opts...)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("request %s line %d: %w", o.Name, o.Line, err)
		}
		w.lines[o.Name] = line
		w.names = append(w.names, o.Name)
	}

	return w, nil
}

// Write sets the logical level of an output.
func (w *RealWriter) Write(output string, active bool) error {
	line, ok := w.lines[output]
	if !ok {
		return fmt.Errorf("unknown output %q", output)
	}

	v := 0
	if active {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		return fmt.Errorf("set %s: %w", output, err)
	}
	return nil
}

// Outputs returns the output names in configuration order.
func (w *RealWriter) Outputs() []string {
	return w.names
}

// Close drives every output inactive, then reconfigures the lines to input
// with pull-down (matching Pi boot defaults) before releasing them.
func (w *RealWriter) Close() error {
	var errs []error

	for _, name := range w.names {
		line := w.lines[name]
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear %s: %w", name, err))
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s: %w", name, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	w.lines = nil
	w.names = nil

	if w.chip != nil {
		if err := w.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		w.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
