// Package gpio drives the local indicator outputs with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"fmt"
	"time"

	"github.com/alarm-monitor/alarm-sensor/internal/logic"
)

// Writer drives logical indicator outputs by name.
type Writer interface {
	// Write sets an output to its active or inactive level.
	// Physical polarity is resolved by the implementation.
	Write(output string, active bool) error

	// Outputs returns the configured output names in configuration order.
	Outputs() []string

	// Close releases GPIO resources.
	Close() error
}

// OutputConfig maps a logical output to a GPIO line.
type OutputConfig struct {
	Name      string
	Line      int  // BCM line offset
	ActiveLow bool // active level is electrically low
}

// DefaultChip is the Raspberry Pi header GPIO chip.
const DefaultChip = "gpiochip0"

// Apply performs the writes in order. Every write is attempted; the errors
// are joined.
func Apply(w Writer, writes []logic.OutputWrite) error {
	var errs []error
	for _, wr := range writes {
		if err := w.Write(wr.Output, wr.Active); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("apply errors: %v", errs)
	}
	return nil
}

// LampTest drives each output active then inactive, step apart, leaving
// every output inactive. A step <= 0 only clears the outputs.
func LampTest(w Writer, step time.Duration, sleep func(time.Duration)) error {
	if sleep == nil {
		sleep = time.Sleep
	}

	for _, name := range w.Outputs() {
		if step > 0 {
			if err := w.Write(name, true); err != nil {
				return fmt.Errorf("lamp test %s: %w", name, err)
			}
			sleep(step)
		}
		if err := w.Write(name, false); err != nil {
			return fmt.Errorf("lamp test %s: %w", name, err)
		}
		if step > 0 {
			sleep(step)
		}
	}
	return nil
}
