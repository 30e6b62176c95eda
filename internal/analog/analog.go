// Package analog reads raw light-sensor magnitudes with hardware abstraction.
// Real implementations read a Linux IIO ADC or a Modbus analog input module.
// The fake implementation allows testing without hardware.
package analog

// Source reads raw analog magnitudes, one input per monitored LED.
type Source interface {
	// Read returns the raw magnitude of one input, in [0, FullScale()].
	// Higher means less light.
	Read(input int) (int, error)

	// FullScale returns the largest raw value the source produces.
	FullScale() int

	// Close releases the underlying device.
	Close() error
}

// Driver names accepted in configuration.
const (
	DriverIIO    = "iio"
	DriverModbus = "modbus"
)
