// Package logic contains the pure LED classification engine.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Status is the resolved state of a monitored LED.
// The numeric values are the codes sent to the collector.
type Status int

const (
	StatusUnknown  Status = 0
	StatusOff      Status = 1
	StatusBlinking Status = 2
	StatusSteady   Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusOff:
		return "OFF"
	case StatusBlinking:
		return "BLINKING"
	case StatusSteady:
		return "STEADY"
	default:
		return "UNKNOWN"
	}
}

// ParseStatus is the inverse of String. Unrecognized names yield StatusUnknown.
func ParseStatus(s string) Status {
	switch s {
	case "OFF":
		return StatusOff
	case "BLINKING":
		return StatusBlinking
	case "STEADY":
		return StatusSteady
	default:
		return StatusUnknown
	}
}

// Signal is the binary photo-sensor signal after thresholding.
// It follows the sensor's electrical convention: no light reads High (idle),
// light makes the photodiode conduct and reads Low (active).
type Signal bool

const (
	SignalHigh Signal = true
	SignalLow  Signal = false
)

func (s Signal) String() string {
	if s == SignalHigh {
		return "HIGH"
	}
	return "LOW"
}

// Event is a reportable status change of one channel, after debounce.
type Event struct {
	Timestamp time.Time
	Channel   int
	Name      string
	Previous  Status
	Status    Status
	// Writes are the output changes to apply before publishing, in order.
	Writes []OutputWrite
}

// Result is the outcome of resolving one channel at the end of a window.
type Result struct {
	Channel int
	Name    string
	Edges   int
	Signal  Signal
	Status  Status
}

// Window is everything produced by one resolution pass.
type Window struct {
	Time    time.Time
	Results []Result
	Events  []Event
}

// ChannelState is a read-only copy of a channel for status consumers.
type ChannelState struct {
	ID        int
	Name      string
	Threshold int
	Level     int
	Signal    Signal
	Edges     int
	Resolved  Status
	Reported  Status
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Reports   []int
}
