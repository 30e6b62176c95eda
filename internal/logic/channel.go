package logic

// DefaultBlinkEdges is the minimum number of edges in one window for a
// channel to resolve as blinking. A single edge at a window boundary is
// not a blink.
const DefaultBlinkEdges = 2

// Channel tracks one monitored LED between resolutions.
type Channel struct {
	ID        int
	Name      string
	Threshold int

	// Level is the last sampled light level, kept for diagnostics.
	Level  int
	Signal Signal
	Edges  int

	Resolved Status
	Reported Status

	// Debounce enables the one-cycle absorption of changes.
	Debounce bool
	// armed is set once a change has been absorbed; the next change reports.
	armed bool

	Actuator Actuator
}

// newChannel returns a channel in its startup state.
func newChannel(spec ChannelSpec, threshold int) Channel {
	return Channel{
		ID:        spec.ID,
		Name:      spec.Name,
		Threshold: ClampThreshold(threshold),
		Signal:    SignalHigh,
		Resolved:  StatusUnknown,
		Reported:  StatusUnknown,
		Debounce:  spec.Debounce,
		Actuator:  spec.Actuator,
	}
}

// Update thresholds a light level into the binary signal and counts
// High to Low transitions (one per blink pulse).
func (c *Channel) Update(level int) {
	c.Level = level

	signal := SignalHigh
	if level < c.Threshold {
		signal = SignalLow
	}

	if c.Signal == SignalHigh && signal == SignalLow {
		c.Edges++
	}
	c.Signal = signal
}

// Resolve converts the edges counted since the last resolution and the
// current signal into a status, then resets the edge count.
func (c *Channel) Resolve(blinkEdges int) Status {
	if blinkEdges <= 0 {
		blinkEdges = DefaultBlinkEdges
	}

	var status Status
	switch {
	case c.Edges >= blinkEdges:
		status = StatusBlinking
	case c.Signal == SignalLow:
		status = StatusSteady
	default:
		status = StatusOff
	}

	c.Edges = 0
	c.Resolved = status
	return status
}

// Report decides whether a resolved status is a reportable change.
// On true, Reported has been updated to status.
func (c *Channel) Report(status Status) bool {
	if status == c.Reported {
		return false
	}

	if c.Debounce {
		if !c.armed {
			c.armed = true
			return false
		}
		c.armed = false
	}

	c.Reported = status
	return true
}

// State returns a copy of the channel for status consumers.
func (c *Channel) State() ChannelState {
	return ChannelState{
		ID:        c.ID,
		Name:      c.Name,
		Threshold: c.Threshold,
		Level:     c.Level,
		Signal:    c.Signal,
		Edges:     c.Edges,
		Resolved:  c.Resolved,
		Reported:  c.Reported,
	}
}
