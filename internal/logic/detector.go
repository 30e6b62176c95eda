package logic

import (
	"errors"
	"time"
)

// DefaultInterval is the length of one observation window.
const DefaultInterval = 5 * time.Second

// ErrUnknownChannel is returned for a channel id outside 0..N-1.
var ErrUnknownChannel = errors.New("unknown channel")

// ChannelSpec describes a channel at construction time.
type ChannelSpec struct {
	ID       int
	Name     string
	Debounce bool
	Actuator Actuator
}

// Options tunes the detector. Zero values select the defaults.
type Options struct {
	Interval   time.Duration
	BlinkEdges int
	FullScale  int
}

// Detector owns every channel and runs the sample/resolve/report cycle.
// It is not safe for concurrent use: all calls must come from the control loop.
type Detector struct {
	channels   []Channel
	interval   time.Duration
	blinkEdges int
	fullScale  int

	next          time.Time
	ready         bool
	startTime     time.Time
	lastHeartbeat time.Time
	reports       []int
}

// NewDetector creates a detector for the given channels. Channel ids must be
// 0..N-1 in order. thresholds holds restored values by channel id; channels
// without an entry start at DefaultThreshold. Every threshold is clamped.
func NewDetector(specs []ChannelSpec, thresholds map[int]int, opts Options, startTime time.Time) *Detector {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.BlinkEdges <= 0 {
		opts.BlinkEdges = DefaultBlinkEdges
	}
	if opts.FullScale <= 0 {
		opts.FullScale = DefaultFullScale
	}

	channels := make([]Channel, len(specs))
	for i, spec := range specs {
		threshold, ok := thresholds[spec.ID]
		if !ok {
			threshold = DefaultThreshold
		}
		channels[i] = newChannel(spec, threshold)
	}

	return &Detector{
		channels:      channels,
		interval:      opts.Interval,
		blinkEdges:    opts.BlinkEdges,
		fullScale:     opts.FullScale,
		next:          startTime.Add(opts.Interval),
		startTime:     startTime,
		lastHeartbeat: startTime,
		reports:       make([]int, len(specs)),
	}
}

// Len returns the number of channels.
func (d *Detector) Len() int {
	return len(d.channels)
}

// Sample feeds one raw analog reading for a channel into its edge counter.
// Unknown channel ids are ignored.
func (d *Detector) Sample(id, raw int) {
	if id < 0 || id >= len(d.channels) {
		return
	}
	d.channels[id].Update(Level(raw, d.fullScale))
}

// Tick feeds one raw reading per channel, indexed by channel id.
func (d *Detector) Tick(raw []int) {
	for id, r := range raw {
		d.Sample(id, r)
	}
}

// MaybeResolve resolves all channels if the current window has elapsed.
// Windows follow a fixed cadence from startTime; if the loop fell more than
// one interval behind, the cadence restarts from now.
func (d *Detector) MaybeResolve(now time.Time) (Window, bool) {
	if now.Before(d.next) {
		return Window{}, false
	}

	d.next = d.next.Add(d.interval)
	if !now.Before(d.next) {
		d.next = now.Add(d.interval)
	}

	return d.Resolve(now), true
}

// Resolve closes the current window immediately: every channel is
// resolved, compared with its last reported status and reset.
func (d *Detector) Resolve(now time.Time) Window {
	w := Window{
		Time:    now,
		Results: make([]Result, 0, len(d.channels)),
	}

	for i := range d.channels {
		ch := &d.channels[i]

		edges := ch.Edges
		status := ch.Resolve(d.blinkEdges)
		w.Results = append(w.Results, Result{
			Channel: ch.ID,
			Name:    ch.Name,
			Edges:   edges,
			Signal:  ch.Signal,
			Status:  status,
		})

		previous := ch.Reported
		if !ch.Report(status) {
			continue
		}

		d.reports[i]++
		w.Events = append(w.Events, Event{
			Timestamp: now,
			Channel:   ch.ID,
			Name:      ch.Name,
			Previous:  previous,
			Status:    status,
			Writes:    ch.Actuator.Actuate(status),
		})
	}

	d.ready = true
	return w
}

// SetThreshold clamps and applies a new threshold for a channel.
// Edge count and statuses are left untouched. Returns the applied value.
func (d *Detector) SetThreshold(id, threshold int) (int, error) {
	if id < 0 || id >= len(d.channels) {
		return 0, ErrUnknownChannel
	}
	v := ClampThreshold(threshold)
	d.channels[id].Threshold = v
	return v, nil
}

// Threshold returns the current threshold of a channel.
func (d *Detector) Threshold(id int) (int, error) {
	if id < 0 || id >= len(d.channels) {
		return 0, ErrUnknownChannel
	}
	return d.channels[id].Threshold, nil
}

// Channels returns copies of every channel.
func (d *Detector) Channels() []ChannelState {
	out := make([]ChannelState, len(d.channels))
	for i := range d.channels {
		out[i] = d.channels[i].State()
	}
	return out
}

// IsReady reports whether at least one window has been resolved.
func (d *Detector) IsReady() bool {
	return d.ready
}

// ReportCounts returns the number of reported changes per channel since startup.
func (d *Detector) ReportCounts() []int {
	out := make([]int, len(d.reports))
	copy(out, d.reports)
	return out
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil before the first resolution, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !d.ready {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Reports:   d.ReportCounts(),
	}
}
