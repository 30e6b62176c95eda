// Package status provides a thread-safe status tracker for the alarm-sensor daemon.
// It is read by HTTP handlers and by the lifecycle events published to MQTT.
package status

import (
	"sync"
	"time"

	"github.com/alarm-monitor/alarm-sensor/internal/logic"
)

// NetworkInfo contains network state as written by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs       int64
	IntervalMs   int64
	HeartbeatMs  int64
	BlinkEdges   int
	Broker       string
	TopicPrefix  string
	HTTPAddr     string
	AnalogDriver string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type; the slices are copied on the way in and out.
type Snapshot struct {
	Channels      []logic.ChannelState
	Reports       []int // reported changes per channel since startup
	Ready         bool  // at least one window resolved
	LastWindow    time.Time
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets channel states, readiness and report counts.
// Called from runLoop on every tick.
func (t *Tracker) Update(channels []logic.ChannelState, ready bool, reports []int) {
	chs := append([]logic.ChannelState(nil), channels...)
	rep := append([]int(nil), reports...)

	t.mu.Lock()
	t.snap.Channels = chs
	t.snap.Ready = ready
	t.snap.Reports = rep
	t.mu.Unlock()
}

// SetLastWindow records the time of the latest resolution.
func (t *Tracker) SetLastWindow(at time.Time) {
	t.mu.Lock()
	t.snap.LastWindow = at
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Channels = append([]logic.ChannelState(nil), t.snap.Channels...)
	s.Reports = append([]int(nil), t.snap.Reports...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
