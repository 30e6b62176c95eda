package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Ready         bool          `json:"ready"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	LastWindow    string        `json:"last_window,omitempty"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Channels      []ChannelJSON `json:"channels"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ChannelJSON is the JSON representation of one monitored LED.
type ChannelJSON struct {
	ID        int    `json:"id"`
	Name      string `json:"name,omitempty"`
	Status    string `json:"status"`
	Code      int    `json:"code"`
	Threshold int    `json:"threshold"`
	Level     int    `json:"level"`
	Signal    string `json:"signal"`
	Edges     int    `json:"edges"`
	Reports   int    `json:"reports"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs       int64  `json:"poll_ms"`
	IntervalMs   int64  `json:"interval_ms"`
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	BlinkEdges   int    `json:"blink_edges"`
	Broker       string `json:"broker"`
	TopicPrefix  string `json:"topic_prefix"`
	HTTPAddr     string `json:"http_addr"`
	AnalogDriver string `json:"analog_driver"`
}

func buildInner(snap Snapshot) StatusInner {
	channels := make([]ChannelJSON, len(snap.Channels))
	for i, ch := range snap.Channels {
		reports := 0
		if i < len(snap.Reports) {
			reports = snap.Reports[i]
		}
		// Reported is what the collector last saw; Resolved may be
		// an absorbed change on a debounced channel.
		channels[i] = ChannelJSON{
			ID:        ch.ID,
			Name:      ch.Name,
			Status:    ch.Reported.String(),
			Code:      int(ch.Reported),
			Threshold: ch.Threshold,
			Level:     ch.Level,
			Signal:    ch.Signal.String(),
			Edges:     ch.Edges,
			Reports:   reports,
		}
	}

	inner := StatusInner{
		Ready:         snap.Ready,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Channels:      channels,
		Config: ConfigJSON{
			PollMs:       snap.Config.PollMs,
			IntervalMs:   snap.Config.IntervalMs,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			BlinkEdges:   snap.Config.BlinkEdges,
			Broker:       snap.Config.Broker,
			TopicPrefix:  snap.Config.TopicPrefix,
			HTTPAddr:     snap.Config.HTTPAddr,
			AnalogDriver: snap.Config.AnalogDriver,
		},
	}
	if !snap.LastWindow.IsZero() {
		inner.LastWindow = snap.LastWindow.UTC().Format(time.RFC3339)
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
