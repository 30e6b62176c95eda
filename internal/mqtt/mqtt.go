// Package mqtt provides MQTT publishing and threshold commands with
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alarm-monitor/alarm-sensor/internal/logic"
)

// DefaultPrefix is the topic prefix used when none is configured.
const DefaultPrefix = "alarm/sensor"

// DefaultBufferSize is the number of messages held while disconnected.
const DefaultBufferSize = 256

// Topics holds the topic names derived from a prefix.
type Topics struct {
	// Events carries one message per reported status change.
	Events string
	// System carries lifecycle events (STARTUP, SHUTDOWN, HEARTBEAT).
	System string
	// ThresholdFilter matches every per-channel threshold command.
	ThresholdFilter string

	prefix string
}

// NewTopics derives the topics for prefix. An empty prefix selects DefaultPrefix.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Topics{
		Events:          prefix + "/events",
		System:          prefix + "/system",
		ThresholdFilter: prefix + "/threshold/+/set",
		prefix:          prefix,
	}
}

// Threshold returns the command topic for one channel.
func (t Topics) Threshold(channel int) string {
	return fmt.Sprintf("%s/threshold/%d/set", t.prefix, channel)
}

// Prefix returns the prefix the topics were derived from.
func (t Topics) Prefix() string {
	return t.prefix
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a status change to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Alarm AlarmPayload `json:"alarm"`
}

// AlarmPayload contains the status change details.
// Code is the numeric status sent by the legacy collector protocol.
type AlarmPayload struct {
	Timestamp string `json:"timestamp"`
	Channel   int    `json:"channel"`
	Name      string `json:"name,omitempty"`
	Status    string `json:"status"`
	Code      int    `json:"code"`
	Previous  string `json:"previous"`
}

// FormatPayload creates the JSON payload for a status change.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Alarm: AlarmPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Channel:   event.Channel,
			Name:      event.Name,
			Status:    event.Status.String(),
			Code:      int(event.Status),
			Previous:  event.Previous.String(),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
