package config

import (
	"strings"

	"github.com/alarm-monitor/alarm-sensor/internal/analog"
	"github.com/alarm-monitor/alarm-sensor/internal/logic"
)

// Normalize fills zero values with defaults and clamps thresholds.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = DefaultClientID
	}
	cfg.MQTT.TopicPrefix = strings.Trim(cfg.MQTT.TopicPrefix, "/")
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.MQTT.Buffer == 0 {
		cfg.MQTT.Buffer = DefaultBuffer
	}

	if cfg.Sampling.PollMs == 0 {
		cfg.Sampling.PollMs = DefaultPollMs
	}
	if cfg.Sampling.IntervalMs == 0 {
		cfg.Sampling.IntervalMs = DefaultIntervalMs
	}
	if cfg.Sampling.BlinkEdges == 0 {
		cfg.Sampling.BlinkEdges = logic.DefaultBlinkEdges
	}

	if cfg.Analog.Driver == "" {
		cfg.Analog.Driver = analog.DriverIIO
	}
	if cfg.Analog.FullScale == 0 {
		cfg.Analog.FullScale = logic.DefaultFullScale
	}
	if cfg.Analog.Modbus.TimeoutMs == 0 {
		cfg.Analog.Modbus.TimeoutMs = DefaultModbusMs
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}

	for i := range cfg.Channels {
		ch := &cfg.Channels[i]
		if ch.Input == nil {
			ch.Input = intPtr(ch.ID)
		}
		if ch.DefaultThreshold == nil {
			ch.DefaultThreshold = intPtr(logic.DefaultThreshold)
		}
		*ch.DefaultThreshold = logic.ClampThreshold(*ch.DefaultThreshold)
		if ch.Actuator.Kind == "" {
			ch.Actuator.Kind = string(logic.ActuatorNone)
		}
	}
}
