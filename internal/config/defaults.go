package config

import (
	"github.com/alarm-monitor/alarm-sensor/internal/analog"
	"github.com/alarm-monitor/alarm-sensor/internal/gpio"
	"github.com/alarm-monitor/alarm-sensor/internal/logic"
	"github.com/alarm-monitor/alarm-sensor/internal/store"
)

// Defaults for the reference panel interface.
const (
	DefaultBroker      = "tcp://192.168.1.200:1883"
	DefaultClientID    = "alarm-sensor"
	DefaultTopicPrefix = "alarm/sensor"
	DefaultBuffer      = 256
	DefaultPollMs      = 5
	DefaultIntervalMs  = 5000
	DefaultHeartbeatMs = 15 * 60 * 1000
	DefaultLampTestMs  = 100
	DefaultHTTPAddr    = ":80"
	DefaultLogLevel    = "info"
	DefaultModbusMs    = 1000
)

func intPtr(v int) *int { return &v }

// Default returns the configuration of the reference hardware: four sensed
// LEDs on inputs 0-3, a mode pair (active-low) for the operation LED and one
// active-high indicator for each of the other three.
func Default() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker:      DefaultBroker,
			ClientID:    DefaultClientID,
			TopicPrefix: DefaultTopicPrefix,
			Buffer:      DefaultBuffer,
		},
		Sampling: SamplingConfig{
			PollMs:      DefaultPollMs,
			IntervalMs:  DefaultIntervalMs,
			BlinkEdges:  logic.DefaultBlinkEdges,
			HeartbeatMs: DefaultHeartbeatMs,
		},
		Analog: AnalogConfig{
			Driver:    analog.DriverIIO,
			FullScale: logic.DefaultFullScale,
			IIO:       IIOConfig{Device: analog.DefaultIIODevice},
			Modbus:    ModbusConfig{TimeoutMs: DefaultModbusMs},
		},
		GPIO: GPIOConfig{
			Chip:       gpio.DefaultChip,
			LampTestMs: DefaultLampTestMs,
		},
		Outputs: []OutputConfig{
			{Name: "mode_full", Line: 8, ActiveLow: true},
			{Name: "mode_partial", Line: 7, ActiveLow: true},
			{Name: "trigger", Line: 3},
			{Name: "bell", Line: 4},
			{Name: "maintenance", Line: 5},
		},
		Channels: []ChannelConfig{
			{
				ID: 0, Name: "operation", Input: intPtr(0), DefaultThreshold: intPtr(logic.DefaultThreshold),
				Debounce: true,
				Actuator: ActuatorConfig{Kind: string(logic.ActuatorMode), Full: "mode_full", Partial: "mode_partial"},
			},
			{
				ID: 1, Name: "trigger", Input: intPtr(1), DefaultThreshold: intPtr(logic.DefaultThreshold),
				Actuator: ActuatorConfig{Kind: string(logic.ActuatorSingle), Output: "trigger"},
			},
			{
				ID: 2, Name: "bell", Input: intPtr(2), DefaultThreshold: intPtr(logic.DefaultThreshold),
				Actuator: ActuatorConfig{Kind: string(logic.ActuatorSingle), Output: "bell"},
			},
			{
				ID: 3, Name: "maintenance", Input: intPtr(3), DefaultThreshold: intPtr(logic.DefaultThreshold),
				Actuator: ActuatorConfig{Kind: string(logic.ActuatorSingle), Output: "maintenance"},
			},
		},
		Store: StoreConfig{Path: store.DefaultPath},
		HTTP:  HTTPConfig{Addr: DefaultHTTPAddr},
		Log:   LogConfig{Level: DefaultLogLevel},
	}
}
