// Package config loads the daemon configuration from YAML.
package config

import (
	"time"

	"github.com/alarm-monitor/alarm-sensor/internal/analog"
	"github.com/alarm-monitor/alarm-sensor/internal/gpio"
	"github.com/alarm-monitor/alarm-sensor/internal/logic"
)

type Config struct {
	MQTT     MQTTConfig      `yaml:"mqtt"`
	Sampling SamplingConfig  `yaml:"sampling"`
	Analog   AnalogConfig    `yaml:"analog"`
	GPIO     GPIOConfig      `yaml:"gpio"`
	Outputs  []OutputConfig  `yaml:"outputs"`
	Channels []ChannelConfig `yaml:"channels"`
	Store    StoreConfig     `yaml:"store"`
	HTTP     HTTPConfig      `yaml:"http"`
	Log      LogConfig       `yaml:"log"`
}

// ---- MQTT ----

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	Buffer      int    `yaml:"buffer"`
}

// ---- SAMPLING ----

type SamplingConfig struct {
	PollMs      int `yaml:"poll_ms"`
	IntervalMs  int `yaml:"interval_ms"`
	BlinkEdges  int `yaml:"blink_edges"`
	HeartbeatMs int `yaml:"heartbeat_ms"` // 0 disables
}

// ---- ANALOG ----

type AnalogConfig struct {
	Driver    string       `yaml:"driver"` // iio | modbus
	FullScale int          `yaml:"full_scale"`
	IIO       IIOConfig    `yaml:"iio"`
	Modbus    ModbusConfig `yaml:"modbus"`
}

type IIOConfig struct {
	Device string `yaml:"device"`
}

type ModbusConfig struct {
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	TimeoutMs int    `yaml:"timeout_ms"`
	BaudRate  int    `yaml:"baud_rate"`
	Register  uint16 `yaml:"register"`
}

// ---- GPIO ----

type GPIOConfig struct {
	Chip       string `yaml:"chip"`
	LampTestMs int    `yaml:"lamp_test_ms"` // 0 disables
}

type OutputConfig struct {
	Name      string `yaml:"name"`
	Line      int    `yaml:"line"`
	ActiveLow bool   `yaml:"active_low"`
}

// ---- CHANNELS ----

type ChannelConfig struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
	// Input is the analog input index; defaults to ID.
	Input *int `yaml:"input"`
	// DefaultThreshold applies until a threshold is stored; defaults to 70.
	DefaultThreshold *int           `yaml:"default_threshold"`
	Debounce         bool           `yaml:"debounce"`
	Actuator         ActuatorConfig `yaml:"actuator"`
}

type ActuatorConfig struct {
	Kind    string `yaml:"kind"` // none | mode | single
	Full    string `yaml:"full"`
	Partial string `yaml:"partial"`
	Output  string `yaml:"output"`
}

// ---- MISC ----

type StoreConfig struct {
	Path string `yaml:"path"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Poll returns the sampling period.
func (c *Config) Poll() time.Duration {
	return time.Duration(c.Sampling.PollMs) * time.Millisecond
}

// Interval returns the observation window length.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Sampling.IntervalMs) * time.Millisecond
}

// Heartbeat returns the heartbeat period; zero means disabled.
func (c *Config) Heartbeat() time.Duration {
	return time.Duration(c.Sampling.HeartbeatMs) * time.Millisecond
}

// LampTestStep returns the per-output lamp test duration.
func (c *Config) LampTestStep() time.Duration {
	return time.Duration(c.GPIO.LampTestMs) * time.Millisecond
}

// DetectorOptions returns the detector tuning.
func (c *Config) DetectorOptions(fullScale int) logic.Options {
	return logic.Options{
		Interval:   c.Interval(),
		BlinkEdges: c.Sampling.BlinkEdges,
		FullScale:  fullScale,
	}
}

// ChannelSpecs converts the channel table for the detector.
// Must be called on a normalized config.
func (c *Config) ChannelSpecs() []logic.ChannelSpec {
	specs := make([]logic.ChannelSpec, len(c.Channels))
	for i, ch := range c.Channels {
		specs[i] = logic.ChannelSpec{
			ID:       ch.ID,
			Name:     ch.Name,
			Debounce: ch.Debounce,
			Actuator: logic.Actuator{
				Kind:    logic.ActuatorKind(ch.Actuator.Kind),
				Full:    ch.Actuator.Full,
				Partial: ch.Actuator.Partial,
				Output:  ch.Actuator.Output,
			},
		}
	}
	return specs
}

// ChannelIDs returns the channel ids in order.
func (c *Config) ChannelIDs() []int {
	ids := make([]int, len(c.Channels))
	for i, ch := range c.Channels {
		ids[i] = ch.ID
	}
	return ids
}

// Inputs returns the analog input index of every channel, by channel id.
func (c *Config) Inputs() []int {
	in := make([]int, len(c.Channels))
	for i, ch := range c.Channels {
		in[i] = ch.ID
		if ch.Input != nil {
			in[i] = *ch.Input
		}
	}
	return in
}

// Thresholds merges stored thresholds over the configured defaults.
func (c *Config) Thresholds(stored map[int]int) map[int]int {
	out := make(map[int]int, len(c.Channels))
	for _, ch := range c.Channels {
		v := logic.DefaultThreshold
		if ch.DefaultThreshold != nil {
			v = *ch.DefaultThreshold
		}
		if s, ok := stored[ch.ID]; ok {
			v = s
		}
		out[ch.ID] = v
	}
	return out
}

// GPIOOutputs converts the output table for the gpio writer.
func (c *Config) GPIOOutputs() []gpio.OutputConfig {
	out := make([]gpio.OutputConfig, len(c.Outputs))
	for i, o := range c.Outputs {
		out[i] = gpio.OutputConfig{Name: o.Name, Line: o.Line, ActiveLow: o.ActiveLow}
	}
	return out
}

// ModbusSource converts the modbus section for the analog driver.
func (c *Config) ModbusSource() analog.ModbusConfig {
	m := c.Analog.Modbus
	return analog.ModbusConfig{
		Endpoint:  m.Endpoint,
		UnitID:    m.UnitID,
		Timeout:   time.Duration(m.TimeoutMs) * time.Millisecond,
		BaudRate:  m.BaudRate,
		Register:  m.Register,
		FullScale: c.Analog.FullScale,
	}
}
