package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/alarm-monitor/alarm-sensor/internal/analog"
	"github.com/alarm-monitor/alarm-sensor/internal/logic"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ------------------------------------------------------------
	// MQTT
	// ------------------------------------------------------------

	if cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}
	if strings.ContainsAny(cfg.MQTT.TopicPrefix, "+#") {
		return fmt.Errorf("mqtt.topic_prefix %q must not contain wildcards", cfg.MQTT.TopicPrefix)
	}
	if cfg.MQTT.Buffer < 0 {
		return fmt.Errorf("mqtt.buffer must not be negative")
	}

	// ------------------------------------------------------------
	// SAMPLING
	// ------------------------------------------------------------

	s := cfg.Sampling
	if s.PollMs < 0 || s.IntervalMs < 0 || s.HeartbeatMs < 0 || s.BlinkEdges < 0 {
		return fmt.Errorf("sampling values must not be negative")
	}
	if s.PollMs > 0 && s.IntervalMs > 0 && s.IntervalMs < s.PollMs {
		return fmt.Errorf("sampling.interval_ms (%d) must be at least poll_ms (%d)", s.IntervalMs, s.PollMs)
	}

	// ------------------------------------------------------------
	// ANALOG
	// ------------------------------------------------------------

	switch cfg.Analog.Driver {
	case analog.DriverIIO, "":
	case analog.DriverModbus:
		ep := cfg.Analog.Modbus.Endpoint
		if !strings.HasPrefix(ep, "tcp://") && !strings.HasPrefix(ep, "rtu://") {
			return fmt.Errorf("analog.modbus.endpoint %q must start with tcp:// or rtu://", ep)
		}
	default:
		return fmt.Errorf("analog.driver %q: want %s or %s", cfg.Analog.Driver, analog.DriverIIO, analog.DriverModbus)
	}
	if cfg.Analog.FullScale < 0 {
		return fmt.Errorf("analog.full_scale must not be negative")
	}

	// ------------------------------------------------------------
	// OUTPUTS
	// ------------------------------------------------------------

	outputs := make(map[string]bool, len(cfg.Outputs))
	lines := make(map[int]string, len(cfg.Outputs))
	for _, o := range cfg.Outputs {
		if o.Name == "" {
			return fmt.Errorf("output on line %d has no name", o.Line)
		}
		if outputs[o.Name] {
			return fmt.Errorf("output %q defined twice", o.Name)
		}
		if o.Line < 0 {
			return fmt.Errorf("output %q: negative line %d", o.Name, o.Line)
		}
		if prev, ok := lines[o.Line]; ok {
			return fmt.Errorf("line %d used by outputs %q and %q", o.Line, prev, o.Name)
		}
		outputs[o.Name] = true
		lines[o.Line] = o.Name
	}

	// ------------------------------------------------------------
	// CHANNELS
	// ------------------------------------------------------------

	if len(cfg.Channels) == 0 {
		return fmt.Errorf("at least one channel is required")
	}

	inputs := make(map[int]int, len(cfg.Channels))
	for i, ch := range cfg.Channels {
		// the detector indexes channels by id
		if ch.ID != i {
			return fmt.Errorf("channel at position %d has id %d: ids must be 0..N-1 in order", i, ch.ID)
		}

		in := ch.ID
		if ch.Input != nil {
			in = *ch.Input
		}
		if in < 0 {
			return fmt.Errorf("channel %d: negative input %d", ch.ID, in)
		}
		if prev, ok := inputs[in]; ok {
			return fmt.Errorf("input %d used by channels %d and %d", in, prev, ch.ID)
		}
		inputs[in] = ch.ID

		if err := validateActuator(ch, outputs); err != nil {
			return err
		}
	}

	// ------------------------------------------------------------
	// LOG
	// ------------------------------------------------------------

	if cfg.Log.Level != "" && hclog.LevelFromString(cfg.Log.Level) == hclog.NoLevel {
		return fmt.Errorf("log.level %q is not a valid level", cfg.Log.Level)
	}

	return nil
}

func validateActuator(ch ChannelConfig, outputs map[string]bool) error {
	a := ch.Actuator
	ref := func(field, name string) error {
		if name == "" {
			return fmt.Errorf("channel %d: actuator.%s is required for kind %q", ch.ID, field, a.Kind)
		}
		if !outputs[name] {
			return fmt.Errorf("channel %d: actuator.%s references unknown output %q", ch.ID, field, name)
		}
		return nil
	}

	switch logic.ActuatorKind(a.Kind) {
	case "", logic.ActuatorNone:
		return nil
	case logic.ActuatorMode:
		if err := ref("full", a.Full); err != nil {
			return err
		}
		if err := ref("partial", a.Partial); err != nil {
			return err
		}
		if a.Full == a.Partial {
			return fmt.Errorf("channel %d: actuator full and partial must differ", ch.ID)
		}
		return nil
	case logic.ActuatorSingle:
		return ref("output", a.Output)
	default:
		return fmt.Errorf("channel %d: unknown actuator kind %q", ch.ID, a.Kind)
	}
}
