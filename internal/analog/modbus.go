package analog

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// ModbusConfig describes an analog input module reachable over Modbus.
type ModbusConfig struct {
	// Endpoint is "tcp://host:port" or "rtu:///dev/ttyUSB0".
	Endpoint string
	UnitID   uint8
	Timeout  time.Duration
	// BaudRate applies to RTU only.
	BaudRate int
	// Register is the input register of input 0; input N reads Register+N.
	Register uint16
	// FullScale is the module's largest raw value.
	FullScale int
}

// registerReader is the subset of modbus.Client used here.
type registerReader interface {
	ReadInputRegisters(address, quantity uint16) ([]byte, error)
}

type connector interface {
	Connect() error
	Close() error
}

// ModbusSource reads one input register per monitored LED.
type ModbusSource struct {
	mu       sync.Mutex
	handler  connector
	client   registerReader
	register uint16
	scale    int
}

// NewModbusSource connects to the module.
func NewModbusSource(cfg ModbusConfig) (*ModbusSource, error) {
	if cfg.FullScale <= 0 {
		return nil, fmt.Errorf("modbus: invalid full scale %d", cfg.FullScale)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}

	var (
		handler connector
		client  modbus.Client
	)
	switch {
	case strings.HasPrefix(cfg.Endpoint, "tcp://"):
		h := modbus.NewTCPClientHandler(strings.TrimPrefix(cfg.Endpoint, "tcp://"))
		h.SlaveId = cfg.UnitID
		h.Timeout = cfg.Timeout
		handler, client = h, modbus.NewClient(h)

	case strings.HasPrefix(cfg.Endpoint, "rtu://"):
		h := modbus.NewRTUClientHandler(strings.TrimPrefix(cfg.Endpoint, "rtu://"))
		h.SlaveId = cfg.UnitID
		h.Timeout = cfg.Timeout
		h.BaudRate = cfg.BaudRate
		if h.BaudRate == 0 {
			h.BaudRate = 9600
		}
		h.DataBits = 8
		h.Parity = "N"
		h.StopBits = 1
		handler, client = h, modbus.NewClient(h)

	default:
		return nil, fmt.Errorf("modbus: unsupported endpoint %q (want tcp:// or rtu://)", cfg.Endpoint)
	}

	if err := handler.Connect(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Endpoint, err)
	}

	return &ModbusSource{
		handler:  handler,
		client:   client,
		register: cfg.Register,
		scale:    cfg.FullScale,
	}, nil
}

// Read returns the raw value of one input register.
func (s *ModbusSource) Read(input int) (int, error) {
	if input < 0 || input > 0xFFFF-int(s.register) {
		return 0, fmt.Errorf("input %d out of register range", input)
	}

	s.mu.Lock()
	data, err := s.client.ReadInputRegisters(s.register+uint16(input), 1)
	s.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("read input %d: %w", input, err)
	}

	return decodeRegister(data, s.scale)
}

// decodeRegister unpacks one big-endian register and saturates it to scale.
func decodeRegister(data []byte, scale int) (int, error) {
	if len(data) < 2 {
		return 0, fmt.Errorf("short register response: %d bytes", len(data))
	}
	v := int(binary.BigEndian.Uint16(data))
	if v > scale {
		v = scale
	}
	return v, nil
}

// FullScale returns the module's largest raw value.
func (s *ModbusSource) FullScale() int {
	return s.scale
}

// Close closes the transport.
func (s *ModbusSource) Close() error {
	if s.handler == nil {
		return nil
	}
	return s.handler.Close()
}
