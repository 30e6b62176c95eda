package analog

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// DefaultIIODevice is the first industrial-I/O device on Linux.
const DefaultIIODevice = "/sys/bus/iio/devices/iio:device0"

// IIOSource reads an ADC exposed by a Linux IIO driver (ADS1015, MCP3008, ...)
// through its in_voltageN_raw sysfs attributes.
type IIOSource struct {
	dir   string
	scale int

	mu    sync.Mutex
	files map[int]*os.File
}

// NewIIOSource opens the IIO device directory. fullScale is the largest raw
// value of the converter (1023 for 10 bits, 4095 for 12 bits).
func NewIIOSource(dir string, fullScale int) (*IIOSource, error) {
	if dir == "" {
		dir = DefaultIIODevice
	}
	if fullScale <= 0 {
		return nil, fmt.Errorf("iio: invalid full scale %d", fullScale)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open iio device: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open iio device: %s is not a directory", dir)
	}

	return &IIOSource{
		dir:   dir,
		scale: fullScale,
		files: make(map[int]*os.File),
	}, nil
}

// Read returns the raw conversion of one ADC input.
func (s *IIOSource) Read(input int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.file(input)
	if err != nil {
		return 0, err
	}

	// sysfs attributes are re-read from offset 0 on every conversion.
	var buf [32]byte
	n, err := f.ReadAt(buf[:], 0)
	if err != nil && n == 0 {
		return 0, fmt.Errorf("read input %d: %w", input, err)
	}

	v, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	if err != nil {
		return 0, fmt.Errorf("parse input %d: %w", input, err)
	}
	if v < 0 {
		v = 0
	}
	if v > s.scale {
		v = s.scale
	}
	return v, nil
}

func (s *IIOSource) file(input int) (*os.File, error) {
	if f, ok := s.files[input]; ok {
		return f, nil
	}
	path := filepath.Join(s.dir, fmt.Sprintf("in_voltage%d_raw", input))
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input %d: %w", input, err)
	}
	s.files[input] = f
	return f, nil
}

// FullScale returns the converter's largest raw value.
func (s *IIOSource) FullScale() int {
	return s.scale
}

// Close closes every opened attribute file.
func (s *IIOSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for input, f := range s.files {
		if err := f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close input %d: %w", input, err))
		}
	}
	s.files = make(map[int]*os.File)

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
