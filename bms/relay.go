package bms

import (
	"fmt"
	"os"
)

// Relay drives the physical charge-enable output.
type Relay interface {
	Set(on bool) error
}

// GPIORelay writes the value file of an exported sysfs GPIO line.
type GPIORelay struct {
	path string
}

func NewGPIORelay(path string) *GPIORelay {
	return &GPIORelay{path: path}
}

func (r *GPIORelay) Set(on bool) error {
	value := []byte("0")
	if on {
		value = []byte("1")
	}
	if err := os.WriteFile(r.path, value, 0644); err != nil {
		return fmt.Errorf("failed to write relay GPIO %s: %w", r.path, err)
	}
	return nil
}

// LogRelay records transitions without touching hardware. Used when no GPIO
// path is configured, and in tests.
type LogRelay struct {
	logger *Logger
}

func NewLogRelay(logger *Logger) *LogRelay {
	return &LogRelay{logger: logger.WithComponent("Relay")}
}

func (r *LogRelay) Set(on bool) error {
	r.logger.Infof("charge-enable output set to %t (no GPIO configured)", on)
	return nil
}
