//go:build !linux

package gpio

import "errors"

// RealPort is not available on non-Linux platforms.
type RealPort struct{}

// NewRealPort returns an error on non-Linux platforms.
func NewRealPort(lightPin, sensorPin int) (*RealPort, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// SetLevel is not implemented on non-Linux platforms.
func (p *RealPort) SetLevel(on bool) error {
	return errors.New("gpio: not supported")
}

// ReadLevel is not implemented on non-Linux platforms.
func (p *RealPort) ReadLevel() (bool, error) {
	return false, errors.New("gpio: not supported")
}

// ReadTemperature is not implemented on non-Linux platforms.
func (p *RealPort) ReadTemperature() (Reading, error) {
	return Reading{}, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (p *RealPort) Close() error {
	return nil
}
