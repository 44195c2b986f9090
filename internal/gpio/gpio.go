// Package gpio provides GPIO access with hardware abstraction.
// The real implementation uses the Linux GPIO character device to drive
// the light pin and bit-bang a DHT22 sensor.
// The fake implementation allows testing without hardware.
package gpio

import (
	"errors"
	"fmt"
)

// Port is the hardware capability surface for one light output pin and
// one DHT22 sensor pin. All failures are *Fault values.
type Port interface {
	// SetLevel drives the light pin high (true) or low (false).
	SetLevel(on bool) error

	// ReadLevel returns the current logical level of the light pin.
	ReadLevel() (bool, error)

	// ReadTemperature samples the DHT22 and returns the reading.
	ReadTemperature() (Reading, error)

	// Close releases GPIO resources.
	Close() error
}

// Reading is a single DHT22 sample. The sensor always reports both
// temperature and relative humidity.
type Reading struct {
	Celsius  float64
	Humidity float64
}

// Pin defaults (BCM numbering).
const (
	DefaultPinLight  = 17
	DefaultPinSensor = 4
)

// Sentinel causes for sensor read failures.
var (
	// ErrTimeout means the sensor did not answer within the pulse polling limit.
	ErrTimeout = errors.New("read timeout")

	// ErrChecksum means the DHT22 frame failed its checksum.
	ErrChecksum = errors.New("checksum mismatch")

	// ErrTooSoon means a read was attempted before the sensor's minimum
	// sampling interval elapsed.
	ErrTooSoon = errors.New("read attempted too soon")
)

// Fault is a hardware failure tied to one pin. It is always local to
// the device or sensor involved and never fatal to the caller.
type Fault struct {
	Op  string // "set level", "read level", "read dht22"
	Pin int
	Err error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("gpio: %s (pin %d): %v", f.Op, f.Pin, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

func newFault(op string, pin int, err error) *Fault {
	return &Fault{Op: op, Pin: pin, Err: err}
}
