//go:build linux

package gpio

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// minReadInterval is the fastest the DHT22 supports being sampled.
// Reads attempted sooner fail with ErrTooSoon instead of touching the
// sensor, which would otherwise return garbage.
const minReadInterval = 2 * time.Second

// RealPort drives actual hardware through the Linux GPIO character device.
type RealPort struct {
	chip      *gpiocdev.Chip
	lightPin  int
	sensorPin int
	light     *gpiocdev.Line
	sensor    *gpiocdev.Line
	level     bool
	lastRead  time.Time
}

// NewRealPort opens gpiochip0 and claims the light pin as an output
// (initially low) and the sensor pin for DHT22 access.
func NewRealPort(lightPin, sensorPin int) (*RealPort, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	light, err := chip.RequestLine(lightPin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request light pin %d: %w", lightPin, err)
	}

	// The DHT22 line idles as input; each read reconfigures it to send
	// the start signal and back again.
	sensor, err := chip.RequestLine(sensorPin, gpiocdev.AsInput)
	if err != nil {
		light.Close()
		chip.Close()
		return nil, fmt.Errorf("request sensor pin %d: %w", sensorPin, err)
	}

	return &RealPort{
		chip:      chip,
		lightPin:  lightPin,
		sensorPin: sensorPin,
		light:     light,
		sensor:    sensor,
	}, nil
}

// SetLevel drives the light pin.
func (p *RealPort) SetLevel(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := p.light.SetValue(v); err != nil {
		return newFault("set level", p.lightPin, err)
	}
	p.level = on
	return nil
}

// ReadLevel returns the light pin's current level.
func (p *RealPort) ReadLevel() (bool, error) {
	v, err := p.light.Value()
	if err != nil {
		return false, newFault("read level", p.lightPin, err)
	}
	return v == 1, nil
}

// ReadTemperature performs a DHT22 read: send the start signal, then
// poll the line for the 41 low/high pulse pairs of the answer frame.
// Bit-banging from userspace fails a fair share of the time; callers
// must treat failures as transient.
func (p *RealPort) ReadTemperature() (Reading, error) {
	now := time.Now()
	if !p.lastRead.IsZero() && now.Sub(p.lastRead) < minReadInterval {
		return Reading{}, newFault("read dht22", p.sensorPin, ErrTooSoon)
	}
	p.lastRead = now

	// Start signal: hold high, pull low for 20ms, then release.
	if err := p.sensor.Reconfigure(gpiocdev.AsOutput(1)); err != nil {
		return Reading{}, newFault("read dht22", p.sensorPin, err)
	}
	time.Sleep(500 * time.Millisecond)
	if err := p.sensor.SetValue(0); err != nil {
		return Reading{}, newFault("read dht22", p.sensorPin, err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := p.sensor.Reconfigure(gpiocdev.AsInput); err != nil {
		return Reading{}, newFault("read dht22", p.sensorPin, err)
	}

	pulses, err := p.capturePulses()
	if err != nil {
		return Reading{}, newFault("read dht22", p.sensorPin, err)
	}

	reading, err := decodePulses(pulses)
	if err != nil {
		return Reading{}, newFault("read dht22", p.sensorPin, err)
	}
	return reading, nil
}

// capturePulses busy-polls the sensor line, counting loop iterations per
// low/high pulse. Counts are proportional to pulse width, which is all
// the decoder needs.
func (p *RealPort) capturePulses() ([dhtPulses * 2]int, error) {
	var pulses [dhtPulses * 2]int

	// The line is briefly high right after the start signal; wait out
	// that tail before counting.
	count := 0
	for {
		v, err := p.sensor.Value()
		if err != nil {
			return pulses, err
		}
		if v == 0 {
			break
		}
		count++
		if count > maxPulseCount {
			return pulses, ErrTimeout
		}
	}

	for pair := 0; pair < dhtPulses; pair++ {
		i := pair * 2

		for {
			v, err := p.sensor.Value()
			if err != nil {
				return pulses, err
			}
			if v != 0 {
				break
			}
			pulses[i]++
			if pulses[i] > maxPulseCount {
				return pulses, ErrTimeout
			}
		}

		for {
			v, err := p.sensor.Value()
			if err != nil {
				return pulses, err
			}
			if v == 0 {
				break
			}
			pulses[i+1]++
			if pulses[i+1] > maxPulseCount {
				return pulses, ErrTimeout
			}
		}
	}

	return pulses, nil
}

// Close releases GPIO resources, leaving the light pin at its
// last-commanded level. GPIO levels persist independent of the process.
func (p *RealPort) Close() error {
	var errs []error

	if p.sensor != nil {
		if err := p.sensor.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure sensor pin: %w", err))
		}
		if err := p.sensor.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sensor pin: %w", err))
		}
	}
	if p.light != nil {
		if err := p.light.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close light pin: %w", err))
		}
	}
	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
