// Package sensor provides the temperature poller: a fixed-interval
// sampling loop that turns hardware reads into a stream of readings.
package sensor

import (
	"context"
	"log/slog"
	"time"

	"github.com/sweeney/home-bridge/internal/gpio"
)

// Reading is one sensor sample. Valid is false when the underlying read
// failed, so consumers can tell "no new data" from "zero degrees".
type Reading struct {
	SensorID  string
	Celsius   float64
	Humidity  float64
	SampledAt time.Time
	Valid     bool
}

// Poller samples the sensor on a fixed interval and emits readings.
// A slow consumer never blocks the cadence: the delivery channel holds
// at most one reading and a new one supersedes a still-unconsumed one,
// since only the latest temperature is meaningful.
type Poller struct {
	id       string
	port     gpio.Port
	interval time.Duration
	logger   *slog.Logger
	out      chan Reading
	now      func() time.Time
}

// New creates a poller for the given sensor.
func New(id string, port gpio.Port, interval time.Duration, logger *slog.Logger) *Poller {
	return &Poller{
		id:       id,
		port:     port,
		interval: interval,
		logger:   logger,
		out:      make(chan Reading, 1),
		now:      time.Now,
	}
}

// Readings returns the delivery channel. It is closed when Run returns.
func (p *Poller) Readings() <-chan Reading {
	return p.out
}

// Run loops until ctx is cancelled: wait one interval, read the sensor,
// emit a reading. A failed read marks the reading invalid and the
// cadence continues; the poller never terminates on hardware faults.
func (p *Poller) Run(ctx context.Context) {
	defer close(p.out)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		r := Reading{SensorID: p.id, SampledAt: p.now()}
		raw, err := p.port.ReadTemperature()
		if err != nil {
			p.logger.Warn("sensor read failed", "sensor", p.id, "error", err)
		} else {
			r.Celsius = raw.Celsius
			r.Humidity = raw.Humidity
			r.Valid = true
		}

		p.emit(r)
	}
}

// emit delivers a reading with latest-wins semantics: if the previous
// reading is still unconsumed it is dropped in favor of this one.
func (p *Poller) emit(r Reading) {
	for {
		select {
		case p.out <- r:
			return
		default:
		}
		select {
		case <-p.out:
		default:
		}
	}
}
