package device

import (
	"time"

	"github.com/sweeney/home-bridge/internal/gpio"
)

// Controller owns one device's canonical state and the hardware pin
// behind it. It is not safe for concurrent use; the synchronization
// engine is its only caller, which makes locking unnecessary.
type Controller struct {
	port   gpio.Port
	state  State
	counts Counts
}

// NewController creates a controller for the given device. The level is
// left unset until the first Apply, so the first command (or the
// configured default) always drives the hardware.
func NewController(id string, port gpio.Port) *Controller {
	return &Controller{
		port:  port,
		state: State{ID: id},
	}
}

// Apply sets the device to the given level. It is idempotent: applying
// the level the device already holds skips the hardware call and
// reports changed=false, so callers can debounce redundant publishes.
// On a hardware fault the in-memory state is left unchanged; the
// controller never claims a success it cannot verify, and it never
// retries internally.
func (c *Controller) Apply(level Level, now time.Time) (State, bool, error) {
	if c.state.Level == level {
		c.counts.Skipped++
		return c.state, false, nil
	}

	if err := c.port.SetLevel(level == LevelOn); err != nil {
		c.counts.Faulted++
		return c.state, false, err
	}

	c.state.Level = level
	c.state.LastChanged = now
	c.counts.Applied++
	return c.state, true, nil
}

// Snapshot returns the current state by value.
func (c *Controller) Snapshot() State {
	return c.state
}

// CountsSnapshot returns apply outcome counts since startup.
func (c *Controller) CountsSnapshot() Counts {
	return c.counts
}
