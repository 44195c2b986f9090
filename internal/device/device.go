// Package device contains the controller that owns a light's canonical
// state. It has no MQTT or OS dependencies; time is always injected via
// time.Time parameters and hardware is reached only through gpio.Port.
package device

import (
	"fmt"
	"time"
)

// Level is the logical state of a controllable device.
type Level string

const (
	LevelOn  Level = "ON"
	LevelOff Level = "OFF"
)

// ParseLevel converts a command payload into a Level. Anything other
// than the exact payloads "ON" and "OFF" is rejected, before any
// hardware call can happen.
func ParseLevel(payload string) (Level, error) {
	switch payload {
	case "ON":
		return LevelOn, nil
	case "OFF":
		return LevelOff, nil
	}
	return "", fmt.Errorf("device: invalid level payload %q", payload)
}

// State is a point-in-time snapshot of one device. It is a value type;
// the controller hands out copies, never references.
type State struct {
	ID          string
	Level       Level
	LastChanged time.Time
}

// Counts tracks apply outcomes since startup.
type Counts struct {
	Applied int
	Skipped int // idempotent no-ops
	Faulted int
}
