// Package status provides a thread-safe status tracker for the
// home-bridge daemon. It is read by HTTP handlers and serialized into
// the retained system events on the bridge status topic.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/home-bridge/internal/device"
)

// SessionInfo is the last observed broker session state.
type SessionInfo struct {
	State   string
	Attempt uint32
}

// ReadingInfo is the last sensor reading, valid or not.
type ReadingInfo struct {
	Celsius   float64
	Humidity  float64
	SampledAt time.Time
	Valid     bool
}

// Counts tracks dispatch outcomes since startup.
type Counts struct {
	CommandsApplied  int
	CommandsRejected int
	HardwareFaults   int
	SensorFaults     int
	StatePublishes   int
	ReadingPublishes int
	Reconnects       int
}

// Config contains daemon configuration for display.
type Config struct {
	Broker      string
	BaseTopic   string
	PollSeconds int64
	LightPin    int
	SensorPin   int
	HTTPAddr    string
	TLS         bool
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Engine      string
	Session     SessionInfo
	Light       device.Level
	LastReading *ReadingInfo
	Counts      Counts
	StartTime   time.Time
	Now         time.Time
	Config      Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Session:   SessionInfo{State: "disconnected"},
		},
	}
}

// SetEngineState records the engine's lifecycle state.
func (t *Tracker) SetEngineState(state string) {
	t.mu.Lock()
	t.snap.Engine = state
	t.mu.Unlock()
}

// SetSession records the broker session state.
func (t *Tracker) SetSession(state string, attempt uint32) {
	t.mu.Lock()
	t.snap.Session = SessionInfo{State: state, Attempt: attempt}
	t.mu.Unlock()
}

// SetLight records the light's level.
func (t *Tracker) SetLight(level device.Level) {
	t.mu.Lock()
	t.snap.Light = level
	t.mu.Unlock()
}

// SetReading records the latest sensor reading.
func (t *Tracker) SetReading(r ReadingInfo) {
	t.mu.Lock()
	t.snap.LastReading = &r
	t.mu.Unlock()
}

// IncCommandApplied counts a successfully applied command.
func (t *Tracker) IncCommandApplied() { t.inc(func(c *Counts) { c.CommandsApplied++ }) }

// IncCommandRejected counts an unparseable command payload.
func (t *Tracker) IncCommandRejected() { t.inc(func(c *Counts) { c.CommandsRejected++ }) }

// IncHardwareFault counts a failed hardware call.
func (t *Tracker) IncHardwareFault() { t.inc(func(c *Counts) { c.HardwareFaults++ }) }

// IncSensorFault counts a failed sensor read.
func (t *Tracker) IncSensorFault() { t.inc(func(c *Counts) { c.SensorFaults++ }) }

// IncStatePublish counts a state-out publish.
func (t *Tracker) IncStatePublish() { t.inc(func(c *Counts) { c.StatePublishes++ }) }

// IncReadingPublish counts a reading-out publish.
func (t *Tracker) IncReadingPublish() { t.inc(func(c *Counts) { c.ReadingPublishes++ }) }

// IncReconnect counts a completed reconnect.
func (t *Tracker) IncReconnect() { t.inc(func(c *Counts) { c.Reconnects++ }) }

func (t *Tracker) inc(f func(*Counts)) {
	t.mu.Lock()
	f(&t.snap.Counts)
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if t.snap.LastReading != nil {
		r := *t.snap.LastReading
		s.LastReading = &r
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
