// Package bridge contains the synchronization engine: the single
// control loop that keeps GPIO-backed device state and sensor readings
// consistent with the broker's topic state.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sweeney/home-bridge/internal/device"
	"github.com/sweeney/home-bridge/internal/mqtt"
	"github.com/sweeney/home-bridge/internal/sensor"
	"github.com/sweeney/home-bridge/internal/status"
)

// EngineState is the engine's lifecycle state.
type EngineState int

const (
	StateStartup EngineState = iota
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s EngineState) String() string {
	switch s {
	case StateStartup:
		return "startup"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Options configures engine behavior.
type Options struct {
	// DefaultLevel is applied to the light at startup, before any
	// command or retained state arrives.
	DefaultLevel device.Level

	// RepublishReading also replays the last valid sensor reading
	// after a reconnect, alongside the retained device states.
	RepublishReading bool

	// ShutdownGrace bounds how long shutdown waits for the session and
	// poller to finish.
	ShutdownGrace time.Duration
}

// Engine multiplexes session events and sensor readings onto one
// dispatch loop. It is the only caller of the device controller, so
// device state needs no locking; no two handlers ever run concurrently.
type Engine struct {
	session mqtt.Session
	topics  mqtt.Topics
	light   *device.Controller
	poller  *sensor.Poller
	tracker *status.Tracker
	logger  *slog.Logger
	opts    Options

	state       EngineState
	seeded      bool
	lastReading *sensor.Reading
	now         func() time.Time
}

// New creates an engine. The tracker may be nil.
func New(session mqtt.Session, topics mqtt.Topics, light *device.Controller, poller *sensor.Poller, tracker *status.Tracker, logger *slog.Logger, opts Options) *Engine {
	if opts.DefaultLevel == "" {
		opts.DefaultLevel = device.LevelOff
	}
	if opts.ShutdownGrace == 0 {
		opts.ShutdownGrace = 5 * time.Second
	}
	return &Engine{
		session: session,
		topics:  topics,
		light:   light,
		poller:  poller,
		tracker: tracker,
		logger:  logger,
		opts:    opts,
		now:     time.Now,
	}
}

// Run executes the engine lifecycle: Startup, then the Running dispatch
// loop, then ShuttingDown once ctx is cancelled. It returns nil after a
// clean stop; the only error it can return is a startup configuration
// problem, since a misconfigured bridge has no safe degraded mode.
func (e *Engine) Run(ctx context.Context) error {
	e.setState(StateStartup)

	if err := e.topics.Validate(); err != nil {
		return fmt.Errorf("startup: %w", err)
	}

	// Bring the hardware to the configured default. A hardware fault
	// here is local, not fatal: the broker state stays authoritative
	// and a later command can still succeed.
	if st, changed, err := e.light.Apply(e.opts.DefaultLevel, e.now()); err != nil {
		e.logger.Error("applying default level failed", "level", e.opts.DefaultLevel, "error", err)
		e.trackHardwareFault()
	} else if changed {
		e.trackLight(st.Level)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.session.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		e.poller.Run(ctx)
	}()

	e.setState(StateRunning)
	e.logger.Info("engine running",
		"command_topic", e.topics.LightSet(),
		"state_topic", e.topics.LightState(),
		"reading_topic", e.topics.Temperature())

	readings := e.poller.Readings()
	for {
		select {
		case <-ctx.Done():
			e.shutdown(&wg)
			return nil

		case ev := <-e.session.Events():
			switch ev := ev.(type) {
			case mqtt.Message:
				e.handleMessage(ev)
			case mqtt.ConnectionChanged:
				e.handleConnectionChange(ev)
			}

		case r, ok := <-readings:
			if !ok {
				readings = nil
				continue
			}
			e.handleReading(r)
		}
	}
}

// handleMessage dispatches one inbound broker message by topic. Every
// command ends in a state publish or a logged fault naming the
// originating topic and payload; nothing is silently dropped.
func (e *Engine) handleMessage(msg mqtt.Message) {
	switch msg.Topic {
	case e.topics.LightSet():
		e.handleCommand(msg)
	case e.topics.LightState():
		// Seen on the state-out topic only because the broker replays
		// its retained value on subscribe; used once to seed the
		// controller from last-known state, then ignored as our own
		// publish echoes.
		if msg.Retained && !e.seeded {
			e.seedFromRetained(msg)
		}
	default:
		e.logger.Debug("message on unbound topic", "topic", msg.Topic)
	}
}

func (e *Engine) handleCommand(msg mqtt.Message) {
	level, err := device.ParseLevel(string(msg.Payload))
	if err != nil {
		e.logger.Warn("rejected command",
			"topic", msg.Topic, "payload", string(msg.Payload), "error", err)
		if e.tracker != nil {
			e.tracker.IncCommandRejected()
		}
		return
	}

	e.seeded = true

	st, changed, err := e.light.Apply(level, e.now())
	if err != nil {
		e.logger.Error("hardware fault applying command",
			"topic", msg.Topic, "payload", string(msg.Payload), "error", err)
		e.trackHardwareFault()
		return
	}

	if e.tracker != nil {
		e.tracker.IncCommandApplied()
	}
	e.trackLight(st.Level)

	if changed {
		e.publishState(st)
	}
}

func (e *Engine) seedFromRetained(msg mqtt.Message) {
	level, err := device.ParseLevel(string(msg.Payload))
	if err != nil {
		e.logger.Warn("ignoring unparseable retained state",
			"topic", msg.Topic, "payload", string(msg.Payload))
		return
	}

	e.seeded = true
	st, changed, err := e.light.Apply(level, e.now())
	if err != nil {
		e.logger.Error("hardware fault applying retained state", "error", err)
		e.trackHardwareFault()
		return
	}
	if changed {
		e.logger.Info("seeded light from retained broker state", "level", st.Level)
		e.trackLight(st.Level)
		// The on-connect republish may already have overwritten the
		// broker's retained value; restore it so broker and hardware
		// converge on the seeded level.
		e.publishState(st)
	}
}

// handleConnectionChange reacts to session-state transitions. After
// every reconnect the current state of every device is re-published
// retained, so subscribers recover consistent state after any outage
// even if no command occurred during it.
func (e *Engine) handleConnectionChange(ev mqtt.ConnectionChanged) {
	if e.tracker != nil {
		e.tracker.SetSession(ev.State.String(), ev.Attempt)
	}

	if ev.State != mqtt.StateConnected {
		return
	}
	if e.tracker != nil {
		e.tracker.IncReconnect()
	}

	e.publishState(e.light.Snapshot())

	if e.opts.RepublishReading && e.lastReading != nil {
		e.publishReading(*e.lastReading)
	}
}

func (e *Engine) handleReading(r sensor.Reading) {
	if e.tracker != nil {
		e.tracker.SetReading(status.ReadingInfo{
			Celsius:   r.Celsius,
			Humidity:  r.Humidity,
			SampledAt: r.SampledAt,
			Valid:     r.Valid,
		})
	}

	if !r.Valid {
		// Never propagate a sentinel bad value; the fault is already
		// logged at the poller and counted here.
		if e.tracker != nil {
			e.tracker.IncSensorFault()
		}
		return
	}

	e.lastReading = &r
	e.publishReading(r)
}

func (e *Engine) publishState(st device.State) {
	if st.Level == "" {
		return
	}
	if err := e.session.Publish(e.topics.LightState(), []byte(st.Level), true); err != nil {
		e.logger.Warn("state publish failed", "topic", e.topics.LightState(), "error", err)
		return
	}
	if e.tracker != nil {
		e.tracker.IncStatePublish()
	}
}

func (e *Engine) publishReading(r sensor.Reading) {
	temp := []byte(fmt.Sprintf("%.1f", r.Celsius))
	if err := e.session.Publish(e.topics.Temperature(), temp, false); err != nil {
		e.logger.Warn("reading publish failed", "topic", e.topics.Temperature(), "error", err)
		return
	}

	humidity := []byte(fmt.Sprintf("%.1f", r.Humidity))
	if err := e.session.Publish(e.topics.Humidity(), humidity, false); err != nil {
		e.logger.Warn("reading publish failed", "topic", e.topics.Humidity(), "error", err)
	}

	if e.tracker != nil {
		e.tracker.IncReadingPublish()
	}
}

// shutdown waits for the session and poller to finish, bounded by the
// grace period. The light keeps its last-commanded physical level; GPIO
// levels persist independent of the process.
func (e *Engine) shutdown(wg *sync.WaitGroup) {
	e.setState(StateShuttingDown)
	e.logger.Info("engine shutting down")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(e.opts.ShutdownGrace):
		e.logger.Warn("shutdown grace period elapsed", "grace", e.opts.ShutdownGrace)
	}

	e.setState(StateStopped)
	e.logger.Info("engine stopped")
}

func (e *Engine) setState(s EngineState) {
	e.state = s
	if e.tracker != nil {
		e.tracker.SetEngineState(s.String())
	}
}

func (e *Engine) trackLight(level device.Level) {
	if e.tracker != nil {
		e.tracker.SetLight(level)
	}
}

func (e *Engine) trackHardwareFault() {
	if e.tracker != nil {
		e.tracker.IncHardwareFault()
	}
}
