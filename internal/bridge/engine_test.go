package bridge

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sweeney/home-bridge/internal/device"
	"github.com/sweeney/home-bridge/internal/gpio"
	"github.com/sweeney/home-bridge/internal/mqtt"
	"github.com/sweeney/home-bridge/internal/sensor"
	"github.com/sweeney/home-bridge/internal/status"
)

var testTopics = mqtt.Topics{Base: "home/livingroom"}

type testRig struct {
	engine  *Engine
	session *mqtt.FakeSession
	port    *gpio.FakePort
	tracker *status.Tracker
	cancel  context.CancelFunc
	done    chan error
}

// startEngine wires an engine from fakes and runs it. The poller uses a
// one-minute interval so readings never interfere unless a test wants
// them, in which case it passes a short pollInterval.
func startEngine(t *testing.T, readings []gpio.Reading, pollInterval time.Duration, opts Options) *testRig {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	port := gpio.NewFakePort(readings)
	session := mqtt.NewFakeSession()
	tracker := status.NewTracker(time.Now(), status.Config{BaseTopic: testTopics.Base})
	light := device.NewController("light", port)
	poller := sensor.New("dht22", port, pollInterval, logger)
	engine := New(session, testTopics, light, poller, tracker, logger, opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	stopped := make(chan struct{})
	go func() {
		done <- engine.Run(ctx)
		close(stopped)
	}()

	rig := &testRig{engine: engine, session: session, port: port, tracker: tracker, cancel: cancel, done: done}
	t.Cleanup(func() {
		cancel()
		// Wait on stopped, not done: a test may have drained done
		// itself and the cleanup must still observe the exit.
		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			t.Error("engine did not stop")
		}
	})
	return rig
}

func waitFor(t *testing.T, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func statePayloads(s *mqtt.FakeSession) []string {
	var out []string
	for _, m := range s.PublishedTo(testTopics.LightState()) {
		out = append(out, string(m.Payload))
	}
	return out
}

func TestEngineStartupValidatesTopics(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	port := gpio.NewFakePort(nil)
	light := device.NewController("light", port)
	poller := sensor.New("dht22", port, time.Minute, logger)
	engine := New(mqtt.NewFakeSession(), mqtt.Topics{Base: ""}, light, poller, nil, logger, Options{})

	if err := engine.Run(context.Background()); err == nil {
		t.Fatal("expected a startup error for an empty topic base")
	}
}

func TestEngineAppliesDefaultLevelAtStartup(t *testing.T) {
	rig := startEngine(t, nil, time.Minute, Options{DefaultLevel: device.LevelOff})

	waitFor(t, "default level never reached hardware", func() bool {
		return len(rig.port.SetCalls()) == 1
	})
	if rig.port.SetCalls()[0] {
		t.Error("default OFF should drive the pin low")
	}
}

func TestEngineCommandPublishesRetainedState(t *testing.T) {
	rig := startEngine(t, nil, time.Minute, Options{})

	rig.session.EmitConnected()
	waitFor(t, "no state publish after connect", func() bool {
		return len(rig.session.PublishedTo(testTopics.LightState())) == 1
	})

	rig.session.EmitMessage(testTopics.LightSet(), []byte("ON"))
	waitFor(t, "no state publish after command", func() bool {
		return len(rig.session.PublishedTo(testTopics.LightState())) == 2
	})

	states := rig.session.PublishedTo(testTopics.LightState())
	if string(states[1].Payload) != "ON" {
		t.Errorf("state payload: got %q, want ON", states[1].Payload)
	}
	if !states[1].Retained {
		t.Error("state publish must be retained")
	}
	if rig.port.Level() != true {
		t.Error("hardware should be ON")
	}
}

// Applying the same level twice yields exactly one state publish.
func TestEngineIdempotentCommand(t *testing.T) {
	rig := startEngine(t, nil, time.Minute, Options{})

	rig.session.EmitMessage(testTopics.LightSet(), []byte("ON"))
	rig.session.EmitMessage(testTopics.LightSet(), []byte("ON"))
	rig.session.EmitMessage(testTopics.LightSet(), []byte("OFF"))

	waitFor(t, "final OFF publish missing", func() bool {
		states := statePayloads(rig.session)
		return len(states) > 0 && states[len(states)-1] == "OFF"
	})

	on := 0
	for _, p := range statePayloads(rig.session) {
		if p == "ON" {
			on++
		}
	}
	if on != 1 {
		t.Errorf("expected exactly one ON publish, got %d (all: %v)", on, statePayloads(rig.session))
	}

	// Hardware was touched once per actual transition: the startup
	// default drive, then ON, then OFF.
	waitFor(t, "hardware calls incomplete", func() bool {
		return len(rig.port.SetCalls()) == 3
	})
}

func TestEngineRejectsUnparseableCommand(t *testing.T) {
	rig := startEngine(t, nil, time.Minute, Options{})

	rig.session.EmitMessage(testTopics.LightSet(), []byte("BRIGHTER"))
	waitFor(t, "rejection not counted", func() bool {
		return rig.tracker.Snapshot().Counts.CommandsRejected == 1
	})

	// The invalid payload never reached the hardware: only the startup
	// default drive happened.
	if calls := rig.port.SetCalls(); len(calls) != 1 {
		t.Errorf("hardware calls: got %v, want only the startup default", calls)
	}
	if len(rig.session.PublishedTo(testTopics.LightState())) != 0 {
		t.Error("no state publish should follow a rejected command")
	}
}

func TestEngineHardwareFaultKeepsLastState(t *testing.T) {
	rig := startEngine(t, nil, time.Minute, Options{})

	waitFor(t, "startup apply missing", func() bool {
		return len(rig.port.SetCalls()) == 1
	})

	rig.port.FailSet(gpio.ErrTimeout)
	rig.session.EmitMessage(testTopics.LightSet(), []byte("ON"))
	waitFor(t, "hardware fault not counted", func() bool {
		return rig.tracker.Snapshot().Counts.HardwareFaults == 1
	})
	if len(rig.session.PublishedTo(testTopics.LightState())) != 0 {
		t.Error("no state publish may follow a failed apply")
	}

	// A subsequent successful command still works.
	rig.port.FailSet(nil)
	rig.session.EmitMessage(testTopics.LightSet(), []byte("ON"))
	waitFor(t, "recovery command not published", func() bool {
		states := statePayloads(rig.session)
		return len(states) == 1 && states[0] == "ON"
	})
}

// After Disconnected -> Connected the engine republishes the current
// state exactly once, even with no commands during the outage.
func TestEngineRepublishesStateOnReconnect(t *testing.T) {
	rig := startEngine(t, nil, time.Minute, Options{})

	rig.session.EmitConnected()
	waitFor(t, "initial connect publish missing", func() bool {
		return len(rig.session.PublishedTo(testTopics.LightState())) == 1
	})

	rig.session.EmitDisconnected()
	rig.session.EmitReconnecting(1)
	rig.session.EmitReconnecting(2)
	rig.session.EmitConnected()

	waitFor(t, "reconnect republish missing", func() bool {
		return len(rig.session.PublishedTo(testTopics.LightState())) == 2
	})

	// Give the loop a beat to prove no extra publish sneaks in.
	time.Sleep(20 * time.Millisecond)
	if n := len(rig.session.PublishedTo(testTopics.LightState())); n != 2 {
		t.Errorf("expected exactly 2 state publishes, got %d", n)
	}

	snap := rig.tracker.Snapshot()
	if snap.Session.State != "connected" {
		t.Errorf("session state: got %q", snap.Session.State)
	}
	if snap.Counts.Reconnects != 2 {
		t.Errorf("reconnects: got %d, want 2", snap.Counts.Reconnects)
	}
}

func TestEngineTracksReconnectAttempts(t *testing.T) {
	rig := startEngine(t, nil, time.Minute, Options{})

	rig.session.EmitReconnecting(7)
	waitFor(t, "attempt not tracked", func() bool {
		s := rig.tracker.Snapshot().Session
		return s.State == "reconnecting" && s.Attempt == 7
	})
}

func TestEngineSeedsFromRetainedState(t *testing.T) {
	rig := startEngine(t, nil, time.Minute, Options{DefaultLevel: device.LevelOff})

	rig.session.EmitRetainedMessage(testTopics.LightState(), []byte("ON"))
	waitFor(t, "retained seed never drove hardware", func() bool {
		return rig.port.Level() == true
	})

	// Later retained echoes of our own publishes are ignored.
	rig.session.EmitRetainedMessage(testTopics.LightState(), []byte("OFF"))
	time.Sleep(20 * time.Millisecond)
	if rig.port.Level() != true {
		t.Error("post-seed retained state must not drive hardware")
	}
}

func TestEnginePublishesRoundedReading(t *testing.T) {
	rig := startEngine(t, []gpio.Reading{{Celsius: 21.37, Humidity: 60.74}}, 5*time.Millisecond, Options{})

	waitFor(t, "temperature publish missing", func() bool {
		return len(rig.session.PublishedTo(testTopics.Temperature())) > 0
	})

	temp := rig.session.PublishedTo(testTopics.Temperature())[0]
	if string(temp.Payload) != "21.4" {
		t.Errorf("temperature payload: got %q, want 21.4", temp.Payload)
	}
	if temp.Retained {
		t.Error("readings are not retained")
	}

	waitFor(t, "humidity publish missing", func() bool {
		return len(rig.session.PublishedTo(testTopics.Humidity())) > 0
	})
	if got := string(rig.session.PublishedTo(testTopics.Humidity())[0].Payload); got != "60.7" {
		t.Errorf("humidity payload: got %q, want 60.7", got)
	}
}

// A failed sensor read produces no publish and does not stop the
// polling cadence.
func TestEngineSensorFaultIsolation(t *testing.T) {
	rig := startEngine(t, []gpio.Reading{{Celsius: 19.96, Humidity: 55}}, 5*time.Millisecond, Options{})
	rig.port.FailRead(gpio.ErrChecksum)

	waitFor(t, "sensor fault not counted", func() bool {
		return rig.tracker.Snapshot().Counts.SensorFaults > 0
	})
	if len(rig.session.PublishedTo(testTopics.Temperature())) != 0 {
		t.Error("invalid readings must not be published")
	}

	rig.port.FailRead(nil)
	waitFor(t, "polling did not continue after faults", func() bool {
		return len(rig.session.PublishedTo(testTopics.Temperature())) > 0
	})
	if got := string(rig.session.PublishedTo(testTopics.Temperature())[0].Payload); got != "20.0" {
		t.Errorf("temperature payload: got %q, want 20.0", got)
	}
}

func TestEngineRepublishesReadingOnReconnectWhenEnabled(t *testing.T) {
	rig := startEngine(t, []gpio.Reading{{Celsius: 22.5, Humidity: 50}}, 5*time.Millisecond, Options{RepublishReading: true})

	waitFor(t, "first reading missing", func() bool {
		return len(rig.session.PublishedTo(testTopics.Temperature())) > 0
	})

	// Quiesce the poller's influence by counting before reconnect.
	before := len(rig.session.PublishedTo(testTopics.Temperature()))
	rig.session.EmitDisconnected()
	rig.session.EmitConnected()

	waitFor(t, "reading not republished after reconnect", func() bool {
		return len(rig.session.PublishedTo(testTopics.Temperature())) > before
	})
}

func TestEngineStopsCleanly(t *testing.T) {
	rig := startEngine(t, nil, time.Minute, Options{ShutdownGrace: time.Second})

	waitFor(t, "engine never reached running", func() bool {
		return rig.tracker.Snapshot().Engine == "running"
	})

	rig.cancel()
	select {
	case err := <-rig.done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}

	if got := rig.tracker.Snapshot().Engine; got != "stopped" {
		t.Errorf("engine state: got %q, want stopped", got)
	}
}

func TestEngineStateString(t *testing.T) {
	tests := []struct {
		state EngineState
		want  string
	}{
		{StateStartup, "startup"},
		{StateRunning, "running"},
		{StateShuttingDown, "shutting_down"},
		{StateStopped, "stopped"},
		{EngineState(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("%d: got %q, want %q", tt.state, got, tt.want)
		}
	}
}
