package status

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sweeney/home-bridge/internal/device"
)

func newTestTracker() *Tracker {
	start := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	return NewTracker(start, Config{
		Broker:      "ssl://broker.local:8883",
		BaseTopic:   "home/livingroom",
		PollSeconds: 30,
		LightPin:    17,
		SensorPin:   4,
		HTTPAddr:    ":8080",
		TLS:         true,
	})
}

func TestTrackerInitialSnapshot(t *testing.T) {
	tr := newTestTracker()
	snap := tr.Snapshot()

	if snap.Session.State != "disconnected" {
		t.Errorf("initial session state: got %q", snap.Session.State)
	}
	if snap.Light != "" {
		t.Errorf("initial light level should be unset, got %q", snap.Light)
	}
	if snap.LastReading != nil {
		t.Error("initial snapshot should have no reading")
	}
	if snap.Config.Broker != "ssl://broker.local:8883" {
		t.Errorf("config broker: got %q", snap.Config.Broker)
	}
}

func TestTrackerUpdates(t *testing.T) {
	tr := newTestTracker()

	tr.SetEngineState("running")
	tr.SetSession("reconnecting", 4)
	tr.SetLight(device.LevelOn)
	tr.SetReading(ReadingInfo{Celsius: 21.37, Humidity: 60.7, Valid: true})
	tr.IncCommandApplied()
	tr.IncCommandApplied()
	tr.IncCommandRejected()
	tr.IncHardwareFault()
	tr.IncSensorFault()
	tr.IncStatePublish()
	tr.IncReadingPublish()
	tr.IncReconnect()

	snap := tr.Snapshot()
	if snap.Engine != "running" {
		t.Errorf("engine: got %q", snap.Engine)
	}
	if snap.Session.State != "reconnecting" || snap.Session.Attempt != 4 {
		t.Errorf("session: got %+v", snap.Session)
	}
	if snap.Light != device.LevelOn {
		t.Errorf("light: got %q", snap.Light)
	}
	if snap.LastReading == nil || !snap.LastReading.Valid {
		t.Fatalf("reading: got %+v", snap.LastReading)
	}
	if snap.Counts.CommandsApplied != 2 || snap.Counts.CommandsRejected != 1 {
		t.Errorf("counts: got %+v", snap.Counts)
	}
	if snap.Counts.Reconnects != 1 {
		t.Errorf("reconnects: got %d", snap.Counts.Reconnects)
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	tr := newTestTracker()
	tr.SetReading(ReadingInfo{Celsius: 20, Valid: true})

	snap := tr.Snapshot()
	snap.LastReading.Celsius = 99

	if tr.Snapshot().LastReading.Celsius != 20 {
		t.Error("mutating a snapshot's reading must not affect the tracker")
	}
}

func TestFormatStatusEvent(t *testing.T) {
	tr := newTestTracker()
	tr.SetEngineState("running")
	tr.SetSession("connected", 0)
	tr.SetLight(device.LevelOff)
	tr.SetReading(ReadingInfo{
		Celsius:   21.37,
		Humidity:  60.74,
		SampledAt: time.Date(2026, 4, 1, 8, 5, 0, 0, time.UTC),
		Valid:     true,
	})

	payload := FormatStatusEvent(tr.Snapshot(), "STARTUP", "")

	var parsed StatusJSON
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Bridge.Event != "STARTUP" {
		t.Errorf("event: got %q", parsed.Bridge.Event)
	}
	if parsed.Bridge.Light != "OFF" {
		t.Errorf("light: got %q", parsed.Bridge.Light)
	}
	if parsed.Bridge.Session.State != "connected" {
		t.Errorf("session state: got %q", parsed.Bridge.Session.State)
	}
	if parsed.Bridge.Reading == nil {
		t.Fatal("expected a reading in payload")
	}
	if parsed.Bridge.Reading.Celsius != "21.4" {
		t.Errorf("celsius: got %q, want 21.4", parsed.Bridge.Reading.Celsius)
	}
	if parsed.Bridge.Reading.Humidity != "60.7" {
		t.Errorf("humidity: got %q, want 60.7", parsed.Bridge.Reading.Humidity)
	}
}

func TestFormatJSONUnknownLight(t *testing.T) {
	tr := newTestTracker()

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(tr.Snapshot()), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Bridge.Light != "UNKNOWN" {
		t.Errorf("light: got %q, want UNKNOWN", parsed.Bridge.Light)
	}
	if parsed.Bridge.Event != "" {
		t.Errorf("web JSON should carry no event, got %q", parsed.Bridge.Event)
	}
	if parsed.Bridge.Reading != nil {
		t.Error("web JSON should omit missing reading")
	}
}
