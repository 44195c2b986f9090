package status

import (
	"encoding/json"
	"fmt"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Bridge StatusInner `json:"bridge"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Engine        string       `json:"engine"`
	Light         string       `json:"light"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Session       SessionJSON  `json:"session"`
	Reading       *ReadingJSON `json:"last_reading,omitempty"`
	Counts        CountsJSON   `json:"event_counts"`
	Config        ConfigJSON   `json:"config"`
}

// SessionJSON reports broker session state.
type SessionJSON struct {
	State   string `json:"state"`
	Attempt uint32 `json:"attempt,omitempty"`
	Broker  string `json:"broker"`
}

// ReadingJSON is the JSON representation of the last sensor reading.
type ReadingJSON struct {
	Celsius   string `json:"celsius"`
	Humidity  string `json:"humidity"`
	SampledAt string `json:"sampled_at"`
	Valid     bool   `json:"valid"`
}

// CountsJSON is the JSON representation of dispatch counts.
type CountsJSON struct {
	CommandsApplied  int `json:"commands_applied"`
	CommandsRejected int `json:"commands_rejected"`
	HardwareFaults   int `json:"hardware_faults"`
	SensorFaults     int `json:"sensor_faults"`
	StatePublishes   int `json:"state_publishes"`
	ReadingPublishes int `json:"reading_publishes"`
	Reconnects       int `json:"reconnects"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Broker      string `json:"broker"`
	BaseTopic   string `json:"base_topic"`
	PollSeconds int64  `json:"poll_seconds"`
	LightPin    int    `json:"light_pin"`
	SensorPin   int    `json:"sensor_pin"`
	HTTPAddr    string `json:"http_addr"`
	TLS         bool   `json:"tls"`
}

func buildInner(snap Snapshot) StatusInner {
	light := string(snap.Light)
	if light == "" {
		light = "UNKNOWN"
	}

	inner := StatusInner{
		Engine:        snap.Engine,
		Light:         light,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Session: SessionJSON{
			State:   snap.Session.State,
			Attempt: snap.Session.Attempt,
			Broker:  snap.Config.Broker,
		},
		Counts: CountsJSON{
			CommandsApplied:  snap.Counts.CommandsApplied,
			CommandsRejected: snap.Counts.CommandsRejected,
			HardwareFaults:   snap.Counts.HardwareFaults,
			SensorFaults:     snap.Counts.SensorFaults,
			StatePublishes:   snap.Counts.StatePublishes,
			ReadingPublishes: snap.Counts.ReadingPublishes,
			Reconnects:       snap.Counts.Reconnects,
		},
		Config: ConfigJSON{
			Broker:      snap.Config.Broker,
			BaseTopic:   snap.Config.BaseTopic,
			PollSeconds: snap.Config.PollSeconds,
			LightPin:    snap.Config.LightPin,
			SensorPin:   snap.Config.SensorPin,
			HTTPAddr:    snap.Config.HTTPAddr,
			TLS:         snap.Config.TLS,
		},
	}

	if snap.LastReading != nil {
		inner.Reading = &ReadingJSON{
			Celsius:   fmt.Sprintf("%.1f", snap.LastReading.Celsius),
			Humidity:  fmt.Sprintf("%.1f", snap.LastReading.Humidity),
			SampledAt: snap.LastReading.SampledAt.UTC().Format(time.RFC3339),
			Valid:     snap.LastReading.Valid,
		}
	}

	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Bridge: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Bridge: inner})
	return data
}
