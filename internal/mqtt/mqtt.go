// Package mqtt provides the reconnecting broker session with
// abstraction for testing. The real implementation wraps
// eclipse/paho.mqtt.golang but owns its reconnect loop so that backoff
// and session state stay observable; the fake implementation allows
// testing without a broker.
package mqtt

import "context"

// SessionState describes the broker connection.
type SessionState int

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// Event is something the session surfaces to its consumer: either a
// connection-state change or an inbound message.
type Event interface {
	sessionEvent()
}

// ConnectionChanged reports a session-state transition. Attempt counts
// consecutive failed connection attempts and is only meaningful for
// StateReconnecting.
type ConnectionChanged struct {
	State   SessionState
	Attempt uint32
}

func (ConnectionChanged) sessionEvent() {}

// Message is an inbound broker message. Per-topic ordering follows the
// broker; no cross-topic ordering is guaranteed.
type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

func (Message) sessionEvent() {}

// Session is a reconnecting pub/sub client bound to one broker.
//
// Publish on a disconnected session follows a publish-latest-only
// policy for retained topics: the newest payload per topic is queued
// and replayed after reconnect, superseding any older queued value.
// Non-retained publishes fail fast with ErrNotConnected.
type Session interface {
	// Run drives the connect/reconnect loop until ctx is cancelled.
	Run(ctx context.Context)

	// Publish sends a payload to the broker.
	Publish(topic string, payload []byte, retain bool) error

	// Events yields connection-state changes and inbound messages in
	// the order the session observed them.
	Events() <-chan Event
}
