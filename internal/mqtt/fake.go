package mqtt

import (
	"context"
	"sync"
)

// PublishedMsg records one Publish call on a FakeSession.
type PublishedMsg struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// FakeSession is a scriptable Session for tests: it records publishes
// and lets tests inject connection events and inbound messages.
type FakeSession struct {
	mu sync.Mutex

	// published contains all recorded Publish calls.
	published []PublishedMsg

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// events feeds the Events channel; use the Emit helpers.
	events chan Event
}

// NewFakeSession creates a FakeSession for testing.
func NewFakeSession() *FakeSession {
	return &FakeSession{events: make(chan Event, eventBufferSize)}
}

// Run blocks until ctx is cancelled.
func (f *FakeSession) Run(ctx context.Context) {
	<-ctx.Done()
}

// Publish records the message.
func (f *FakeSession) Publish(topic string, payload []byte, retain bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	p := make([]byte, len(payload))
	copy(p, payload)
	f.published = append(f.published, PublishedMsg{Topic: topic, Payload: p, Retained: retain})
	return nil
}

// Events returns the scripted event stream.
func (f *FakeSession) Events() <-chan Event {
	return f.events
}

// Published returns a copy of all recorded publishes.
func (f *FakeSession) Published() []PublishedMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]PublishedMsg, len(f.published))
	copy(out, f.published)
	return out
}

// PublishedTo returns recorded publishes for one topic.
func (f *FakeSession) PublishedTo(topic string) []PublishedMsg {
	var out []PublishedMsg
	for _, m := range f.Published() {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// Reset clears recorded publishes.
func (f *FakeSession) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = nil
	f.PublishError = nil
}

// EmitConnected scripts a transition to Connected.
func (f *FakeSession) EmitConnected() {
	f.events <- ConnectionChanged{State: StateConnected}
}

// EmitDisconnected scripts a connection loss.
func (f *FakeSession) EmitDisconnected() {
	f.events <- ConnectionChanged{State: StateDisconnected}
}

// EmitReconnecting scripts a failed reconnect attempt.
func (f *FakeSession) EmitReconnecting(attempt uint32) {
	f.events <- ConnectionChanged{State: StateReconnecting, Attempt: attempt}
}

// EmitMessage scripts an inbound broker message.
func (f *FakeSession) EmitMessage(topic string, payload []byte) {
	f.events <- Message{Topic: topic, Payload: payload}
}

// EmitRetainedMessage scripts an inbound retained message, as delivered
// right after subscribing.
func (f *FakeSession) EmitRetainedMessage(topic string, payload []byte) {
	f.events <- Message{Topic: topic, Payload: payload, Retained: true}
}
