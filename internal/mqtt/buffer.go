package mqtt

// bufferedMsg stores a serialized MQTT message for replay after
// reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// latestBuffer holds at most one pending message per topic while
// disconnected. A newer message for the same topic supersedes the
// queued one, so stale state is never replayed after reconnect.
// Not safe for concurrent use; the caller must synchronize.
type latestBuffer struct {
	order   []string // topics in first-queued order
	byTopic map[string]bufferedMsg
}

func newLatestBuffer() *latestBuffer {
	return &latestBuffer{byTopic: make(map[string]bufferedMsg)}
}

func (b *latestBuffer) push(msg bufferedMsg) {
	if _, ok := b.byTopic[msg.topic]; !ok {
		b.order = append(b.order, msg.topic)
	}
	b.byTopic[msg.topic] = msg
}

func (b *latestBuffer) drainAll() []bufferedMsg {
	if len(b.order) == 0 {
		return nil
	}

	result := make([]bufferedMsg, 0, len(b.order))
	for _, topic := range b.order {
		result = append(result, b.byTopic[topic])
	}

	b.order = nil
	b.byTopic = make(map[string]bufferedMsg)
	return result
}

func (b *latestBuffer) len() int {
	return len(b.order)
}
