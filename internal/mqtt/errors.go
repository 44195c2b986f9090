package mqtt

import "errors"

// Transport faults. All are transient from the engine's point of view;
// they drive the reconnect/backoff machinery, never a crash.
var (
	// ErrNotConnected is returned by Publish when the session is down
	// and the topic does not queue.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrConnectionFailed wraps a failed connection attempt.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishTimeout means the broker did not acknowledge a publish
	// in time.
	ErrPublishTimeout = errors.New("mqtt: publish timeout")
)
