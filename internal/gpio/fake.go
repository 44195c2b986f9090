package gpio

import "sync"

// FakePort is a test double with a settable level and scripted sensor
// readings. It is safe for concurrent use, since tests drive it from
// the test goroutine while pollers and engines read it from theirs.
type FakePort struct {
	mu sync.Mutex

	level    bool
	setCalls []bool

	// readings are scripted sensor samples. Each call to
	// ReadTemperature consumes the next one; when exhausted, the last
	// sample is returned repeatedly.
	readings []Reading
	index    int

	setErr       error
	readLevelErr error
	readErr      error

	closed bool
}

// NewFakePort creates a FakePort with the given scripted readings.
func NewFakePort(readings []Reading) *FakePort {
	return &FakePort{readings: readings}
}

// SetLevel records the call and updates the level.
func (f *FakePort) SetLevel(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.setCalls = append(f.setCalls, on)
	f.level = on
	return nil
}

// ReadLevel returns the current level.
func (f *FakePort) ReadLevel() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readLevelErr != nil {
		return false, f.readLevelErr
	}
	return f.level, nil
}

// ReadTemperature returns the next scripted reading.
func (f *FakePort) ReadTemperature() (Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return Reading{}, f.readErr
	}

	if len(f.readings) == 0 {
		return Reading{}, newFault("read dht22", DefaultPinSensor, ErrTimeout)
	}

	r := f.readings[f.index]
	if f.index < len(f.readings)-1 {
		f.index++
	}
	return r, nil
}

// Close marks the port as closed.
func (f *FakePort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Level returns the current light level.
func (f *FakePort) Level() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level
}

// SetCalls returns a copy of every level passed to SetLevel.
func (f *FakePort) SetCalls() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, len(f.setCalls))
	copy(out, f.setCalls)
	return out
}

// Closed reports whether Close was called.
func (f *FakePort) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// FailSet makes SetLevel return err (nil restores normal behavior).
func (f *FakePort) FailSet(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setErr = err
}

// FailReadLevel makes ReadLevel return err.
func (f *FakePort) FailReadLevel(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readLevelErr = err
}

// FailRead makes ReadTemperature return err.
func (f *FakePort) FailRead(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
}

// Reset clears recorded calls, injected errors, and rewinds readings.
func (f *FakePort) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls = nil
	f.index = 0
	f.closed = false
	f.setErr = nil
	f.readLevelErr = nil
	f.readErr = nil
}
