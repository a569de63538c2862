package mqtt

import "sync"

// FakePublisher records published events for test assertions.
// It is safe for concurrent use; bus subscribers publish from their own
// goroutines.
type FakePublisher struct {
	mu sync.Mutex

	states         []StateChange
	statePayloads  [][]byte
	systemEvents   []SystemEvent
	systemPayloads [][]byte

	// PublishStateError, if set, will be returned by PublishState.
	PublishStateError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	closed    bool
	connected bool
	queued    int
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishState records the state change.
func (f *FakePublisher) PublishState(change StateChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishStateError != nil {
		return f.PublishStateError
	}

	payload, err := FormatStatePayload(change)
	if err != nil {
		return err
	}
	f.states = append(f.states, change)
	f.statePayloads = append(f.statePayloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.systemEvents = append(f.systemEvents, event)
	f.systemPayloads = append(f.systemPayloads, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// SetConnected controls the return value of IsConnected.
func (f *FakePublisher) SetConnected(c bool) {
	f.mu.Lock()
	f.connected = c
	f.mu.Unlock()
}

// Queued returns the value set by SetQueued.
func (f *FakePublisher) Queued() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queued
}

// SetQueued controls the return value of Queued.
func (f *FakePublisher) SetQueued(n int) {
	f.mu.Lock()
	f.queued = n
	f.mu.Unlock()
}

// Closed reports whether Close was called.
func (f *FakePublisher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// States returns a copy of the recorded state changes.
func (f *FakePublisher) States() []StateChange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]StateChange(nil), f.states...)
}

// StatePayloads returns a copy of the recorded state payloads.
func (f *FakePublisher) StatePayloads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.statePayloads...)
}

// SystemEvents returns a copy of the recorded system events.
func (f *FakePublisher) SystemEvents() []SystemEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SystemEvent(nil), f.systemEvents...)
}

// SystemPayloads returns a copy of the recorded system payloads.
func (f *FakePublisher) SystemPayloads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.systemPayloads...)
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = nil
	f.statePayloads = nil
	f.systemEvents = nil
	f.systemPayloads = nil
	f.closed = false
	f.connected = false
	f.queued = 0
	f.PublishStateError = nil
	f.PublishSystemError = nil
}
