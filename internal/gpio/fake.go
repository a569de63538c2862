package gpio

import (
	"errors"
	"sync"
	"time"
)

// Change is one recorded level change of a FakeLED.
type Change struct {
	At time.Time
	On bool
}

// FakeLED is a test double that records every level change.
// It is safe for concurrent use: the controller writes from its own
// goroutine while tests read.
type FakeLED struct {
	mu sync.Mutex

	// Now stamps recorded changes. Defaults to time.Now.
	Now func() time.Time

	on      bool
	writes  int
	changes []Change
	closed  bool
	setErr  error
}

// NewFakeLED creates a FakeLED that starts off.
func NewFakeLED() *FakeLED {
	return &FakeLED{Now: time.Now}
}

// Set records the level. Writes that do not change the level are counted
// but not recorded as changes.
func (f *FakeLED) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.setErr != nil {
		return f.setErr
	}
	f.writes++
	if on == f.on {
		return nil
	}
	f.on = on
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	f.changes = append(f.changes, Change{At: now(), On: on})
	return nil
}

// Close marks the LED as closed and turns it off.
func (f *FakeLED) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.on = false
	return nil
}

// SetError makes every following Set return err.
func (f *FakeLED) SetError(err error) {
	f.mu.Lock()
	f.setErr = err
	f.mu.Unlock()
}

// IsOn returns the current level.
func (f *FakeLED) IsOn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.on
}

// Closed reports whether Close was called.
func (f *FakeLED) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Writes returns the number of successful Set calls.
func (f *FakeLED) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

// Changes returns a copy of the recorded level changes.
func (f *FakeLED) Changes() []Change {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Change, len(f.changes))
	copy(out, f.changes)
	return out
}

// FakeButton is a test double that returns scripted button samples.
type FakeButton struct {
	// Samples contains scripted pressed values to return.
	// Each call to Pressed() consumes the next sample.
	Samples []bool

	// index tracks current position in Samples
	index int

	// Reads counts calls to Pressed.
	Reads int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Pressed()
	ReadError error
}

// NewFakeButton creates a FakeButton with the given samples.
func NewFakeButton(samples []bool) *FakeButton {
	return &FakeButton{Samples: samples}
}

// Pressed returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeButton) Pressed() (bool, error) {
	f.Reads++
	if f.ReadError != nil {
		return false, f.ReadError
	}

	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample, nil
}

// Close marks the button as closed.
func (f *FakeButton) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the button to the beginning of samples.
func (f *FakeButton) Reset() {
	f.index = 0
	f.Reads = 0
	f.Closed = false
}
