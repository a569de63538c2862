package ble

import (
	"errors"
	"sync"
)

// FakeRadio is a Radio for tests. Connect and Disconnect invoke the
// registered handler the way the adapter's callback goroutine would.
type FakeRadio struct {
	mu      sync.Mutex
	handler func(addr string, connected bool)

	// EnableError, if set, is returned by Enable.
	EnableError error
	// AdvertiseErrors are returned by successive StartAdvertising calls.
	AdvertiseErrors []error

	enabled     bool
	advertising bool
	starts      int
	stops       int
	names       []string
}

// NewFakeRadio creates a FakeRadio.
func NewFakeRadio() *FakeRadio {
	return &FakeRadio{}
}

func (f *FakeRadio) Enable() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.EnableError != nil {
		return f.EnableError
	}
	f.enabled = true
	return nil
}

func (f *FakeRadio) SetConnectHandler(fn func(addr string, connected bool)) {
	f.mu.Lock()
	f.handler = fn
	f.mu.Unlock()
}

func (f *FakeRadio) StartAdvertising(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if len(f.AdvertiseErrors) > 0 {
		err := f.AdvertiseErrors[0]
		f.AdvertiseErrors = f.AdvertiseErrors[1:]
		if err != nil {
			return err
		}
	}
	f.advertising = true
	f.names = append(f.names, name)
	return nil
}

func (f *FakeRadio) StopAdvertising() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.advertising = false
	return nil
}

// Connect simulates a central connecting.
func (f *FakeRadio) Connect(addr string) error {
	return f.fire(addr, true)
}

// Disconnect simulates a central disconnecting.
func (f *FakeRadio) Disconnect(addr string) error {
	return f.fire(addr, false)
}

func (f *FakeRadio) fire(addr string, connected bool) error {
	f.mu.Lock()
	h := f.handler
	if connected {
		f.advertising = false
	}
	f.mu.Unlock()
	if h == nil {
		return errors.New("no connect handler registered")
	}
	h(addr, connected)
	return nil
}

// Advertising reports whether the fake is currently advertising.
func (f *FakeRadio) Advertising() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.advertising
}

// Starts returns how many times StartAdvertising was called.
func (f *FakeRadio) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

// Stops returns how many times StopAdvertising was called.
func (f *FakeRadio) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// Names returns the local names advertised, in order.
func (f *FakeRadio) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.names...)
}

// Enabled reports whether Enable succeeded.
func (f *FakeRadio) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}
