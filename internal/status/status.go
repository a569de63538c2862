// Package status provides a thread-safe status tracker for the link-indicator daemon.
// It is read by the HTTP handlers and the MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/link-indicator/internal/events"
	"github.com/sweeney/link-indicator/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	Source      string
	LowBattery  bool
	LEDPin      int
	ButtonPin   int
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	// Rendered is the pattern on the LED; valid once Rendering is true.
	Rendered  logic.State
	Rendering bool

	// LastPublished is the most recent value a producer wrote.
	LastPublished logic.State
	Published     bool

	Publications uint64
	Transitions  uint64

	Storage       string // storage-clear outcome, empty until it ran
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	MQTTQueued    int // messages held in the outbox
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// RecordPublication notes a state written by a producer.
func (t *Tracker) RecordPublication(s logic.State) {
	t.mu.Lock()
	t.snap.LastPublished = s
	t.snap.Published = true
	t.snap.Publications++
	t.mu.Unlock()
}

// RecordPattern notes the indicator switching to the pattern for s.
func (t *Tracker) RecordPattern(s logic.State) {
	t.mu.Lock()
	if t.snap.Rendering {
		t.snap.Transitions++
	}
	t.snap.Rendered = s
	t.snap.Rendering = true
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetMQTTQueued records how many messages wait for the broker.
func (t *Tracker) SetMQTTQueued(n int) {
	t.mu.Lock()
	t.snap.MQTTQueued = n
	t.mu.Unlock()
}

// SetStorage records the storage-clear outcome.
func (t *Tracker) SetStorage(outcome string) {
	t.mu.Lock()
	t.snap.Storage = outcome
	t.mu.Unlock()
}

// Attach keeps the tracker current from bus events.
// Returns a function that detaches it.
func (t *Tracker) Attach(bus *events.Bus) func() {
	unsubs := []func(){
		bus.Subscribe(func(e events.StatePublished) { t.RecordPublication(e.State) }),
		bus.Subscribe(func(e events.PatternStarted) { t.RecordPattern(e.State) }),
		bus.Subscribe(func(e events.StorageCleared) { t.SetStorage(e.Outcome) }),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
