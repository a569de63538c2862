// Package source turns producer notifications into published connection states.
//
// A deployment runs exactly one producer: the simulator, the MQTT event
// subscription or the BLE adapter. Kind names them; the daemon refuses to
// start with anything else.
package source

import (
	"fmt"
	"log"
	"time"

	"github.com/sweeney/link-indicator/internal/events"
	"github.com/sweeney/link-indicator/internal/logic"
	"github.com/sweeney/link-indicator/internal/metrics"
)

// Kind names the single active producer.
type Kind string

const (
	KindSimulator Kind = "simulator"
	KindMQTT      Kind = "mqtt"
	KindBLE       Kind = "ble"
)

// ParseKind validates a producer name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindSimulator, KindMQTT, KindBLE:
		return k, nil
	}
	return "", fmt.Errorf("unknown source %q (want %s, %s or %s)", s, KindSimulator, KindMQTT, KindBLE)
}

// Sink receives published states. *linkstate.Cell satisfies it.
type Sink interface {
	Publish(s logic.State)
}

// Events maps producer notifications onto the sink.
type Events struct {
	name    string
	sink    Sink
	decoder logic.Decoder
	bus     *events.Bus
	now     func() time.Time
}

// NewEvents creates the mapping for the producer called name.
// bus may be nil.
func NewEvents(name string, sink Sink, decoder logic.Decoder, bus *events.Bus) *Events {
	return &Events{
		name:    name,
		sink:    sink,
		decoder: decoder,
		bus:     bus,
		now:     time.Now,
	}
}

// Handle publishes the state for a wireless event.
// It reports false when the event has no state in this deployment.
func (e *Events) Handle(kind logic.EventKind) bool {
	s, ok := e.decoder.StateForEvent(kind)
	if !ok {
		log.Printf("%s: ignoring event %s", e.name, kind)
		metrics.IncIgnored(e.name, kind)
		return false
	}
	log.Printf("%s: event %s", e.name, kind)
	e.Publish(s)
	return true
}

// HandleCode publishes a raw status code. Unknown codes publish Disconnected.
func (e *Events) HandleCode(raw uint8) logic.State {
	s := e.decoder.Decode(raw)
	if uint8(s) != raw {
		log.Printf("%s: status code %d decoded as %s", e.name, raw, s)
	}
	e.Publish(s)
	return s
}

// Publish writes s into the sink.
func (e *Events) Publish(s logic.State) {
	e.sink.Publish(s)
	metrics.IncPublication(e.name, s)
	e.bus.Publish(events.StatePublished{
		Source:    e.name,
		State:     s,
		Timestamp: e.now(),
	})
}
