// Package mqtt carries link events in and indicator/system events out,
// with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sweeney/link-indicator/internal/logic"
)

// TopicEvents is the inbound topic for wireless link events.
const TopicEvents = "link/indicator/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "link/indicator/system"

// TopicState is the retained topic for the rendered indicator state.
const TopicState = "link/indicator/state"

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishState sends an indicator state change to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishState(change StateChange) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active and how
// many messages are waiting for it.
type ConnectionStatus interface {
	IsConnected() bool
	Queued() int
}

// Handler receives decoded inbound link events. *source.Events satisfies it.
type Handler interface {
	Handle(kind logic.EventKind) bool
	HandleCode(raw uint8) logic.State
}

// StateChange is a pattern switch on the indicator.
type StateChange struct {
	Timestamp time.Time
	State     logic.State
	Previous  logic.State
	First     bool // no previous state
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// StatePayload is the MQTT message payload for an indicator state change.
type StatePayload struct {
	Indicator IndicatorPayload `json:"indicator"`
}

// IndicatorPayload contains the state change details.
type IndicatorPayload struct {
	Timestamp string `json:"timestamp"`
	State     string `json:"state"`
	Code      uint8  `json:"code"`
	Previous  string `json:"previous,omitempty"`
}

// FormatStatePayload creates the JSON payload for a state change.
func FormatStatePayload(change StateChange) ([]byte, error) {
	payload := StatePayload{
		Indicator: IndicatorPayload{
			Timestamp: change.Timestamp.UTC().Format(time.RFC3339),
			State:     change.State.String(),
			Code:      uint8(change.State),
		},
	}
	if !change.First {
		payload.Indicator.Previous = change.Previous.String()
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// EventPayload is an inbound message on TopicEvents. Exactly one of Event
// and State must be set.
type EventPayload struct {
	Link LinkPayload `json:"link"`
}

// LinkPayload names a link event or carries a raw status code.
type LinkPayload struct {
	Event string `json:"event,omitempty"`
	State *int   `json:"state,omitempty"`
}

// ParseEventPayload decodes and checks an inbound message.
func ParseEventPayload(data []byte) (EventPayload, error) {
	var p EventPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return EventPayload{}, fmt.Errorf("decode event payload: %w", err)
	}
	switch {
	case p.Link.Event != "" && p.Link.State != nil:
		return EventPayload{}, errors.New("event payload has both event and state")
	case p.Link.Event != "":
		if _, err := logic.ParseEventKind(p.Link.Event); err != nil {
			return EventPayload{}, err
		}
	case p.Link.State != nil:
	default:
		return EventPayload{}, errors.New("event payload has neither event nor state")
	}
	return p, nil
}

// Dispatch parses data and hands it to h. Malformed payloads are logged
// and dropped.
func Dispatch(h Handler, data []byte) error {
	p, err := ParseEventPayload(data)
	if err != nil {
		log.Printf("mqtt: dropping message: %v", err)
		return err
	}
	if p.Link.State != nil {
		h.HandleCode(rawCode(*p.Link.State))
		return nil
	}
	kind, _ := logic.ParseEventKind(p.Link.Event)
	h.Handle(kind)
	return nil
}

// rawCode narrows a wire state code to a byte. Codes that do not fit
// decode as Disconnected.
func rawCode(n int) uint8 {
	if n < 0 || n > 255 {
		return uint8(logic.StateDisconnected)
	}
	return uint8(n)
}

// Discard is a Publisher for deployments without a broker.
var Discard Publisher = discard{}

type discard struct{}

func (discard) PublishState(StateChange) error  { return nil }
func (discard) PublishSystem(SystemEvent) error { return nil }
func (discard) Close() error                    { return nil }
