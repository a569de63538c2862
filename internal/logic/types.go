// Package logic contains the pure state and pattern definitions for the link indicator.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Durations describe patterns; nothing here waits on them.
package logic

import (
	"fmt"
	"strings"
)

// State is the connection state of the wireless link.
// The numeric values match the raw status codes reported by event sources.
type State uint8

const (
	StateDisconnected State = 0
	StateAdvertising  State = 1
	StateConnected    State = 2
	StateLowBattery   State = 3
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateAdvertising:
		return "ADVERTISING"
	case StateConnected:
		return "CONNECTED"
	case StateLowBattery:
		return "LOW_BATTERY"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}

// States lists every state in code order.
func States() []State {
	return []State{StateDisconnected, StateAdvertising, StateConnected, StateLowBattery}
}

// ParseState parses a wire name (case-insensitive).
func ParseState(s string) (State, error) {
	for _, st := range States() {
		if strings.EqualFold(s, st.String()) {
			return st, nil
		}
	}
	return StateDisconnected, fmt.Errorf("unknown state %q", s)
}

// EventKind is a notification reported by the wireless stack.
type EventKind string

const (
	EventConnected          EventKind = "CONNECTED"
	EventDisconnected       EventKind = "DISCONNECTED"
	EventAdvertisingStarted EventKind = "ADVERTISING_STARTED"
	EventBatteryLow         EventKind = "BATTERY_LOW"
)

// ParseEventKind parses an event name (case-insensitive).
func ParseEventKind(s string) (EventKind, error) {
	for _, k := range []EventKind{EventConnected, EventDisconnected, EventAdvertisingStarted, EventBatteryLow} {
		if strings.EqualFold(s, string(k)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown event %q", s)
}
