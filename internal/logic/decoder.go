package logic

// Decoder maps raw codes and wireless events onto states for one deployment.
// Deployments without a battery monitor leave LowBattery false, which
// restricts the enumeration to three values.
type Decoder struct {
	LowBattery bool
}

// Decode converts a raw status code into a State.
// Unrecognized codes map to StateDisconnected instead of failing.
func (d Decoder) Decode(raw uint8) State {
	switch s := State(raw); s {
	case StateDisconnected, StateAdvertising, StateConnected:
		return s
	case StateLowBattery:
		if d.LowBattery {
			return s
		}
	}
	return StateDisconnected
}

// Normalize returns s if this deployment can render it, StateDisconnected otherwise.
func (d Decoder) Normalize(s State) State {
	return d.Decode(uint8(s))
}

// StateForEvent returns the state a wireless event transitions to.
// The bool is false when the event has no meaning in this deployment
// (BATTERY_LOW with low battery disabled, or an unknown kind).
func (d Decoder) StateForEvent(kind EventKind) (State, bool) {
	switch kind {
	case EventConnected:
		return StateConnected, true
	case EventDisconnected:
		return StateDisconnected, true
	case EventAdvertisingStarted:
		return StateAdvertising, true
	case EventBatteryLow:
		if d.LowBattery {
			return StateLowBattery, true
		}
	}
	return StateDisconnected, false
}
