package logic

import (
	"fmt"
	"strings"
	"time"
)

// Step holds the LED at one level for a duration.
type Step struct {
	On       bool
	Duration time.Duration
}

// Unit is a pattern sub-unit: the steps rendered between two state checks.
type Unit []Step

// Duration returns the length of the unit.
func (u Unit) Duration() time.Duration {
	var d time.Duration
	for _, s := range u {
		d += s.Duration
	}
	return d
}

// Pattern is a repeating sequence of sub-units. The controller renders
// each unit in order, re-checking the state after every one, and starts
// over from the first unit when the sequence ends.
type Pattern struct {
	State State
	Units []Unit
}

// Duration returns the length of one full cycle.
func (p Pattern) Duration() time.Duration {
	var d time.Duration
	for _, u := range p.Units {
		d += u.Duration()
	}
	return d
}

// OnTime returns how long the LED is lit during one full cycle.
func (p Pattern) OnTime() time.Duration {
	var d time.Duration
	for _, u := range p.Units {
		for _, s := range u {
			if s.On {
				d += s.Duration
			}
		}
	}
	return d
}

// Latency returns the longest unit, which bounds how late a state change
// can be noticed.
func (p Pattern) Latency() time.Duration {
	var longest time.Duration
	for _, u := range p.Units {
		if d := u.Duration(); d > longest {
			longest = d
		}
	}
	return longest
}

// UnitsEndOff reports whether every unit leaves the LED off.
func (p Pattern) UnitsEndOff() bool {
	for _, u := range p.Units {
		if len(u) == 0 || u[len(u)-1].On {
			return false
		}
	}
	return len(p.Units) > 0
}

// Describe renders the pattern as its on/off timings.
func (p Pattern) Describe() string {
	if p.OnTime() == p.Duration() {
		return "steady on"
	}
	var parts []string
	for _, u := range p.Units {
		for _, st := range u {
			level := "off"
			if st.On {
				level = "on"
			}
			parts = append(parts, fmt.Sprintf("%s %v", level, st.Duration))
		}
	}
	return strings.Join(parts, ", ")
}

// Pattern timings.
const (
	SlowBlinkOn  = 100 * time.Millisecond
	SlowBlinkOff = 900 * time.Millisecond

	FastBlinkOn  = 250 * time.Millisecond
	FastBlinkOff = 250 * time.Millisecond

	SteadyTick = 100 * time.Millisecond

	BurstOn    = 100 * time.Millisecond
	BurstOff   = 100 * time.Millisecond
	BurstCount = 3
	BurstPause = 1000 * time.Millisecond
)

// PatternFor returns the pattern rendered for s.
// States without a pattern render the Disconnected pattern.
func PatternFor(s State) Pattern {
	switch s {
	case StateAdvertising:
		return Pattern{State: s, Units: []Unit{
			{{On: true, Duration: FastBlinkOn}, {On: false, Duration: FastBlinkOff}},
		}}
	case StateConnected:
		// Steady on. The unit is a single tick so a pending change is
		// noticed within SteadyTick.
		return Pattern{State: s, Units: []Unit{
			{{On: true, Duration: SteadyTick}},
		}}
	case StateLowBattery:
		burst := make(Unit, 0, 2*BurstCount)
		for range BurstCount {
			burst = append(burst,
				Step{On: true, Duration: BurstOn},
				Step{On: false, Duration: BurstOff},
			)
		}
		return Pattern{State: s, Units: []Unit{
			burst,
			{{On: false, Duration: BurstPause}},
		}}
	default:
		return Pattern{State: StateDisconnected, Units: []Unit{
			{{On: true, Duration: SlowBlinkOn}, {On: false, Duration: SlowBlinkOff}},
		}}
	}
}
