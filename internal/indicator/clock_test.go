package indicator

import (
	"context"
	"sort"
	"time"

	"github.com/sweeney/link-indicator/internal/gpio"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// virtualClock advances only when the controller sleeps. Scripted actions
// fire at their virtual time, in the controller's goroutine, while the
// controller is between level changes. When the clock reaches end the
// context is cancelled, which stops Run.
type virtualClock struct {
	now    time.Duration
	end    time.Duration
	script []scheduled
	cancel context.CancelFunc
	sleeps []time.Duration
}

type scheduled struct {
	at time.Duration
	fn func()
}

func newVirtualClock(end time.Duration, cancel context.CancelFunc) *virtualClock {
	return &virtualClock{end: end, cancel: cancel}
}

// at schedules fn at virtual time d.
func (v *virtualClock) at(d time.Duration, fn func()) {
	v.script = append(v.script, scheduled{at: d, fn: fn})
	sort.SliceStable(v.script, func(i, j int) bool { return v.script[i].at < v.script[j].at })
}

func (v *virtualClock) Now() time.Time {
	return epoch.Add(v.now)
}

func (v *virtualClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.sleeps = append(v.sleeps, d)
	target := v.now + d
	for len(v.script) > 0 && v.script[0].at <= target {
		a := v.script[0]
		v.script = v.script[1:]
		v.now = a.at
		a.fn()
	}
	v.now = target
	if v.now >= v.end {
		v.cancel()
		return ctx.Err()
	}
	return nil
}

// edge is a level change at a virtual offset.
type edge struct {
	at time.Duration
	on bool
}

// edges converts recorded LED changes into virtual offsets, dropping
// anything at or after limit.
func edges(led *gpio.FakeLED, limit time.Duration) []edge {
	var out []edge
	for _, c := range led.Changes() {
		at := c.At.Sub(epoch)
		if at >= limit {
			continue
		}
		out = append(out, edge{at: at, on: c.On})
	}
	return out
}

// levelAt returns the LED level just after offset t.
func levelAt(es []edge, t time.Duration) bool {
	on := false
	for _, e := range es {
		if e.at > t {
			break
		}
		on = e.on
	}
	return on
}

// onTime sums lit time within [from, to).
func onTime(es []edge, from, to time.Duration) time.Duration {
	var total time.Duration
	on := levelAt(es, from)
	cursor := from
	for _, e := range es {
		if e.at <= from {
			continue
		}
		if e.at >= to {
			break
		}
		if on {
			total += e.at - cursor
		}
		on = e.on
		cursor = e.at
	}
	if on {
		total += to - cursor
	}
	return total
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
