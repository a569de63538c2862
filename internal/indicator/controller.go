// Package indicator renders the connection state on the status LED.
//
// The Controller is the only writer of the LED. It waits for a state, renders
// the matching pattern one sub-unit at a time, and after every sub-unit asks
// the cell whether the state is still current. When it is not, the LED is
// driven off and the controller waits for the new value.
package indicator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sweeney/link-indicator/internal/events"
	"github.com/sweeney/link-indicator/internal/gpio"
	"github.com/sweeney/link-indicator/internal/linkstate"
	"github.com/sweeney/link-indicator/internal/logic"
	"github.com/sweeney/link-indicator/internal/metrics"
)

// Sleeper blocks for d or until ctx is done, returning ctx.Err() in the latter case.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real-time Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Controller drives the LED from the state cell.
type Controller struct {
	led     gpio.Output
	cell    *linkstate.Cell
	sleep   Sleeper
	now     func() time.Time
	decoder logic.Decoder
	bus     *events.Bus

	on       bool
	rendered logic.State
	started  bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithSleeper replaces the real-time sleeper. Tests use a virtual clock.
func WithSleeper(s Sleeper) Option {
	return func(c *Controller) {
		c.sleep = s
	}
}

// WithClock sets the time source for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithDecoder sets which states this deployment renders.
// The default renders all four, including low battery.
func WithDecoder(d logic.Decoder) Option {
	return func(c *Controller) {
		c.decoder = d
	}
}

// WithBus publishes a PatternStarted event on every pattern switch.
func WithBus(b *events.Bus) Option {
	return func(c *Controller) {
		c.bus = b
	}
}

// New creates a Controller. The controller takes ownership of led.
func New(led gpio.Output, cell *linkstate.Cell, opts ...Option) *Controller {
	c := &Controller{
		led:     led,
		cell:    cell,
		sleep:   Sleep,
		now:     time.Now,
		decoder: logic.Decoder{LowBattery: true},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run renders patterns until ctx is done or the LED cannot be driven.
// Nothing is lit before the first state is published.
// On cancellation the LED is left off and ctx.Err() is returned; an LED
// error is returned as-is and should be treated as fatal.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.led.Set(false); err != nil {
		return fmt.Errorf("drive LED: %w", err)
	}
	c.on = false
	metrics.SetLED(false)

	for {
		raw, err := c.cell.Wait(ctx)
		if err != nil {
			return c.stop(err)
		}

		state := c.decoder.Normalize(raw)
		c.enter(state)

		if err := c.render(ctx, raw, logic.PatternFor(state)); err != nil {
			return c.stop(err)
		}
	}
}

// render loops over the pattern's units until the cell no longer holds raw.
// Every exit path leaves the LED off.
func (c *Controller) render(ctx context.Context, raw logic.State, p logic.Pattern) error {
	for {
		for _, unit := range p.Units {
			for _, step := range unit {
				if err := c.set(step.On); err != nil {
					return err
				}
				if err := c.sleep(ctx, step.Duration); err != nil {
					return err
				}
			}
			metrics.IncSubUnit(p.State)

			if !c.cell.Still(raw) {
				return c.set(false)
			}
		}
	}
}

// set writes the LED only when the level changes.
func (c *Controller) set(on bool) error {
	if on == c.on {
		return nil
	}
	if err := c.led.Set(on); err != nil {
		return fmt.Errorf("drive LED: %w", err)
	}
	c.on = on
	metrics.SetLED(on)
	return nil
}

func (c *Controller) enter(state logic.State) {
	if c.started && state == c.rendered {
		return
	}

	ev := events.PatternStarted{
		State:     state,
		Previous:  c.rendered,
		First:     !c.started,
		Timestamp: c.now(),
	}
	if c.started {
		log.Printf("indicator: %s -> %s", c.rendered, state)
		metrics.IncTransitions()
	} else {
		log.Printf("indicator: first state %s", state)
	}

	c.rendered = state
	c.started = true

	metrics.SetIndicatorState(state)
	c.bus.Publish(ev)
}

func (c *Controller) stop(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if offErr := c.set(false); offErr != nil {
			log.Printf("indicator: %v while stopping", offErr)
		}
		log.Printf("indicator: stopped")
	}
	return err
}
