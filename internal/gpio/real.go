//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealLED drives the indicator LED through the Linux GPIO character device.
type RealLED struct {
	line *gpiocdev.Line
	pin  int
}

// NewRealLED requests pin on chip as an output, initially off.
// activeLow inverts the physical level for LEDs wired to sink current.
func NewRealLED(chip string, pin int, activeLow bool) (*RealLED, error) {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	line, err := gpiocdev.RequestLine(chip, pin, opts...)
	if err != nil {
		return nil, fmt.Errorf("request LED pin %d: %w", pin, err)
	}

	return &RealLED{line: line, pin: pin}, nil
}

// Set drives the LED to the logical level on.
func (l *RealLED) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := l.line.SetValue(v); err != nil {
		return fmt.Errorf("set LED pin %d: %w", l.pin, err)
	}
	return nil
}

// Close turns the LED off and returns the pin to an input with pull-down
// (matching Pi boot defaults) before releasing it.
func (l *RealLED) Close() error {
	var errs []error

	if err := l.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("clear LED pin: %w", err))
	}
	if err := l.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure LED pin: %w", err))
	}
	if err := l.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close LED pin: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealButton reads the hold button through the Linux GPIO character device.
// The button shorts the pin to ground, so the line is requested with pull-up
// and active-low: a held button reads as logical 1.
type RealButton struct {
	line *gpiocdev.Line
	pin  int
}

// NewRealButton requests pin on chip as a pulled-up, active-low input.
func NewRealButton(chip string, pin int) (*RealButton, error) {
	line, err := gpiocdev.RequestLine(chip, pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.AsActiveLow,
	)
	if err != nil {
		return nil, fmt.Errorf("request button pin %d: %w", pin, err)
	}
	return &RealButton{line: line, pin: pin}, nil
}

// Pressed reports whether the button is currently held.
func (b *RealButton) Pressed() (bool, error) {
	v, err := b.line.Value()
	if err != nil {
		return false, fmt.Errorf("read button pin %d: %w", b.pin, err)
	}
	return v == 1, nil
}

// Close releases the button line.
func (b *RealButton) Close() error {
	if err := b.line.Close(); err != nil {
		return fmt.Errorf("close button pin: %w", err)
	}
	return nil
}
