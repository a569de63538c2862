// Package gpio provides the indicator LED output and the hold-button input
// with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Output drives a single binary output such as the indicator LED.
type Output interface {
	// Set drives the output to the logical level on (true = lit).
	Set(on bool) error

	// Close releases GPIO resources.
	Close() error
}

// Input samples a single binary input such as the hold button.
type Input interface {
	// Pressed returns the logical state of the input (true = held down).
	Pressed() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Defaults (BCM numbering on gpiochip0)
const (
	DefaultChip      = "gpiochip0"
	DefaultPinLED    = 17 // Indicator LED
	DefaultPinButton = 27 // Storage-clear hold button
)
