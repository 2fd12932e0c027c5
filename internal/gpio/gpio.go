// Package gpio drives the lamp relay with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Relay switches the lamp output.
type Relay interface {
	// Set drives the relay. The board is active-low: logical ON pulls the
	// line to 0.
	Set(on bool) error

	// Close switches the relay off and releases GPIO resources.
	Close() error
}

// Pin definition (BCM numbering)
const (
	PinRelay = 17 // Lamp relay
)
