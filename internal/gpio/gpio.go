// Package gpio provides button input lines with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "errors"

// DefaultChip is the character device holding the Raspberry Pi header lines.
const DefaultChip = "gpiochip0"

// Consumer is the label shown by gpioinfo for lines we hold.
const Consumer = "gpio-buttons"

var (
	// ErrInUse is returned when the line is already claimed.
	ErrInUse = errors.New("already in use")

	// ErrInvalidPin is returned for offsets the chip does not have.
	ErrInvalidPin = errors.New("invalid pin")

	// ErrClosed is returned when reading a line after it was released.
	ErrClosed = errors.New("line closed")
)

// Chip hands out button lines.
type Chip interface {
	// Acquire requests the pin as a pulled-up, active-low input with
	// press-edge detection. Fails with ErrInUse or ErrInvalidPin (possibly
	// wrapped) when the pin cannot be claimed.
	Acquire(pin int) (Line, error)

	// Close releases the chip. Lines already acquired stay valid until
	// closed themselves.
	Close() error
}

// Line is a single claimed button input.
type Line interface {
	// Pin returns the offset this line was acquired on.
	Pin() int

	// Asserted reports whether the button is currently held down.
	Asserted() (bool, error)

	// OnPress sets the function called on every released->asserted edge.
	// Callbacks run on the GPIO event goroutine.
	OnPress(fn func())

	// Close releases the line. Safe to call more than once.
	Close() error
}
