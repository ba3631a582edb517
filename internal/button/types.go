// Package button maps named push-buttons onto GPIO lines and reports presses
// and holds. It depends only on the gpio.Chip and gpio.Line interfaces so it
// can be driven by fakes in tests.
package button

import (
	"time"

	"github.com/sweeney/gpio-buttons/internal/gpio"
)

// DefaultHoldInterval is the pause between hold notifications.
const DefaultHoldInterval = 100 * time.Millisecond

// Spec names a button and the BCM pin it is wired to.
type Spec struct {
	Name string
	Pin  int
}

// EventType identifies what happened to a button.
type EventType string

const (
	EventPressed  EventType = "PRESSED"
	EventHeld     EventType = "HELD"
	EventReleased EventType = "RELEASED"
)

// Event is delivered to sinks for every press, hold tick and release.
type Event struct {
	Timestamp time.Time
	Button    string
	Pin       int
	Type      EventType
	// Tick numbers HELD events within one press, starting at 1.
	Tick int
}

// Sink receives button events. Notify is called from the GPIO event
// goroutine and from hold goroutines, possibly concurrently, and must not
// block for long.
type Sink interface {
	Notify(event Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

// Notify calls f(event).
func (f SinkFunc) Notify(event Event) { f(event) }

// Handle is a Spec bound to the line acquired for it.
type Handle struct {
	Spec Spec
	Line gpio.Line
}

// InitError records a button that could not be acquired.
type InitError struct {
	Spec Spec
	Err  error
}

func (e *InitError) Error() string {
	return "button " + e.Spec.Name + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error { return e.Err }

// CleanupReport summarizes a Cleanup call.
type CleanupReport struct {
	Released  int
	Abandoned int // hold tasks still running when lines were released
	Errors    []error
}

// State is the instantaneous reading of one button.
type State struct {
	Spec     Spec
	Asserted bool
	Err      error
}
