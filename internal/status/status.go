// Package status provides a thread-safe status tracker for the gpio-buttons daemon.
// It is fed by the button monitor as a sink and read by HTTP handlers and
// MQTT system events.
package status

import (
	"errors"
	"sync"
	"time"

	"github.com/sweeney/gpio-buttons/internal/button"
)

// Config contains daemon configuration for display.
type Config struct {
	Chip           string
	Pins           string
	HoldIntervalMs int64
	Broker         string
	HTTPAddr       string
}

// ButtonStatus is the tracked state of one configured button.
type ButtonStatus struct {
	Name        string
	Pin         int
	Initialized bool
	Error       string // init failure cause, empty when initialized
	Pressed     bool
	Presses     int
	Holds       int
	Releases    int
	LastEvent   button.EventType
	LastEventAt time.Time
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Buttons       []ButtonStatus
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Button returns the status for name.
func (s Snapshot) Button(name string) (ButtonStatus, bool) {
	for _, b := range s.Buttons {
		if b.Name == name {
			return b, true
		}
	}
	return ButtonStatus{}, false
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu      sync.RWMutex
	snap    Snapshot
	byName  map[string]int
	nowFunc func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		byName:  make(map[string]int),
		nowFunc: time.Now,
	}
}

// SetButtons records the configured table and which entries failed to
// initialize. Previous counts are discarded.
func (t *Tracker) SetButtons(specs []button.Spec, initErrs []error) {
	failed := make(map[string]string)
	for _, err := range initErrs {
		var ie *button.InitError
		if errors.As(err, &ie) {
			failed[ie.Spec.Name] = ie.Err.Error()
		}
	}

	buttons := make([]ButtonStatus, len(specs))
	byName := make(map[string]int, len(specs))
	for i, s := range specs {
		cause, bad := failed[s.Name]
		buttons[i] = ButtonStatus{
			Name:        s.Name,
			Pin:         s.Pin,
			Initialized: !bad,
			Error:       cause,
		}
		byName[s.Name] = i
	}

	t.mu.Lock()
	t.snap.Buttons = buttons
	t.byName = byName
	t.mu.Unlock()
}

// Notify updates counts from a button event. Events for unknown buttons
// are ignored.
func (t *Tracker) Notify(e button.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.byName[e.Button]
	if !ok {
		return
	}
	b := &t.snap.Buttons[i]
	switch e.Type {
	case button.EventPressed:
		b.Presses++
		b.Pressed = true
	case button.EventHeld:
		b.Holds++
	case button.EventReleased:
		b.Releases++
		b.Pressed = false
	}
	b.LastEvent = e.Type
	b.LastEventAt = e.Timestamp
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Buttons = append([]ButtonStatus(nil), t.snap.Buttons...)
	t.mu.RUnlock()
	s.Now = t.nowFunc()
	return s
}
