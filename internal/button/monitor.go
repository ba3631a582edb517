package button

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/gpio-buttons/internal/gpio"
)

// Options configures a Monitor. Zero values are replaced with defaults.
type Options struct {
	// Out receives the human-readable status lines. Defaults to io.Discard.
	Out io.Writer

	// Logger receives diagnostics. Defaults to a no-op logger.
	Logger *zap.SugaredLogger

	// HoldInterval is the pause between hold notifications.
	HoldInterval time.Duration

	// Sinks are notified of every event after the status line is written.
	Sinks []Sink

	// Now is the clock used for event timestamps.
	Now func() time.Time
}

// Monitor claims button lines and reports presses and holds.
type Monitor struct {
	chip     gpio.Chip
	registry *Registry
	log      *zap.SugaredLogger
	interval time.Duration
	sinks    []Sink
	now      func() time.Time

	outMu sync.Mutex
	out   io.Writer

	holds  sync.WaitGroup
	active atomic.Int64
}

// NewMonitor creates a Monitor that acquires lines from chip.
func NewMonitor(chip gpio.Chip, opts Options) *Monitor {
	m := &Monitor{
		chip:     chip,
		registry: NewRegistry(),
		log:      opts.Logger,
		interval: opts.HoldInterval,
		sinks:    opts.Sinks,
		now:      opts.Now,
		out:      opts.Out,
	}
	if m.log == nil {
		m.log = zap.NewNop().Sugar()
	}
	if m.interval <= 0 {
		m.interval = DefaultHoldInterval
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.out == nil {
		m.out = io.Discard
	}
	return m
}

// Registry returns the handles owned by the monitor.
func (m *Monitor) Registry() *Registry {
	return m.registry
}

// Init acquires every spec in order. A failure only drops that button;
// the returned slice holds one *InitError per failed spec.
func (m *Monitor) Init(specs []Spec) []error {
	var errs []error
	for _, spec := range specs {
		if err := m.add(spec); err != nil {
			m.printf("Failed to initialize button %s on GPIO %d: %v\n", spec.Name, spec.Pin, err)
			m.log.Warnw("button init failed", "button", spec.Name, "pin", spec.Pin, "error", err)
			errs = append(errs, &InitError{Spec: spec, Err: err})
			continue
		}
		m.printf("Initialized button %s on GPIO %d\n", spec.Name, spec.Pin)
	}
	m.log.Infow("buttons initialized", "ok", m.registry.Len(), "failed", len(errs))
	return errs
}

func (m *Monitor) add(spec Spec) error {
	if m.registry.Claimed(spec.Pin) {
		return gpio.ErrInUse
	}
	line, err := m.chip.Acquire(spec.Pin)
	if err != nil {
		return err
	}
	h, err := m.registry.Add(spec, line)
	if err != nil {
		if cerr := line.Close(); cerr != nil {
			m.log.Warnw("release failed", "button", spec.Name, "pin", spec.Pin, "error", cerr)
		}
		return err
	}
	b := &binding{m: m, h: h}
	line.OnPress(b.pressed)
	return nil
}

// binding carries the button a press callback belongs to.
type binding struct {
	m *Monitor
	h *Handle
}

// pressed reports the press, then starts an independent hold task.
func (b *binding) pressed() {
	m := b.m
	m.printf("Button %s pressed!\n", b.h.Spec.Name)
	m.notify(b.event(EventPressed, 0))

	m.holds.Add(1)
	m.active.Add(1)
	go b.hold()
}

// hold reports the button as held every interval until it reads released.
func (b *binding) hold() {
	m := b.m
	defer m.holds.Done()
	defer m.active.Add(-1)

	for tick := 1; ; tick++ {
		on, err := b.h.Line.Asserted()
		if err != nil {
			m.log.Debugw("hold stopped", "button", b.h.Spec.Name, "error", err)
			return
		}
		if !on {
			m.notify(b.event(EventReleased, tick-1))
			return
		}
		m.printf("Button %s held!\n", b.h.Spec.Name)
		m.notify(b.event(EventHeld, tick))
		time.Sleep(m.interval)
	}
}

func (b *binding) event(t EventType, tick int) Event {
	return Event{
		Timestamp: b.m.now(),
		Button:    b.h.Spec.Name,
		Pin:       b.h.Spec.Pin,
		Type:      t,
		Tick:      tick,
	}
}

// ActiveHolds returns the number of hold tasks currently running.
func (m *Monitor) ActiveHolds() int {
	return int(m.active.Load())
}

// Wait blocks until every hold task has returned or ctx is done.
func (m *Monitor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.holds.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReadStates reads every registered line once.
func (m *Monitor) ReadStates() []State {
	handles := m.registry.Handles()
	states := make([]State, len(handles))
	for i, h := range handles {
		on, err := h.Line.Asserted()
		states[i] = State{Spec: h.Spec, Asserted: on, Err: err}
	}
	return states
}

// Cleanup releases every acquired line exactly once. Hold tasks still
// running are not waited for; they stop on their next read of the released
// line and are counted in the report.
func (m *Monitor) Cleanup() CleanupReport {
	m.printf("Cleaning up GPIO...\n")

	rep := CleanupReport{Abandoned: m.ActiveHolds()}
	for _, h := range m.registry.Drain() {
		if err := h.Line.Close(); err != nil {
			rep.Errors = append(rep.Errors, fmt.Errorf("release %s: %w", h.Spec.Name, err))
		}
		rep.Released++
	}

	m.log.Infow("gpio released", "released", rep.Released, "abandoned_holds", rep.Abandoned, "errors", len(rep.Errors))
	for _, err := range rep.Errors {
		m.log.Warnw("release failed", "error", err)
	}
	return rep
}

func (m *Monitor) notify(e Event) {
	for _, s := range m.sinks {
		s.Notify(e)
	}
}

func (m *Monitor) printf(format string, args ...any) {
	m.outMu.Lock()
	fmt.Fprintf(m.out, format, args...)
	m.outMu.Unlock()
}
