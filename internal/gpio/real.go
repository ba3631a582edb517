//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/warthog618/go-gpiocdev"
)

// RealChip hands out lines from an actual GPIO character device.
type RealChip struct {
	chip *gpiocdev.Chip
}

// NewRealChip opens the named chip (e.g. "gpiochip0").
func NewRealChip(name string) (*RealChip, error) {
	chip, err := gpiocdev.NewChip(name, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", name, err)
	}
	return &RealChip{chip: chip}, nil
}

// Acquire requests the pin as an input with pull-up, active-low so a button
// wired to ground reads 1 while held, with rising-edge events on that logical
// value.
func (c *RealChip) Acquire(pin int) (Line, error) {
	if pin < 0 || pin >= c.chip.Lines() {
		return nil, ErrInvalidPin
	}

	rl := &realLine{pin: pin}
	line, err := c.chip.RequestLine(pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.AsActiveLow,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(rl.handleEvent))
	if err != nil {
		if errors.Is(err, syscall.EBUSY) {
			return nil, ErrInUse
		}
		if errors.Is(err, syscall.EINVAL) {
			return nil, ErrInvalidPin
		}
		return nil, fmt.Errorf("request line %d: %w", pin, err)
	}
	rl.line = line
	return rl, nil
}

// Close releases the chip.
func (c *RealChip) Close() error {
	return c.chip.Close()
}

type realLine struct {
	pin     int
	line    *gpiocdev.Line
	onPress atomic.Pointer[func()]
	once    sync.Once
	err     error
}

func (l *realLine) Pin() int { return l.pin }

// Asserted returns the logical (active-low) value of the line.
func (l *realLine) Asserted() (bool, error) {
	v, err := l.line.Value()
	if err != nil {
		if errors.Is(err, gpiocdev.ErrClosed) {
			return false, ErrClosed
		}
		return false, fmt.Errorf("read pin %d: %w", l.pin, err)
	}
	return v == 1, nil
}

func (l *realLine) OnPress(fn func()) {
	l.onPress.Store(&fn)
}

// handleEvent may fire before OnPress is set; such edges are dropped.
func (l *realLine) handleEvent(evt gpiocdev.LineEvent) {
	if evt.Type != gpiocdev.LineEventRisingEdge {
		return
	}
	if fn := l.onPress.Load(); fn != nil && *fn != nil {
		(*fn)()
	}
}

// Close reconfigures the line back to a pulled-up input, matching the state
// it was found in, before releasing it.
func (l *realLine) Close() error {
	l.once.Do(func() {
		l.onPress.Store(nil)
		var errs []error
		if err := l.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", l.pin, err))
		}
		if err := l.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", l.pin, err))
		}
		l.err = errors.Join(errs...)
	})
	return l.err
}
