package gpio

import (
	"sync"
)

// FakeChip is a test double that hands out simulated lines.
type FakeChip struct {
	mu sync.Mutex

	// NumLines bounds valid offsets; Acquire fails with ErrInvalidPin
	// outside [0, NumLines). Zero means 54, the BCM2835 line count.
	NumLines int

	// Failures maps a pin to the error Acquire returns for it.
	Failures map[int]error

	// CloseFailures maps a pin to the error its line's Close returns.
	CloseFailures map[int]error

	// Lines contains every line handed out, by pin. Released lines stay
	// in the map so tests can inspect them.
	Lines map[int]*FakeLine

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeChip creates a FakeChip with no failures configured.
func NewFakeChip() *FakeChip {
	return &FakeChip{
		Failures:      make(map[int]error),
		CloseFailures: make(map[int]error),
		Lines:         make(map[int]*FakeLine),
	}
}

// Fail makes subsequent Acquire calls for pin return err.
func (c *FakeChip) Fail(pin int, err error) {
	c.mu.Lock()
	c.Failures[pin] = err
	c.mu.Unlock()
}

// Acquire returns a new FakeLine, enforcing one claim per pin.
func (c *FakeChip) Acquire(pin int) (Line, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.Failures[pin]; err != nil {
		return nil, err
	}
	n := c.NumLines
	if n == 0 {
		n = 54
	}
	if pin < 0 || pin >= n {
		return nil, ErrInvalidPin
	}
	if l, ok := c.Lines[pin]; ok && !l.IsClosed() {
		return nil, ErrInUse
	}

	l := &FakeLine{pin: pin, closeErr: c.CloseFailures[pin]}
	c.Lines[pin] = l
	return l, nil
}

// Line returns the line handed out for pin, or nil.
func (c *FakeChip) Line(pin int) *FakeLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Lines[pin]
}

// Close marks the chip as closed.
func (c *FakeChip) Close() error {
	c.mu.Lock()
	c.Closed = true
	c.mu.Unlock()
	return nil
}

// FakeLine is a simulated button line driven by Press and Release.
// Safe for concurrent use.
type FakeLine struct {
	mu       sync.Mutex
	pin      int
	asserted bool
	onPress  func()
	closes   int
	closeErr error

	// ReadError, if set, is returned by Asserted.
	ReadError error
}

// Pin returns the offset the line was acquired on.
func (l *FakeLine) Pin() int { return l.pin }

// Asserted returns the simulated level. Reads after Close fail with ErrClosed.
func (l *FakeLine) Asserted() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closes > 0 {
		return false, ErrClosed
	}
	if l.ReadError != nil {
		return false, l.ReadError
	}
	return l.asserted, nil
}

// OnPress sets the edge callback.
func (l *FakeLine) OnPress(fn func()) {
	l.mu.Lock()
	l.onPress = fn
	l.mu.Unlock()
}

// Press asserts the line. On a released->asserted transition the press
// callback runs synchronously on the caller's goroutine, as the edge event
// goroutine would.
func (l *FakeLine) Press() {
	l.mu.Lock()
	edge := !l.asserted && l.closes == 0
	l.asserted = true
	fn := l.onPress
	l.mu.Unlock()

	if edge && fn != nil {
		fn()
	}
}

// Release deasserts the line.
func (l *FakeLine) Release() {
	l.mu.Lock()
	l.asserted = false
	l.mu.Unlock()
}

// Close releases the line and counts the call. It returns the error
// configured in FakeChip.CloseFailures, if any, but the line is still
// released.
func (l *FakeLine) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closes++
	l.onPress = nil
	return l.closeErr
}

// Closes returns how many times Close was called.
func (l *FakeLine) Closes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closes
}

// IsClosed reports whether Close was called at least once.
func (l *FakeLine) IsClosed() bool {
	return l.Closes() > 0
}
