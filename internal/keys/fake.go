package keys

import "sync"

// Stroke is one key event written to a FakeKeyboard.
type Stroke struct {
	Key  int
	Down bool
}

// FakeKeyboard records key events for testing.
type FakeKeyboard struct {
	mu      sync.Mutex
	strokes []Stroke

	// DownError, if set, is returned by KeyDown and nothing is recorded.
	DownError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeKeyboard creates a new FakeKeyboard.
func NewFakeKeyboard() *FakeKeyboard {
	return &FakeKeyboard{}
}

// KeyDown records a key press.
func (f *FakeKeyboard) KeyDown(key int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DownError != nil {
		return f.DownError
	}
	f.strokes = append(f.strokes, Stroke{Key: key, Down: true})
	return nil
}

// KeyUp records a key release.
func (f *FakeKeyboard) KeyUp(key int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strokes = append(f.strokes, Stroke{Key: key})
	return nil
}

// Close marks the keyboard as closed.
func (f *FakeKeyboard) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Strokes returns a copy of the recorded key events.
func (f *FakeKeyboard) Strokes() []Stroke {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Stroke(nil), f.strokes...)
}

// IsClosed reports whether Close was called.
func (f *FakeKeyboard) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Closed
}
