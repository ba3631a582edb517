// Package keys turns button presses into key strokes on a virtual uinput
// keyboard, so the buttons can drive a console application like a keypad.
package keys

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bendahl/uinput"
	"go.uber.org/zap"

	"github.com/sweeney/gpio-buttons/internal/button"
)

// DefaultDevice is the uinput control node.
const DefaultDevice = "/dev/uinput"

// DeviceName is the name the virtual keyboard registers with the kernel.
const DeviceName = "gpio-keyboard"

// DefaultKeymap maps the default button names to Linux key codes.
var DefaultKeymap = map[string]int{
	"DOWN":      uinput.KeyDown,
	"UP":        uinput.KeyUp,
	"LEFT":      uinput.KeyLeft,
	"RIGHT":     uinput.KeyRight,
	"ENTER":     uinput.KeyEnter,
	"BACKSPACE": uinput.KeyBackspace,
	"ESCAPE":    uinput.KeyEsc,
}

// Keyboard is a virtual keyboard. Each call emits the key event followed
// by a SYN_REPORT.
type Keyboard interface {
	KeyDown(key int) error
	KeyUp(key int) error
	Close() error
}

// OpenKeyboard creates a virtual keyboard through the uinput node at path.
func OpenKeyboard(path string) (Keyboard, error) {
	kb, err := uinput.CreateKeyboard(path, []byte(DeviceName))
	if err != nil {
		return nil, fmt.Errorf("create uinput keyboard: %w", err)
	}
	return kb, nil
}

// Injector is a button.Sink that holds a key down from a button's press
// until its release. Buttons missing from the keymap are ignored.
type Injector struct {
	kb     Keyboard
	keymap map[string]int
	log    *zap.SugaredLogger

	mu     sync.Mutex
	down   map[string]int // button name -> key held down
	closed bool
}

// NewInjector creates an Injector writing to kb.
func NewInjector(kb Keyboard, keymap map[string]int, log *zap.SugaredLogger) *Injector {
	return &Injector{
		kb:     kb,
		keymap: keymap,
		log:    log,
		down:   make(map[string]int),
	}
}

// Mapped reports whether name has a key.
func (in *Injector) Mapped(name string) bool {
	_, ok := in.keymap[name]
	return ok
}

// Notify sends key down on PRESSED and key up on RELEASED. A press that
// arrives while the key is still down (a re-press seen before the previous
// hold ended) is sent as a fresh stroke.
func (in *Injector) Notify(e button.Event) {
	key, ok := in.keymap[e.Button]
	if !ok {
		return
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return
	}

	switch e.Type {
	case button.EventPressed:
		if _, held := in.down[e.Button]; held {
			in.keyUp(e.Button, key)
		}
		if err := in.kb.KeyDown(key); err != nil {
			in.log.Warnw("key down failed", "button", e.Button, "key", key, "error", err)
			return
		}
		in.down[e.Button] = key
		in.log.Debugw("key down", "button", e.Button, "key", key)
	case button.EventReleased:
		if _, held := in.down[e.Button]; held {
			in.keyUp(e.Button, key)
		}
	}
}

func (in *Injector) keyUp(name string, key int) {
	delete(in.down, name)
	if err := in.kb.KeyUp(key); err != nil {
		in.log.Warnw("key up failed", "button", name, "key", key, "error", err)
		return
	}
	in.log.Debugw("key up", "button", name, "key", key)
}

// Close releases any key still held and destroys the virtual keyboard.
// Later events are ignored.
func (in *Injector) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return nil
	}
	in.closed = true

	names := make([]string, 0, len(in.down))
	for name := range in.down {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		in.keyUp(name, in.down[name])
	}
	return in.kb.Close()
}
