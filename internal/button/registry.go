package button

import (
	"sync"

	"github.com/sweeney/gpio-buttons/internal/gpio"
)

// Registry owns the acquired handles, keyed by button name.
// Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	handles map[string]*Handle
	pins    map[int]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		handles: make(map[string]*Handle),
		pins:    make(map[int]string),
	}
}

// Claimed reports whether a handle already holds pin.
func (r *Registry) Claimed(pin int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.pins[pin]
	return ok
}

// Add registers a handle. It fails with gpio.ErrInUse if the name or pin is
// already registered.
func (r *Registry) Add(spec Spec, line gpio.Line) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handles[spec.Name]; ok {
		return nil, gpio.ErrInUse
	}
	if _, ok := r.pins[spec.Pin]; ok {
		return nil, gpio.ErrInUse
	}

	h := &Handle{Spec: spec, Line: line}
	r.handles[spec.Name] = h
	r.pins[spec.Pin] = spec.Name
	r.order = append(r.order, spec.Name)
	return h, nil
}

// Get returns the handle for name.
func (r *Registry) Get(name string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[name]
	return h, ok
}

// Handles returns the registered handles in registration order.
func (r *Registry) Handles() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Handle, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.handles[name])
	}
	return out
}

// Len returns the number of registered handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Drain removes and returns every handle. A second Drain returns nothing,
// which is what makes release happen exactly once.
func (r *Registry) Drain() []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Handle, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.handles[name])
	}
	r.order = nil
	r.handles = make(map[string]*Handle)
	r.pins = make(map[int]string)
	return out
}
