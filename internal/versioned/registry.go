// Package versioned maps logical operation names to handler variants that
// each serve an inclusive range of API microversions.
package versioned

import (
	"fmt"
	"sync"

	"github.com/yaroslav/clusterplane/internal/apiversion"
	"github.com/yaroslav/clusterplane/models"
)

// Method is one handler variant of a named operation.
type Method[H any] struct {
	Name    string
	Start   apiversion.Version
	End     apiversion.Version
	Handler H
}

// Registry holds the handler variants of every operation.
//
// Ranges registered under the same name must not overlap. Resolve returns the
// first registered variant whose range contains the version, so callers
// register in ascending start order.
type Registry[H any] struct {
	mu      sync.RWMutex
	methods map[string][]Method[H]
}

// NewRegistry creates an empty registry.
func NewRegistry[H any]() *Registry[H] {
	return &Registry[H]{methods: make(map[string][]Method[H])}
}

// Register adds a handler variant for name serving [start, end].
func (r *Registry[H]) Register(name string, start, end apiversion.Version, handler H) error {
	if name == "" {
		return fmt.Errorf("versioned method name must not be empty")
	}
	if start.IsNull() || end.IsNull() {
		return fmt.Errorf("versioned method %s: null version bound", name)
	}
	if end.LessThan(start) {
		return fmt.Errorf("versioned method %s: start %s is after end %s", name, start, end)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[name] = append(r.methods[name], Method[H]{
		Name:    name,
		Start:   start,
		End:     end,
		Handler: handler,
	})
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry[H]) MustRegister(name string, start, end apiversion.Version, handler H) {
	if err := r.Register(name, start, end, handler); err != nil {
		panic(err)
	}
}

// Resolve returns the handler of name whose range contains v.
//
// Returns:
//   - H: the selected handler
//   - error: wraps models.ErrNoSuchVersionedOperation when no range matches
func (r *Registry[H]) Resolve(name string, v apiversion.Version) (H, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero H
	for _, m := range r.methods[name] {
		ok, err := apiversion.InRange(v, m.Start, m.End)
		if err != nil {
			return zero, fmt.Errorf("%w: %s at version %s: %v", models.ErrNoSuchVersionedOperation, name, v, err)
		}
		if ok {
			return m.Handler, nil
		}
	}
	return zero, fmt.Errorf("%w: %s at version %s", models.ErrNoSuchVersionedOperation, name, v)
}

// Methods returns the variants registered for name in registration order.
func (r *Registry[H]) Methods(name string) []Method[H] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Method[H], len(r.methods[name]))
	copy(out, r.methods[name])
	return out
}
