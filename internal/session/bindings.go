// SPDX-License-Identifier: MPL-2.0

package session

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// InsideHost is the reserved binding set to true for every wrapped run.
const InsideHost = "insideHost"

// ErrInvalidBindingName is the sentinel error wrapped by InvalidBindingNameError.
var ErrInvalidBindingName = errors.New("invalid binding name")

type (
	// Binding is one named value, used where insertion order matters.
	Binding struct {
		Name  string
		Value any
	}

	// Bindings is the ordered name/value environment shared by all phases.
	// Values are scalars (string, integers, floats, bool, nil) or nested
	// slices of them. It is safe for concurrent use.
	Bindings struct {
		mu     sync.RWMutex
		order  []string
		values map[string]any
	}

	// InvalidBindingNameError is returned when a binding name is empty.
	InvalidBindingNameError struct {
		Name string
	}
)

// Error implements the error interface.
func (e *InvalidBindingNameError) Error() string {
	return fmt.Sprintf("invalid binding name %q", e.Name)
}

// Unwrap returns ErrInvalidBindingName so callers can use errors.Is for programmatic detection.
func (e *InvalidBindingNameError) Unwrap() error { return ErrInvalidBindingName }

// NewBindings returns bindings seeded with initial, in order.
func NewBindings(initial ...Binding) *Bindings {
	b := &Bindings{values: make(map[string]any, len(initial))}
	for _, bd := range initial {
		b.set(bd.Name, bd.Value)
	}
	return b
}

// Get returns the value bound to name.
func (b *Bindings) Get(name string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[name]
	return v, ok
}

// Set binds name to v. Rebinding keeps the original position.
func (b *Bindings) Set(name string, v any) error {
	if name == "" {
		return &InvalidBindingNameError{Name: name}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.set(name, v)
	return nil
}

// Delete removes name.
func (b *Bindings) Delete(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.values[name]; !ok {
		return
	}
	delete(b.values, name)
	b.order = slices.DeleteFunc(b.order, func(n string) bool { return n == name })
}

// Names returns the bound names in insertion order.
func (b *Bindings) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.order)
}

// All returns a snapshot of every binding in insertion order.
func (b *Bindings) All() []Binding {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Binding, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, Binding{Name: name, Value: b.values[name]})
	}
	return out
}

// Len returns the number of bindings.
func (b *Bindings) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order)
}

// InsideHost reports the reserved flag. It is false when unbound or not a bool.
func (b *Bindings) InsideHost() bool {
	v, _ := b.Get(InsideHost)
	inside, _ := v.(bool)
	return inside
}

func (b *Bindings) set(name string, v any) {
	if _, ok := b.values[name]; !ok {
		b.order = append(b.order, name)
	}
	b.values[name] = v
}
