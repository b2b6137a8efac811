// Package registry keeps components keyed by the capability they provide.
package registry

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// DefaultName is used when a component is provided without a name.
const DefaultName = ""

var (
	ErrNotFound     = errors.New("component not found")
	ErrDuplicate    = errors.New("component already provided")
	ErrNotInterface = errors.New("capability must be an interface type")
	ErrNilComponent = errors.New("component is nil")
)

type key struct {
	capability reflect.Type
	name       string
}

// Registration pairs a provided component with its name.
type Registration[T any] struct {
	Name      string
	Component T
}

// Registry holds components by (capability, name). The zero value is not
// usable; call New.
type Registry struct {
	mu         sync.RWMutex
	components map[key]any
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{components: make(map[key]any)}
}

func capabilityOf[T any]() (reflect.Type, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Interface {
		return nil, fmt.Errorf("%w: %s", ErrNotInterface, t)
	}
	return t, nil
}

// Provide registers impl as the component providing capability T under name.
func Provide[T any](r *Registry, name string, impl T) error {
	capability, err := capabilityOf[T]()
	if err != nil {
		return err
	}
	if v := reflect.ValueOf(impl); !v.IsValid() || (v.Kind() == reflect.Pointer && v.IsNil()) {
		return fmt.Errorf("%w: %s %q", ErrNilComponent, capability, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{capability: capability, name: name}
	if _, exists := r.components[k]; exists {
		return fmt.Errorf("%w: %s %q", ErrDuplicate, capability, name)
	}
	r.components[k] = impl
	return nil
}

// Lookup returns the component providing T under name.
func Lookup[T any](r *Registry, name string) (T, error) {
	var zero T
	capability, err := capabilityOf[T]()
	if err != nil {
		return zero, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.components[key{capability: capability, name: name}]
	if !ok {
		return zero, fmt.Errorf("%w: %s %q", ErrNotFound, capability, name)
	}
	return c.(T), nil
}

// All returns every component providing T, sorted by name.
func All[T any](r *Registry) []Registration[T] {
	capability, err := capabilityOf[T]()
	if err != nil {
		return nil
	}

	r.mu.RLock()
	var regs []Registration[T]
	for k, c := range r.components {
		if k.capability == capability {
			regs = append(regs, Registration[T]{Name: k.name, Component: c.(T)})
		}
	}
	r.mu.RUnlock()

	sort.Slice(regs, func(i, j int) bool { return regs[i].Name < regs[j].Name })
	return regs
}

// Remove drops the component providing T under name. It reports whether
// anything was removed.
func Remove[T any](r *Registry, name string) bool {
	capability, err := capabilityOf[T]()
	if err != nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{capability: capability, name: name}
	if _, ok := r.components[k]; !ok {
		return false
	}
	delete(r.components, k)
	return true
}

// Len returns the number of registered components across all capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.components)
}

// Reset removes every component.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components = make(map[key]any)
}
