package hostapi

import (
	"github.com/GriffinCanCode/domsim/internal/document"
	"github.com/GriffinCanCode/domsim/internal/query"
	"github.com/dop251/goja"
)

// Set is the declared list of globals a session installs.
type Set struct {
	bindings []Binding
}

// NewSet creates a set from bindings, in install order.
func NewSet(bindings ...Binding) Set {
	return Set{bindings: append([]Binding(nil), bindings...)}
}

// DefaultSet installs console and document.
func DefaultSet(shared *document.Shared, opts ...query.Option) Set {
	return NewSet(Console(), Document(shared, opts...))
}

// With returns a copy of s with b appended.
func (s Set) With(b Binding) Set {
	return NewSet(append(s.bindings[:len(s.bindings):len(s.bindings)], b)...)
}

// Without returns a copy of s with every binding named name removed.
func (s Set) Without(name string) Set {
	kept := make([]Binding, 0, len(s.bindings))
	for _, b := range s.bindings {
		if b.Name() != name {
			kept = append(kept, b)
		}
	}
	return Set{bindings: kept}
}

// Only returns a copy of s restricted to the given names.
func (s Set) Only(names ...string) Set {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	kept := make([]Binding, 0, len(s.bindings))
	for _, b := range s.bindings {
		if _, ok := want[b.Name()]; ok {
			kept = append(kept, b)
		}
	}
	return Set{bindings: kept}
}

// Names returns the global names in install order.
func (s Set) Names() []string {
	names := make([]string, len(s.bindings))
	for i, b := range s.bindings {
		names[i] = b.Name()
	}
	return names
}

// Install registers every binding into vm.
func (s Set) Install(vm *goja.Runtime) error {
	return Install(vm, s.bindings...)
}

// Release frees resources held by installed bindings.
func (s Set) Release() {
	for _, b := range s.bindings {
		if r, ok := b.(Releaser); ok {
			r.Release()
		}
	}
}
