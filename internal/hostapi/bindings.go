package hostapi

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/domsim/internal/document"
	"github.com/GriffinCanCode/domsim/internal/jsobject"
	"github.com/GriffinCanCode/domsim/internal/query"
	"github.com/dop251/goja"
)

// ErrDuplicateGlobal is returned when a binding's global name is already taken.
var ErrDuplicateGlobal = errors.New("global already registered")

// Global names installed by the built-in bindings.
const (
	ConsoleGlobal  = "console"
	DocumentGlobal = "document"
)

// ConsoleMethods lists every method of the console binding.
var ConsoleMethods = []string{
	"log", "error", "table", "info", "warn", "debug", "trace", "dir", "dirxml",
	"group", "groupCollapsed", "groupEnd", "time", "timeEnd", "count", "assert",
	"profile", "profileEnd", "clear",
}

// Binding is a global installed into a script runtime.
type Binding interface {
	Name() string
	Install(vm *goja.Runtime) error
}

// Releaser is implemented by bindings that hold host resources.
type Releaser interface {
	Release()
}

// Install registers each binding as a global. Any failure is fatal to the
// runtime being set up.
func Install(vm *goja.Runtime, bindings ...Binding) error {
	seen := make(map[string]struct{}, len(bindings))
	for _, b := range bindings {
		name := b.Name()
		if _, dup := seen[name]; dup || vm.GlobalObject().Get(name) != nil {
			return fmt.Errorf("install %q: %w", name, ErrDuplicateGlobal)
		}
		seen[name] = struct{}{}

		if err := b.Install(vm); err != nil {
			return fmt.Errorf("install %q: %w", name, err)
		}
	}
	return nil
}

type consoleBinding struct{}

// Console returns the diagnostic surface: every method accepts anything and
// returns undefined.
func Console() Binding {
	return consoleBinding{}
}

func (consoleBinding) Name() string { return ConsoleGlobal }

func (consoleBinding) Install(vm *goja.Runtime) error {
	methods := make(jsobject.Mapping, len(ConsoleMethods))
	for _, name := range ConsoleMethods {
		methods[name] = jsobject.Noop()
	}
	return vm.Set(ConsoleGlobal, jsobject.New(methods).AsValue(vm))
}

// DocumentBinding exposes querySelector over a shared document.
type DocumentBinding struct {
	shared *document.Shared
	opts   []query.Option
	handle *document.Shared
}

// Document returns the document binding. Install derives its own handle from
// shared; Release gives it back.
func Document(shared *document.Shared, opts ...query.Option) *DocumentBinding {
	return &DocumentBinding{shared: shared, opts: opts}
}

func (d *DocumentBinding) Name() string { return DocumentGlobal }

func (d *DocumentBinding) Install(vm *goja.Runtime) error {
	if d.handle != nil {
		return errors.New("document binding already installed")
	}
	handle := d.shared.Handle()
	bridge := query.New(handle, d.opts...)

	obj := jsobject.New(jsobject.Mapping{
		"querySelector": jsobject.Func(bridge.QuerySelector(vm)),
	})
	if err := vm.Set(DocumentGlobal, obj.AsValue(vm)); err != nil {
		handle.Release()
		return err
	}
	d.handle = handle
	return nil
}

// Release drops the handle captured at install time.
func (d *DocumentBinding) Release() {
	if d.handle != nil {
		d.handle.Release()
	}
}
