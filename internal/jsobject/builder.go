// Package jsobject turns host-side mappings into script-visible objects.
//
// A Builder holds a name to Entry mapping. Each Entry is a static value, a
// zero-argument native function, or another Builder nested as a property.
// Build realises the mapping on a fresh goja object every time it is called,
// so two builds never share state with each other or with the mapping.
//
// Example Usage:
//
//	snapshot := jsobject.New(jsobject.Mapping{
//		"tagName":    jsobject.String("h1"),
//		"attributes": jsobject.Empty().AsNestedEntry(),
//		"focus":      jsobject.Noop(),
//	})
//	return snapshot.AsValue(vm)
package jsobject

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/dop251/goja"
)

// NativeFunc is the signature of functions exposed to scripts.
type NativeFunc func(call goja.FunctionCall) goja.Value

// Kind tags an Entry.
type Kind int

const (
	KindValue Kind = iota
	KindFunc
	KindNested
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindFunc:
		return "function"
	case KindNested:
		return "nested"
	default:
		return "unknown"
	}
}

// Entry is one property of a Mapping.
type Entry struct {
	kind   Kind
	value  interface{}
	fn     NativeFunc
	nested *Builder
}

// Value wraps a static value. Go maps and slices are copied into fresh script
// objects and arrays on every build; other Go values are converted with
// Runtime.ToValue. goja values are used as is, so a *goja.Object is shared by
// every build.
func Value(v interface{}) Entry {
	return Entry{kind: KindValue, value: v}
}

// String wraps a static string.
func String(s string) Entry {
	return Value(s)
}

// Func wraps a native function.
func Func(fn NativeFunc) Entry {
	return Entry{kind: KindFunc, fn: fn}
}

// Noop is a native function that ignores its arguments and returns undefined.
func Noop() Entry {
	return Func(func(goja.FunctionCall) goja.Value {
		return goja.Undefined()
	})
}

// Nested embeds b as an object-valued property, built fresh per outer build.
func Nested(b *Builder) Entry {
	if b == nil {
		b = Empty()
	}
	return Entry{kind: KindNested, nested: b}
}

// Kind reports what the entry holds.
func (e Entry) Kind() Kind {
	return e.kind
}

// Mapping maps property names to entries.
type Mapping map[string]Entry

// Builder realises a Mapping as script objects on demand.
type Builder struct {
	entries Mapping
}

// New copies m into a Builder. Later changes to m do not affect the builder.
func New(m Mapping) *Builder {
	entries := make(Mapping, len(m))
	for k, v := range m {
		entries[k] = v
	}
	return &Builder{entries: entries}
}

// Empty returns a builder with no entries. Its objects are the "no result"
// value returned to scripts.
func Empty() *Builder {
	return &Builder{entries: Mapping{}}
}

// Len returns the number of entries.
func (b *Builder) Len() int {
	return len(b.entries)
}

// Keys returns the entry names in sorted order.
func (b *Builder) Keys() []string {
	keys := make([]string, 0, len(b.entries))
	for k := range b.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Build creates a new object carrying every entry as an enumerable, writable,
// configurable own property.
func (b *Builder) Build(vm *goja.Runtime) *goja.Object {
	obj := vm.NewObject()
	for _, name := range b.Keys() {
		if err := obj.DefineDataProperty(name, b.entries[name].realise(vm, name), goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
			panic(vm.NewGoError(err))
		}
	}
	return obj
}

// AsValue builds the object and returns it as a script value.
func (b *Builder) AsValue(vm *goja.Runtime) goja.Value {
	return b.Build(vm)
}

// AsNestedEntry returns an Entry embedding this builder in another mapping.
func (b *Builder) AsNestedEntry() Entry {
	return Nested(b)
}

func (e Entry) realise(vm *goja.Runtime, name string) goja.Value {
	switch e.kind {
	case KindFunc:
		return newFunction(vm, name, e.fn)
	case KindNested:
		return e.nested.Build(vm)
	default:
		if e.value == nil {
			return goja.Undefined()
		}
		return detach(vm, e.value)
	}
}

// detach converts v for script use without aliasing Go maps or slices, which
// Runtime.ToValue would wrap live.
func detach(vm *goja.Runtime, v interface{}) goja.Value {
	if v == nil {
		return goja.Null()
	}
	if gv, ok := v.(goja.Value); ok {
		return gv
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() {
			return goja.Null()
		}
		keys := make([]string, 0, rv.Len())
		values := make(map[string]reflect.Value, rv.Len())
		for iter := rv.MapRange(); iter.Next(); {
			key := fmt.Sprint(iter.Key().Interface())
			keys = append(keys, key)
			values[key] = iter.Value()
		}
		sort.Strings(keys)

		obj := vm.NewObject()
		for _, key := range keys {
			if err := obj.Set(key, detach(vm, values[key].Interface())); err != nil {
				panic(vm.NewGoError(err))
			}
		}
		return obj
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return goja.Null()
		}
		items := make([]interface{}, rv.Len())
		for i := range items {
			items[i] = detach(vm, rv.Index(i).Interface())
		}
		return vm.NewArray(items...)
	default:
		return vm.ToValue(v)
	}
}

// newFunction creates a native function object with length 0 named after its
// property.
func newFunction(vm *goja.Runtime, name string, fn NativeFunc) goja.Value {
	if fn == nil {
		fn = func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	}
	obj := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		return fn(call)
	}).ToObject(vm)
	if err := obj.DefineDataProperty("name", vm.ToValue(name), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
		panic(vm.NewGoError(err))
	}
	return obj
}
