// Package hostapi installs the browser-like globals a script session sees.
//
// Two bindings exist:
//   - console: log, warn, error and the rest of the diagnostic methods, all no-ops
//   - document: querySelector over the session's shared document
//
// A session declares the bindings it wants as a Set and installs them once.
// Installing onto a name that is already a global fails with
// ErrDuplicateGlobal, which aborts session construction.
//
// Example Usage:
//
//	set := hostapi.DefaultSet(shared, query.WithLenient(cfg.Lenient))
//	if err := set.Install(vm); err != nil {
//		return err
//	}
//	defer set.Release()
package hostapi
