/*
Package sandbox runs scripts against an HTML document.

# Overview

A Session pairs one goja runtime with one shared document. On creation it:

  - pins require, process, module and exports to undefined
  - applies the call stack limit
  - installs the configured globals (console and document by default)

Scripts see a read-only view of the document through
document.querySelector. The host mutates it through Session.Manipulate or
document.Manipulate on Session.Document, and later evaluations observe the
change.

# Failure Model

Script exceptions come back as errors wrapping *goja.Exception. Host
failures such as an invalid selector or a poisoned document abort the
evaluation and cannot be caught by the script; the returned error wraps the
cause. Timeouts and context cancellation interrupt the runtime the same way
and return ErrTimeout or ErrCancelled.

# Usage Example

	s, err := sandbox.NewFromMarkup(sandbox.DefaultConfig(), document.DefaultLoader(), html)
	if err != nil {
		return err
	}
	defer s.Close()

	result, err := s.Eval(ctx, "document.querySelector('h1').textContent")

A Session serializes its own evaluations. Use one session per goroutine for
parallel work.
*/
package sandbox
