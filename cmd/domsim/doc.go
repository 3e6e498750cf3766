// Package main is the domsim command line tool.
//
// domsim loads an HTML document, evaluates one script against it with the
// console and document globals installed, and prints a single JSON line:
//
//	{"session_id":"sess_...","value":...,"duration_ms":3}
//
// A failed run adds an "error" field and exits with status 1.
//
// Configuration:
//   - Environment variables (DOMSIM_*)
//   - Optional YAML or TOML file (-config)
//   - CLI flags (override both)
//
// Usage:
//
//	domsim -html page.html -script app.js
//	domsim -html page.html -script app.js -timeout 2s -lenient -log-level debug
//	domsim -html page.html -script app.js -metrics-file domsim.prom
//
// Logs go to stderr. SIGINT and SIGTERM cancel the running evaluation.
package main
