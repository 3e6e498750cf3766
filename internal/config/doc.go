// Package config provides 12-factor configuration management for domsim.
//
// Configuration is loaded from environment variables with sensible defaults.
// A YAML or TOML file can be layered underneath; variables that are set in
// the environment still win. CLI flags override both.
//
// Configuration Sections:
//   - Sandbox: evaluation timeout, call stack limit, selector policy, bindings
//   - Markup: maximum document size and charset detection
//   - Logging: Log level and output format
//   - Metrics: Prometheus collection toggle and namespace
//
// Example Usage:
//
//	cfg, err := config.LoadFile("domsim.yaml")
//	if err != nil {
//		return err
//	}
//	fmt.Printf("Scripts time out after %s\n", cfg.Sandbox.Timeout.Std())
//
// Environment Variables:
//   - DOMSIM_SANDBOX_TIMEOUT, DOMSIM_SANDBOX_MAX_CALL_STACK
//   - DOMSIM_SANDBOX_LENIENT_SELECTORS, DOMSIM_SANDBOX_STRIP_NODE_GLOBALS
//   - DOMSIM_SANDBOX_BINDINGS
//   - DOMSIM_MARKUP_MAX_SIZE, DOMSIM_MARKUP_DETECT_CHARSET
//   - DOMSIM_LOG_LEVEL, DOMSIM_LOG_DEV
//   - DOMSIM_METRICS_ENABLED, DOMSIM_METRICS_NAMESPACE
package config
