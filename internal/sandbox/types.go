package sandbox

import (
	"errors"
	"time"

	"github.com/GriffinCanCode/domsim/internal/config"
	"github.com/GriffinCanCode/domsim/internal/hostapi"
)

var (
	ErrTimeout   = errors.New("execution timeout exceeded")
	ErrCancelled = errors.New("execution cancelled")
	ErrClosed    = errors.New("session is closed")
)

// Evaluation outcomes, used as metric labels.
const (
	OutcomeOK        = "ok"
	OutcomeException = "exception"
	OutcomeAborted   = "aborted"
	OutcomeTimeout   = "timeout"
	OutcomeCancelled = "cancelled"
)

// Config defines session configuration
type Config struct {
	Timeout          time.Duration // Execution timeout, 0 disables it
	MaxCallStackSize int           // goja call stack limit, 0 keeps the engine default
	LenientSelectors bool          // Invalid selectors yield {} instead of aborting
	StripNodeGlobals bool          // Pin require/process/module/exports to undefined
	Bindings         []string      // Globals to install
}

// Result holds execution result
type Result struct {
	SessionID string        // Owning session
	Value     interface{}   // Exported return value
	Duration  time.Duration // Execution time
}

// DefaultConfig returns the default session configuration
func DefaultConfig() Config {
	return Config{
		Timeout:          5 * time.Second,
		MaxCallStackSize: 1024,
		LenientSelectors: false,
		StripNodeGlobals: true,
		Bindings:         []string{hostapi.ConsoleGlobal, hostapi.DocumentGlobal},
	}
}

// ConfigFrom maps loaded configuration onto a session config
func ConfigFrom(cfg config.SandboxConfig) Config {
	return Config{
		Timeout:          cfg.Timeout.Std(),
		MaxCallStackSize: cfg.MaxCallStackSize,
		LenientSelectors: cfg.LenientSelectors,
		StripNodeGlobals: cfg.StripNodeGlobals,
		Bindings:         append([]string(nil), cfg.Bindings...),
	}
}
