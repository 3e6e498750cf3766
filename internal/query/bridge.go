// Package query implements document.querySelector for script sessions.
//
// The bridge compiles the selector, reads the shared document under a read
// guard and projects the first match into a detached snapshot object. The
// snapshot holds plain strings only; it never reflects later document changes
// and writes to it never reach the document.
package query

import (
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/domsim/internal/document"
	"github.com/GriffinCanCode/domsim/internal/jsobject"
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// ErrInvalidSelector reports a selector that failed to parse.
var ErrInvalidSelector = errors.New("invalid selector syntax")

// Query outcomes, used as metric labels.
const (
	OutcomeMatch           = "match"
	OutcomeNoMatch         = "no_match"
	OutcomeBadArgument     = "bad_argument"
	OutcomeInvalidSelector = "invalid_selector"
	OutcomeGuardFailed     = "guard_failed"
	OutcomeError           = "error"
)

// Source grants read access to a document.
type Source interface {
	Read() (*document.ReadGuard, error)
}

// Recorder receives one observation per querySelector call.
type Recorder interface {
	RecordQuery(outcome string, duration time.Duration)
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLenient makes invalid selectors yield the empty result instead of
// aborting the evaluation.
func WithLenient(lenient bool) Option {
	return func(b *Bridge) { b.lenient = lenient }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(b *Bridge) { b.recorder = r }
}

// Bridge answers selector queries against a shared document.
type Bridge struct {
	src      Source
	lenient  bool
	logger   *zap.Logger
	recorder Recorder
}

// New creates a bridge reading from src.
func New(src Source, opts ...Option) *Bridge {
	b := &Bridge{
		src:    src,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Snapshot is the detached projection of a matched element.
type Snapshot struct {
	TextContent string
	InnerHTML   string
	TagName     string
}

// Builder returns the mapping scripts see for this snapshot. attributes is an
// unsupported placeholder and always empty.
func (s *Snapshot) Builder() *jsobject.Builder {
	return jsobject.New(jsobject.Mapping{
		"textContent": jsobject.String(s.TextContent),
		"innerHTML":   jsobject.String(s.InnerHTML),
		"tagName":     jsobject.String(s.TagName),
		"attributes":  jsobject.Empty().AsNestedEntry(),
	})
}

// Query returns a snapshot of the first element matching selector in document
// order, or nil when nothing matches.
func (b *Bridge) Query(selector string) (*Snapshot, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSelector, selector, err)
	}

	guard, err := b.src.Read()
	if err != nil {
		return nil, err
	}
	defer guard.Release()

	match := guard.Document().FindMatcher(sel).First()
	if match.Length() == 0 {
		return nil, nil
	}
	return project(match)
}

func project(s *goquery.Selection) (*Snapshot, error) {
	inner, err := s.Html()
	if err != nil {
		return nil, fmt.Errorf("serialize inner markup: %w", err)
	}
	return &Snapshot{
		TextContent: s.Text(),
		InnerHTML:   inner,
		TagName:     goquery.NodeName(s),
	}, nil
}

// QuerySelector returns the native implementation of document.querySelector
// for vm. Fatal errors interrupt vm, aborting the whole evaluation.
func (b *Bridge) QuerySelector(vm *goja.Runtime) jsobject.NativeFunc {
	return func(call goja.FunctionCall) goja.Value {
		start := time.Now()

		selector, ok := stringArgument(call, 0)
		if !ok {
			b.record(OutcomeBadArgument, start)
			return jsobject.Empty().AsValue(vm)
		}

		snapshot, err := b.Query(selector)
		switch {
		case errors.Is(err, ErrInvalidSelector) && b.lenient:
			b.logger.Debug("Ignoring invalid selector", zap.String("selector", selector), zap.Error(err))
			b.record(OutcomeInvalidSelector, start)
			return jsobject.Empty().AsValue(vm)
		case err != nil:
			b.logger.Error("querySelector failed", zap.String("selector", selector), zap.Error(err))
			b.record(outcomeOf(err), start)
			vm.Interrupt(fmt.Errorf("document.querySelector: %w", err))
			return goja.Undefined()
		case snapshot == nil:
			b.record(OutcomeNoMatch, start)
			return jsobject.Empty().AsValue(vm)
		}

		b.record(OutcomeMatch, start)
		return snapshot.Builder().AsValue(vm)
	}
}

func (b *Bridge) record(outcome string, start time.Time) {
	if b.recorder != nil {
		b.recorder.RecordQuery(outcome, time.Since(start))
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrInvalidSelector):
		return OutcomeInvalidSelector
	case errors.Is(err, document.ErrGuardPoisoned), errors.Is(err, document.ErrReleased):
		return OutcomeGuardFailed
	default:
		return OutcomeError
	}
}

// stringArgument returns argument i when it exports as a Go string.
func stringArgument(call goja.FunctionCall, i int) (string, bool) {
	arg := call.Argument(i)
	if arg == nil || goja.IsUndefined(arg) || goja.IsNull(arg) {
		return "", false
	}
	s, ok := arg.Export().(string)
	return s, ok
}
