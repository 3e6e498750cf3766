package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/domsim/internal/document"
	"github.com/GriffinCanCode/domsim/internal/hostapi"
	"github.com/GriffinCanCode/domsim/internal/logging"
	"github.com/GriffinCanCode/domsim/internal/monitoring"
	"github.com/GriffinCanCode/domsim/internal/query"
	"github.com/GriffinCanCode/domsim/internal/shared/id"
	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Option configures a Session
type Option func(*options)

type options struct {
	logger  *logging.Logger
	metrics *monitoring.Metrics
	extra   []hostapi.Binding
}

// WithLogger sets the base logger; the session logs under its own ID
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics enables metrics collection
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(o *options) { o.metrics = metrics }
}

// WithBinding installs an additional global after the configured ones
func WithBinding(b hostapi.Binding) Option {
	return func(o *options) { o.extra = append(o.extra, b) }
}

// Session is one script runtime bound to one document
type Session struct {
	id       id.SessionID
	config   Config
	vm       *goja.Runtime
	doc      *document.Shared
	bindings hostapi.Set
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	mu     sync.Mutex
	closed bool
}

// New creates a session that owns doc
func New(config Config, doc *goquery.Document, opts ...Option) (*Session, error) {
	o := options{logger: logging.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	sid := id.NewSessionID()
	s := &Session{
		id:      sid,
		config:  config,
		vm:      goja.New(),
		doc:     document.New(doc),
		logger:  o.logger.Session(sid.String()),
		metrics: o.metrics,
	}

	if config.MaxCallStackSize > 0 {
		s.vm.SetMaxCallStackSize(config.MaxCallStackSize)
	}

	if err := s.setupGlobals(o.extra); err != nil {
		s.doc.Release()
		return nil, err
	}

	s.metrics.SessionOpened()
	s.logger.Debug("Session created", zap.Strings("bindings", s.bindings.Names()))
	return s, nil
}

// NewFromMarkup parses markup with loader and creates a session over it
func NewFromMarkup(config Config, loader document.Loader, markup string, opts ...Option) (*Session, error) {
	doc, err := loader.Load(markup)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	return New(config, doc, opts...)
}

// setupGlobals removes Node-style globals and installs the configured bindings
func (s *Session) setupGlobals(extra []hostapi.Binding) error {
	if s.config.StripNodeGlobals {
		for _, name := range []string{"require", "process", "module", "exports"} {
			if err := s.vm.Set(name, goja.Undefined()); err != nil {
				return err
			}
		}
	}

	queryOpts := []query.Option{
		query.WithLenient(s.config.LenientSelectors),
		query.WithLogger(s.logger.Named("query")),
	}
	if s.metrics != nil {
		queryOpts = append(queryOpts, query.WithRecorder(s.metrics))
	}

	available := hostapi.DefaultSet(s.doc, queryOpts...)
	known := make(map[string]bool)
	for _, name := range available.Names() {
		known[name] = true
	}
	for _, name := range s.config.Bindings {
		if !known[name] {
			return fmt.Errorf("unknown binding %q", name)
		}
	}

	set := available.Only(s.config.Bindings...)
	for _, b := range extra {
		set = set.With(b)
	}
	if err := set.Install(s.vm); err != nil {
		set.Release()
		return fmt.Errorf("failed to install bindings: %w", err)
	}
	s.bindings = set
	return nil
}

// ID returns the session identifier
func (s *Session) ID() id.SessionID {
	return s.id
}

// Bindings returns the installed global names
func (s *Session) Bindings() []string {
	return s.bindings.Names()
}

// Document returns the owning handle of the session document
func (s *Session) Document() *document.Shared {
	return s.doc
}

// Manipulate mutates the document under exclusive access
func (s *Session) Manipulate(fn func(doc *goquery.Document)) error {
	_, err := document.Manipulate(s.doc, func(doc *goquery.Document) struct{} {
		fn(doc)
		return struct{}{}
	})
	return err
}

// Eval runs script with timeout and cancellation
func (s *Session) Eval(ctx context.Context, script string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	timer := monitoring.NewTimer(s.metrics)
	result := &Result{SessionID: s.id.String()}

	s.vm.ClearInterrupt()
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.watch(ctx, done)
	}()

	val, err := s.vm.RunString(script)

	close(done)
	wg.Wait()
	s.vm.ClearInterrupt()

	if err != nil {
		outcome, err := classify(err)
		result.Duration = timer.Stop(outcome)
		s.logger.Warn("Evaluation failed",
			zap.String("outcome", outcome),
			zap.Duration("duration", result.Duration),
			zap.Error(err))
		return result, err
	}

	result.Value = exportValue(val)
	result.Duration = timer.Stop(OutcomeOK)
	s.logger.Debug("Evaluation finished", zap.Duration("duration", result.Duration))
	return result, nil
}

// watch interrupts the runtime on timeout or cancellation until done closes
func (s *Session) watch(ctx context.Context, done <-chan struct{}) {
	var timeout <-chan time.Time
	if s.config.Timeout > 0 {
		timer := time.NewTimer(s.config.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-timeout:
		s.vm.Interrupt(ErrTimeout)
	case <-ctx.Done():
		s.vm.Interrupt(fmt.Errorf("%w: %w", ErrCancelled, ctx.Err()))
	case <-done:
	}
}

// classify maps an evaluation error to an outcome and the error returned to
// the caller
func classify(err error) (string, error) {
	var interrupted *goja.InterruptedError
	if !errors.As(err, &interrupted) {
		return OutcomeException, fmt.Errorf("script error: %w", err)
	}

	cause, ok := interrupted.Value().(error)
	if !ok {
		return OutcomeAborted, fmt.Errorf("script aborted: %v", interrupted.Value())
	}
	switch {
	case errors.Is(cause, ErrTimeout):
		return OutcomeTimeout, cause
	case errors.Is(cause, ErrCancelled):
		return OutcomeCancelled, cause
	default:
		return OutcomeAborted, fmt.Errorf("script aborted: %w", cause)
	}
}

// exportValue converts goja value to Go value
func exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}

// Close releases the runtime and the session's document handles
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.bindings.Release()
	s.doc.Release()
	s.vm = nil

	s.metrics.SessionClosed()
	s.logger.Debug("Session closed")
	return nil
}
