package document

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrGuardPoisoned is returned by every acquisition once a writer failed while
	// holding exclusive access. It is never cleared.
	ErrGuardPoisoned = errors.New("document guard poisoned")

	// ErrReleased is returned when acquiring through a handle that was released,
	// or after the last handle dropped the document.
	ErrReleased = errors.New("document released")
)

// cell is the single guarded home of a parsed document. Every Shared handle
// points at one cell; the cell keeps the document alive while refs > 0.
type cell struct {
	mu       sync.RWMutex
	doc      *goquery.Document
	poisoned string // set under mu write lock
	dropped  bool   // set under mu write lock

	refs atomic.Int64
}

// Shared is a counted handle to a guarded document. The value returned by New
// is the owning handle; Handle derives further handles for capture inside
// native callbacks. Each handle must be released exactly once.
type Shared struct {
	c        *cell
	released atomic.Bool
}

// New takes ownership of doc and returns the owning handle.
func New(doc *goquery.Document) *Shared {
	c := &cell{doc: doc}
	c.refs.Store(1)
	return &Shared{c: c}
}

// Handle returns a new handle to the same document. Its lifetime is independent
// of the caller's; the document stays alive until every handle is released.
func (s *Shared) Handle() *Shared {
	s.c.refs.Add(1)
	return &Shared{c: s.c}
}

// Refs reports the number of live handles.
func (s *Shared) Refs() int {
	return int(s.c.refs.Load())
}

// Release drops this handle. Releasing the last handle drops the document.
// Further calls on the same handle are no-ops.
func (s *Shared) Release() {
	if !s.released.CompareAndSwap(false, true) {
		return
	}
	if s.c.refs.Add(-1) > 0 {
		return
	}

	// Waits for in-flight guards.
	s.c.mu.Lock()
	s.c.doc = nil
	s.c.dropped = true
	s.c.mu.Unlock()
}

// Read acquires shared access, blocking while a writer holds the document.
func (s *Shared) Read() (*ReadGuard, error) {
	if s.released.Load() {
		return nil, ErrReleased
	}

	s.c.mu.RLock()
	if err := s.c.state(); err != nil {
		s.c.mu.RUnlock()
		return nil, err
	}
	return &ReadGuard{c: s.c}, nil
}

// Write acquires exclusive access, blocking out every reader and writer.
func (s *Shared) Write() (*WriteGuard, error) {
	if s.released.Load() {
		return nil, ErrReleased
	}

	s.c.mu.Lock()
	if err := s.c.state(); err != nil {
		s.c.mu.Unlock()
		return nil, err
	}
	return &WriteGuard{c: s.c}, nil
}

// state must be called with mu held in either mode.
func (c *cell) state() error {
	if c.poisoned != "" {
		return fmt.Errorf("%w: %s", ErrGuardPoisoned, c.poisoned)
	}
	if c.dropped {
		return ErrReleased
	}
	return nil
}

// Manipulate applies fn to the document under exclusive access and returns its
// result. A panic inside fn poisons the document before it propagates.
func Manipulate[T any](s *Shared, fn func(doc *goquery.Document) T) (T, error) {
	var zero T

	g, err := s.Write()
	if err != nil {
		return zero, err
	}
	defer func() {
		if r := recover(); r != nil {
			g.Poison(fmt.Sprintf("panic during manipulate: %v", r))
			g.Release()
			panic(r)
		}
		g.Release()
	}()

	return fn(g.Document()), nil
}

// ReadGuard grants shared access until Release.
type ReadGuard struct {
	c    *cell
	once sync.Once
}

// Document returns the guarded document. It must not be retained after Release.
func (g *ReadGuard) Document() *goquery.Document {
	return g.c.doc
}

// Release gives up shared access. Safe to call more than once.
func (g *ReadGuard) Release() {
	g.once.Do(g.c.mu.RUnlock)
}

// WriteGuard grants exclusive access until Release.
type WriteGuard struct {
	c    *cell
	once sync.Once
}

// Document returns the guarded document for mutation.
func (g *WriteGuard) Document() *goquery.Document {
	return g.c.doc
}

// Poison marks the document as unusable. Every later acquisition through any
// handle fails with ErrGuardPoisoned. Must be called before Release.
func (g *WriteGuard) Poison(reason string) {
	if reason == "" {
		reason = "poisoned by writer"
	}
	g.c.poisoned = reason
}

// Release gives up exclusive access. Safe to call more than once.
func (g *WriteGuard) Release() {
	g.once.Do(g.c.mu.Unlock)
}
