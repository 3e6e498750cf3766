package sandbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GriffinCanCode/domsim/internal/document"
	"github.com/GriffinCanCode/domsim/internal/hostapi"
	"github.com/GriffinCanCode/domsim/internal/monitoring"
	"github.com/GriffinCanCode/domsim/internal/query"
	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><body>
	<h1>Hello, world!</h1>
	<ul><li class="item">one</li><li class="item">two</li></ul>
</body></html>`

func newSession(t *testing.T, config Config, opts ...Option) *Session {
	t.Helper()
	s, err := NewFromMarkup(config, document.DefaultLoader(), page, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionEvaluation(t *testing.T) {
	s := newSession(t, DefaultConfig())

	tests := []struct {
		name   string
		script string
		want   interface{}
	}{
		{"simple return", "42", int64(42)},
		{"string operations", "'hello'.toUpperCase()", "HELLO"},
		{"undefined", "undefined", nil},
		{"console log", "console.log('hello'); 'test'", "test"},
		{"heading text", "document.querySelector('h1').textContent", "Hello, world!"},
		{"no match", "JSON.stringify(document.querySelector('#missing'))", "{}"},
		{"non-string argument", "Object.keys(document.querySelector(42)).length", int64(0)},
		{"missing argument", "Object.keys(document.querySelector()).length", int64(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.Eval(context.Background(), tt.script)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Value)
			assert.Equal(t, s.ID().String(), result.SessionID)
		})
	}
}

func TestSessionSnapshotShape(t *testing.T) {
	s := newSession(t, DefaultConfig())

	result, err := s.Eval(context.Background(), "document.querySelector('li.item')")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"textContent": "one",
		"innerHTML":   "one",
		"tagName":     "li",
		"attributes":  map[string]interface{}{},
	}, result.Value)
}

func TestSessionConsoleMethods(t *testing.T) {
	s := newSession(t, DefaultConfig())

	for _, name := range hostapi.ConsoleMethods {
		result, err := s.Eval(context.Background(), "console."+name+"('x', 1, {a: 2})")
		require.NoError(t, err, name)
		assert.Nil(t, result.Value, name)
	}
}

func TestSessionManipulateBetweenEvaluations(t *testing.T) {
	s := newSession(t, DefaultConfig())
	ctx := context.Background()

	before, err := s.Eval(ctx, "document.querySelector('h1').textContent")
	require.NoError(t, err)
	assert.Equal(t, "Hello, world!", before.Value)

	require.NoError(t, s.Manipulate(func(doc *goquery.Document) {
		doc.Find("h1").SetText("Changed")
	}))

	after, err := s.Eval(ctx, "document.querySelector('h1').textContent")
	require.NoError(t, err)
	assert.Equal(t, "Changed", after.Value)

	count, err := document.Manipulate(s.Document(), func(doc *goquery.Document) int {
		return doc.Find("li").Length()
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSessionInvalidSelector(t *testing.T) {
	t.Run("strict aborts", func(t *testing.T) {
		s := newSession(t, DefaultConfig())

		_, err := s.Eval(context.Background(), "try { document.querySelector('div[') } catch (e) {}; 'survived'")
		require.Error(t, err)
		assert.True(t, errors.Is(err, query.ErrInvalidSelector))
	})

	t.Run("lenient returns empty object", func(t *testing.T) {
		config := DefaultConfig()
		config.LenientSelectors = true
		s := newSession(t, config)

		result, err := s.Eval(context.Background(), "JSON.stringify(document.querySelector('div['))")
		require.NoError(t, err)
		assert.Equal(t, "{}", result.Value)
	})
}

func TestSessionPoisonedDocument(t *testing.T) {
	s := newSession(t, DefaultConfig())

	assert.Panics(t, func() {
		_ = s.Manipulate(func(doc *goquery.Document) { panic("mid-write") })
	})

	_, err := s.Eval(context.Background(), "document.querySelector('h1')")
	require.Error(t, err)
	assert.ErrorIs(t, err, document.ErrGuardPoisoned)

	result, err := s.Eval(context.Background(), "1 + 1")
	require.NoError(t, err, "the session itself stays usable")
	assert.Equal(t, int64(2), result.Value)
}

func TestSessionScriptException(t *testing.T) {
	s := newSession(t, DefaultConfig())

	_, err := s.Eval(context.Background(), "throw new Error('nope')")
	require.Error(t, err)

	var exception *goja.Exception
	assert.True(t, errors.As(err, &exception))
	assert.Contains(t, err.Error(), "nope")
}

func TestSessionTimeout(t *testing.T) {
	config := DefaultConfig()
	config.Timeout = 50 * time.Millisecond
	s := newSession(t, config)

	start := time.Now()
	_, err := s.Eval(context.Background(), "while (true) {}")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)

	result, err := s.Eval(context.Background(), "'after'")
	require.NoError(t, err, "interrupt must be cleared for the next run")
	assert.Equal(t, "after", result.Value)
}

func TestSessionCancellation(t *testing.T) {
	config := DefaultConfig()
	config.Timeout = 0
	s := newSession(t, config)

	t.Run("already cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := s.Eval(ctx, "1")
		assert.ErrorIs(t, err, ErrCancelled)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("cancelled while running", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := s.Eval(ctx, "while (true) {}")
		assert.ErrorIs(t, err, ErrCancelled)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestSessionNodeGlobals(t *testing.T) {
	t.Run("stripped", func(t *testing.T) {
		s := newSession(t, DefaultConfig())

		for _, name := range []string{"require", "process", "module", "exports"} {
			result, err := s.Eval(context.Background(), "typeof "+name)
			require.NoError(t, err)
			assert.Equal(t, "undefined", result.Value, name)
		}

		_, err := s.Eval(context.Background(), "require('fs')")
		assert.Error(t, err)
	})

	t.Run("kept when disabled", func(t *testing.T) {
		config := DefaultConfig()
		config.StripNodeGlobals = false
		s := newSession(t, config)

		_, err := s.Eval(context.Background(), "require")
		assert.Error(t, err, "require was never defined")
	})
}

func TestSessionBindingSubset(t *testing.T) {
	config := DefaultConfig()
	config.Bindings = []string{hostapi.ConsoleGlobal}
	s := newSession(t, config)

	assert.Equal(t, []string{"console"}, s.Bindings())
	assert.Equal(t, 1, s.Document().Refs())

	result, err := s.Eval(context.Background(), "typeof document")
	require.NoError(t, err)
	assert.Equal(t, "undefined", result.Value)
}

func TestSessionUnknownBinding(t *testing.T) {
	config := DefaultConfig()
	config.Bindings = []string{"window"}

	_, err := NewFromMarkup(config, document.DefaultLoader(), page)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "window")
}

func TestSessionDuplicateGlobal(t *testing.T) {
	_, err := NewFromMarkup(DefaultConfig(), document.DefaultLoader(), page, WithBinding(hostapi.Console()))
	require.Error(t, err)
	assert.ErrorIs(t, err, hostapi.ErrDuplicateGlobal)
}

func TestSessionLoadFailure(t *testing.T) {
	_, err := NewFromMarkup(DefaultConfig(), document.DefaultLoader(), "   ")
	assert.ErrorIs(t, err, document.ErrEmptyMarkup)
}

func TestSessionClose(t *testing.T) {
	s, err := NewFromMarkup(DefaultConfig(), document.DefaultLoader(), page)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Document().Refs())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	_, err = s.Eval(context.Background(), "1")
	assert.ErrorIs(t, err, ErrClosed)

	assert.ErrorIs(t, s.Manipulate(func(*goquery.Document) {}), document.ErrReleased)
}

func TestSessionMetrics(t *testing.T) {
	metrics := monitoring.NewMetrics("test")
	s, err := NewFromMarkup(DefaultConfig(), document.DefaultLoader(), page, WithMetrics(metrics))
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionsActive))

	_, err = s.Eval(context.Background(), "document.querySelector('h1'); document.querySelector('#none')")
	require.NoError(t, err)
	_, err = s.Eval(context.Background(), "throw 1")
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Evaluations.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Evaluations.WithLabelValues(OutcomeException)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Queries.WithLabelValues(query.OutcomeMatch)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Queries.WithLabelValues(query.OutcomeNoMatch)))

	require.NoError(t, s.Close())
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.SessionsActive))

	snap, err := metrics.GetSnapshot()
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Evaluations)
	assert.Equal(t, int64(1), snap.Failures)
	assert.Equal(t, int64(2), snap.Queries)
}

func TestClassify(t *testing.T) {
	vm := goja.New()
	_, thrown := vm.RunString("throw new TypeError('x')")
	require.Error(t, thrown)

	tests := []struct {
		name    string
		err     error
		outcome string
		is      error
	}{
		{"exception", thrown, OutcomeException, nil},
		{"timeout", interrupt(t, ErrTimeout), OutcomeTimeout, ErrTimeout},
		{"cancelled", interrupt(t, ErrCancelled), OutcomeCancelled, ErrCancelled},
		{"host failure", interrupt(t, query.ErrInvalidSelector), OutcomeAborted, query.ErrInvalidSelector},
		{"non-error value", interrupt(t, "halt"), OutcomeAborted, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := classify(tt.err)
			assert.Equal(t, tt.outcome, outcome)
			require.Error(t, err)
			if tt.is != nil {
				assert.True(t, errors.Is(err, tt.is))
			}
		})
	}
}

func interrupt(t *testing.T, v interface{}) error {
	t.Helper()
	vm := goja.New()
	vm.Interrupt(v)
	_, err := vm.RunString("1")
	require.Error(t, err)
	return err
}
