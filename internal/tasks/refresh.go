package tasks

import (
	"context"
	"sync"

	"github.com/desertthunder/mdash/internal/metrics"
)

// Latest keeps the result of the most recently started run of a refreshable computation.
//
// A run that finishes after a newer run has begun is discarded. The zero value is ready to use.
type Latest[T any] struct {
	Pipeline string // metrics label for discarded results

	mu    sync.Mutex
	gen   uint64
	value T
	ok    bool
}

// Begin starts a run and returns its generation token.
func (l *Latest[T]) Begin() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	return l.gen
}

// Commit stores value when no run newer than token has begun, and reports whether it was accepted.
func (l *Latest[T]) Commit(token uint64, value T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if token != l.gen {
		if l.Pipeline != "" {
			metrics.StaleResults.WithLabelValues(l.Pipeline).Inc()
		}
		return false
	}
	l.value = value
	l.ok = true
	return true
}

// Value returns the last accepted value, if any.
func (l *Latest[T]) Value() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.ok
}

// Run begins a run, calls fn and commits its result.
//
// When a newer run started while fn was working, the newer run's committed value is returned if one
// exists, and fresh is false.
func (l *Latest[T]) Run(ctx context.Context, fn func(context.Context) (T, error)) (value T, fresh bool, err error) {
	token := l.Begin()
	v, err := fn(ctx)
	if err != nil {
		return v, false, err
	}
	if l.Commit(token, v) {
		return v, true, nil
	}
	if current, ok := l.Value(); ok {
		return current, false, nil
	}
	return v, false, nil
}
