// Package executor defines the task-execution and wakeup-signal
// collaborators the asset core consumes, plus a
// minimal goroutine-pool implementation sufficient for tests and the
// manager's default wiring — disposable infrastructure standing up the library
// without being part of its contract.
package executor

import (
	"context"
	"sync"
)

// Task is a unit of work submitted to an Executor.
type Task func(ctx context.Context) error

// TaskHandle lets a caller wait for or cancel a submitted Task.
type TaskHandle interface {
	Wait(ctx context.Context) error
	Cancel()
	Done() <-chan struct{}
}

// Executor runs Tasks, typically on a worker pool so the caller's
// goroutine is never blocked by I/O-bound asset work.
type Executor interface {
	Submit(ctx context.Context, t Task) TaskHandle
}

// Signal is a condition-variable-like wakeup primitive used by the
// Operation Controller to wake drain loops without busy-polling.
type Signal interface {
	WakeOne()
	WakeAll()
}

// taskHandle is the Pool's TaskHandle implementation.
type taskHandle struct {
	done   chan struct{}
	cancel context.CancelFunc
	mu     sync.Mutex
	err    error
}

func (h *taskHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *taskHandle) Cancel() { h.cancel() }

func (h *taskHandle) Done() <-chan struct{} { return h.done }

// Pool is a bounded goroutine-pool Executor. A zero Pool runs tasks with no
// concurrency limit; NewPool(n) bounds concurrency to n in-flight tasks.
type Pool struct {
	sem chan struct{}
}

// NewPool constructs a Pool that runs at most concurrency tasks at once. A
// concurrency of 0 means unbounded.
func NewPool(concurrency int) *Pool {
	p := &Pool{}
	if concurrency > 0 {
		p.sem = make(chan struct{}, concurrency)
	}
	return p
}

// Submit runs t on a new goroutine, acquiring a pool slot first if the pool
// is bounded.
func (p *Pool) Submit(ctx context.Context, t Task) TaskHandle {
	taskCtx, cancel := context.WithCancel(ctx)
	h := &taskHandle{done: make(chan struct{}), cancel: cancel}

	go func() {
		defer close(h.done)
		if p.sem != nil {
			select {
			case p.sem <- struct{}{}:
				defer func() { <-p.sem }()
			case <-taskCtx.Done():
				h.mu.Lock()
				h.err = taskCtx.Err()
				h.mu.Unlock()
				return
			}
		}
		err := t(taskCtx)
		h.mu.Lock()
		h.err = err
		h.mu.Unlock()
	}()

	return h
}

// signal is the default Signal implementation, backed by a list of
// per-waiter channels that a wake closes, the way sync.Cond's broadcast is
// backed by a waiter list.
type signal struct {
	mu      sync.Mutex
	waiters []chan struct{}
}

// NewSignal constructs a Signal.
func NewSignal() Signal { return &signal{} }

func (s *signal) wait() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.waiters = append(s.waiters, ch)
	return ch
}

func (s *signal) WakeOne() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.waiters) == 0 {
		return
	}
	close(s.waiters[0])
	s.waiters = s.waiters[1:]
}

func (s *signal) WakeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.waiters {
		close(w)
	}
	s.waiters = nil
}

// Wait blocks until the next WakeOne/WakeAll call or ctx is done. Exposed as
// a free function (rather than on the Signal interface) since production
// Operation Controller code only ever calls WakeOne/WakeAll; Wait is for
// the goroutine actually parking.
func Wait(ctx context.Context, s Signal) error {
	sig, ok := s.(*signal)
	if !ok {
		// Unknown Signal implementation: nothing to park on, return
		// immediately so callers using a custom Signal aren't blocked
		// forever by an API they can't satisfy.
		return nil
	}
	ch := sig.wait()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
