package opqueue

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/liteforge/assetcore/asset"
)

// Promise is the completion handle returned to callers of Controller.Submit.
// Waiting blocks the caller until the op completes, is cancelled, or times
// out; it is safe to call Wait from any thread other than the one running
// the op.
type Promise struct {
	done chan struct{}

	mu   sync.Mutex
	code asset.ExitCondition
	err  error

	cancelRequested atomic.Bool
}

func newPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

// Wait blocks until the op completes or ctx is done, whichever comes
// first. A ctx cancellation does not cancel the op itself — call Cancel
// for that.
func (p *Promise) Wait(ctx context.Context) (asset.ExitCondition, error) {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.code, p.err
	case <-ctx.Done():
		return asset.TimedOut, ctx.Err()
	}
}

// Cancel requests cancellation. It only takes effect if the op is still
// QUEUED when the controller next checks; once RUNNING the op completes
// normally.
func (p *Promise) Cancel() { p.cancelRequested.Store(true) }

// CancelRequested reports whether Cancel has been called.
func (p *Promise) CancelRequested() bool { return p.cancelRequested.Load() }

// Done returns a channel closed once the op resolves.
func (p *Promise) Done() <-chan struct{} { return p.done }

// resolve completes the promise exactly once. A second call is a no-op.
func (p *Promise) resolve(code asset.ExitCondition, err error) {
	p.mu.Lock()
	select {
	case <-p.done:
		p.mu.Unlock()
		return
	default:
	}
	p.code = code
	p.err = err
	p.mu.Unlock()
	close(p.done)
}
