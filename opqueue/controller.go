package opqueue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/liteforge/assetcore/asset"
	"github.com/liteforge/assetcore/executor"
	"github.com/liteforge/assetcore/internal/ringbuf"
)

// Controller is the Operation Controller (C5). It owns a bounded dispatch
// ring built from an atomic-counter-driven ring structure, plus an
// at-most-one-in-flight tracking table keyed by target — a dedup shape
// generalised from "collapse identical concurrent calls" to "collapse plus
// queue a distinct follow-up op".
type Controller struct {
	logger   *zap.Logger
	executor executor.Executor
	sig      executor.Signal

	ring *ringbuf.Ring[*Op]

	mu       sync.Mutex
	inFlight map[string]*Op

	nextID atomic.Uint64

	runningCount atomic.Int64
}

// Config configures a Controller.
type Config struct {
	Executor   executor.Executor
	Logger     *zap.Logger
	RingCap    int
}

// New constructs a Controller. Executor must be non-nil; Logger defaults
// to a no-op logger.
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ringCap := cfg.RingCap
	if ringCap <= 0 {
		ringCap = 256
	}
	return &Controller{
		logger:   logger,
		executor: cfg.Executor,
		sig:      executor.NewSignal(),
		ring:     ringbuf.New[*Op](ringCap),
		inFlight: make(map[string]*Op),
	}
}

// Submit schedules op, assigning it an id and promise, and either admits it
// immediately or defers admission until its DependsOn ops all complete.
func (c *Controller) Submit(op *Op) *Promise {
	op.ID = c.nextID.Add(1)
	op.promise = newPromise()

	if len(op.DependsOn) == 0 {
		c.admit(op)
		return op.promise
	}

	go c.awaitDependenciesThenAdmit(op)
	return op.promise
}

func (c *Controller) awaitDependenciesThenAdmit(op *Op) {
	for _, dep := range op.DependsOn {
		if dep == nil || dep.promise == nil {
			continue
		}
		dep.promise.Wait(context.Background())
	}
	c.admit(op)
}

// admit either queues op for immediate dispatch, or links it as a
// follow-up behind the op currently in flight for the same target,
// implementing at-most-one-in-flight-per-target with FIFO ordering within
// a target.
func (c *Controller) admit(op *Op) {
	key := op.targetKey()

	c.mu.Lock()
	existing, busy := c.inFlight[key]
	if busy {
		tail := existing
		for tail.followUp != nil {
			tail = tail.followUp
		}
		tail.followUp = op
		c.mu.Unlock()
		return
	}
	c.inFlight[key] = op
	c.mu.Unlock()

	c.enqueue(op)
}

func (c *Controller) enqueue(op *Op) {
	c.ring.Enqueue(op)
	c.sig.WakeOne()
}

// Run drains the dispatch ring until ctx is done, dispatching each op to
// the executor. It is meant to run on its own goroutine, analogous to the
// façade's single-threaded update() loop driving everything else.
func (c *Controller) Run(ctx context.Context) {
	for {
		op, ok := c.ring.Dequeue()
		if !ok {
			if err := executor.Wait(ctx, c.sig); err != nil {
				return
			}
			continue
		}
		if ctx.Err() != nil {
			return
		}
		c.dispatch(ctx, op)
	}
}

func (c *Controller) dispatch(ctx context.Context, op *Op) {
	if op.promise.CancelRequested() {
		op.promise.resolve(asset.Cancelled, nil)
		c.advance(op)
		return
	}

	runCtx := ctx
	var cancel context.CancelFunc = func() {}
	if op.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, op.Timeout)
	}

	c.runningCount.Add(1)
	h := c.executor.Submit(runCtx, func(taskCtx context.Context) error {
		code, err := op.Exec(taskCtx, op)
		op.promise.resolve(code, err)
		return err
	})

	go func() {
		_ = h.Wait(runCtx)
		cancel()
		c.runningCount.Add(-1)
		c.advance(op)
	}()
}

// advance removes op from the in-flight table, promoting its follow-up (if
// any) to take its place and enqueueing it.
func (c *Controller) advance(op *Op) {
	key := op.targetKey()

	c.mu.Lock()
	next := op.followUp
	if next != nil {
		c.inFlight[key] = next
	} else {
		delete(c.inFlight, key)
	}
	c.mu.Unlock()

	if next != nil {
		c.enqueue(next)
	}
}

// InFlightCount returns the number of targets with a currently admitted op
// (running or queued-as-head).
func (c *Controller) InFlightCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inFlight)
}

// RunningCount returns the number of ops actually executing right now, as
// opposed to queued or linked as a follow-up.
func (c *Controller) RunningCount() int64 { return c.runningCount.Load() }

// WaitIdle blocks until no op is in flight or ctx is done. Intended for
// tests and graceful shutdown, not the hot path.
func (c *Controller) WaitIdle(ctx context.Context) error {
	for {
		c.mu.Lock()
		empty := len(c.inFlight) == 0
		c.mu.Unlock()
		if empty {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}
