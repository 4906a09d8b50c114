package opqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/liteforge/assetcore/asset"
	"github.com/liteforge/assetcore/executor"
)

func newTestController() *Controller {
	c := New(Config{Executor: executor.NewPool(4), RingCap: 16})
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	go func() {
		// Stop the Run loop when the test process exits; individual
		// tests don't need to cancel explicitly since each gets its own
		// controller instance.
		<-ctx.Done()
	}()
	_ = cancel
	return c
}

func TestSubmitRunsExecAndResolvesPromise(t *testing.T) {
	c := newTestController()
	op := &Op{
		Kind:   KindLoad,
		Domain: "engine",
		Target: asset.NewTypeRecord(asset.NewPath("engine//t/a.mesh"), "Mesh", nil),
		Exec: func(ctx context.Context, op *Op) (asset.ExitCondition, error) {
			return asset.Ok, nil
		},
	}
	p := c.Submit(op)
	code, err := p.Wait(context.Background())
	if err != nil || code != asset.Ok {
		t.Fatalf("Wait() = %v, %v, want Ok, nil", code, err)
	}
}

func TestFollowUpRunsAfterPredecessorOnSameTarget(t *testing.T) {
	c := newTestController()
	rec := asset.NewTypeRecord(asset.NewPath("engine//t/a.mesh"), "Mesh", nil)

	var mu sync.Mutex
	var order []int

	block := make(chan struct{})
	first := &Op{
		Kind: KindLoad, Domain: "engine", Target: rec,
		Exec: func(ctx context.Context, op *Op) (asset.ExitCondition, error) {
			<-block
			mu.Lock()
			order = append(order, 1)
			mu.Unlock()
			return asset.Ok, nil
		},
	}
	second := &Op{
		Kind: KindUpdateCache, Domain: "engine", Target: rec,
		Exec: func(ctx context.Context, op *Op) (asset.ExitCondition, error) {
			mu.Lock()
			order = append(order, 2)
			mu.Unlock()
			return asset.Ok, nil
		},
	}

	p1 := c.Submit(first)
	// Give the controller a moment to admit `first` before submitting the
	// second op for the same target, so it's guaranteed to be linked as a
	// follow-up rather than racing into its own admit.
	time.Sleep(20 * time.Millisecond)
	p2 := c.Submit(second)

	close(block)
	if _, err := p1.Wait(context.Background()); err != nil {
		t.Fatalf("p1.Wait: %v", err)
	}
	if _, err := p2.Wait(context.Background()); err != nil {
		t.Fatalf("p2.Wait: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("order = %v, want [1 2]", order)
	}
}

func TestCancelBeforeDispatchProducesCancelled(t *testing.T) {
	c := newTestController()
	rec := asset.NewTypeRecord(asset.NewPath("engine//t/a.mesh"), "Mesh", nil)

	block := make(chan struct{})
	blocker := &Op{
		Kind: KindLoad, Domain: "engine", Target: rec,
		Exec: func(ctx context.Context, op *Op) (asset.ExitCondition, error) {
			<-block
			return asset.Ok, nil
		},
	}
	victim := &Op{
		Kind: KindDelete, Domain: "engine", Target: rec,
		Exec: func(ctx context.Context, op *Op) (asset.ExitCondition, error) {
			return asset.Ok, nil
		},
	}

	c.Submit(blocker)
	time.Sleep(20 * time.Millisecond)
	p := c.Submit(victim)
	p.Cancel()
	close(block)

	code, _ := p.Wait(context.Background())
	if code != asset.Cancelled {
		t.Fatalf("code = %v, want Cancelled", code)
	}
}

func TestDependsOnDelaysAdmission(t *testing.T) {
	c := newTestController()

	var mu sync.Mutex
	var order []string

	dep := &Op{
		Kind: KindLoad, Domain: "engine",
		Target: asset.NewTypeRecord(asset.NewPath("engine//t/dep.mesh"), "Mesh", nil),
		Exec: func(ctx context.Context, op *Op) (asset.ExitCondition, error) {
			time.Sleep(30 * time.Millisecond)
			mu.Lock()
			order = append(order, "dep")
			mu.Unlock()
			return asset.Ok, nil
		},
	}
	depP := c.Submit(dep)

	dependent := &Op{
		Kind: KindSaveDomain, Domain: "engine",
		DependsOn: []*Op{dep},
		Exec: func(ctx context.Context, op *Op) (asset.ExitCondition, error) {
			mu.Lock()
			order = append(order, "dependent")
			mu.Unlock()
			return asset.Ok, nil
		},
	}
	dependentP := c.Submit(dependent)

	depP.Wait(context.Background())
	dependentP.Wait(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "dep" || order[1] != "dependent" {
		t.Fatalf("order = %v, want [dep dependent]", order)
	}
}
