package ringbuf

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestEnqueueDequeueFIFOWithinCapacity(t *testing.T) {
	r := New[int](4)
	for i := 0; i < 4; i++ {
		if !r.TryEnqueue(i) {
			t.Fatalf("TryEnqueue(%d) failed within capacity", i)
		}
	}
	for i := 0; i < 4; i++ {
		v, ok := r.Dequeue()
		if !ok || v != i {
			t.Fatalf("Dequeue() = %d, %v, want %d, true", v, ok, i)
		}
	}
}

func TestTryEnqueueFailsWhenFull(t *testing.T) {
	r := New[int](2) // rounds up to 2
	if !r.TryEnqueue(1) || !r.TryEnqueue(2) {
		t.Fatal("expected first two enqueues to succeed")
	}
	if r.TryEnqueue(3) {
		t.Fatal("expected TryEnqueue to fail once ring is full")
	}
}

func TestEnqueueFallsBackToOverflow(t *testing.T) {
	r := New[int](2)
	r.Enqueue(1)
	r.Enqueue(2)
	r.Enqueue(3) // overflow
	if r.OverflowLen() != 1 {
		t.Fatalf("OverflowLen() = %d, want 1", r.OverflowLen())
	}

	var got []int
	for i := 0; i < 3; i++ {
		v, ok := r.Dequeue()
		if !ok {
			t.Fatalf("Dequeue() %d failed", i)
		}
		got = append(got, v)
	}
	for i, v := range got {
		if v != i+1 {
			t.Fatalf("got[%d] = %d, want %d", i, v, i+1)
		}
	}
}

func TestDequeueEmptyReportsFalse(t *testing.T) {
	r := New[int](4)
	if _, ok := r.Dequeue(); ok {
		t.Fatal("Dequeue on empty ring should report false")
	}
}

func TestConcurrentProducersConsumers(t *testing.T) {
	r := New[int](16)
	const n = 2000
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			r.Enqueue(i)
		}
	}()

	var seen [n]bool
	var mu sync.Mutex
	var consumed atomic.Int64
	var stop atomic.Bool

	var consumers sync.WaitGroup
	for c := 0; c < 4; c++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for !stop.Load() {
				v, ok := r.Dequeue()
				if !ok {
					continue
				}
				mu.Lock()
				seen[v] = true
				mu.Unlock()
				if consumed.Add(1) == n {
					stop.Store(true)
				}
			}
		}()
	}

	wg.Wait()
	done := make(chan struct{})
	go func() { consumers.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumers never drained all items")
	}

	for i, s := range seen {
		if !s {
			t.Fatalf("value %d never dequeued", i)
		}
	}
}
