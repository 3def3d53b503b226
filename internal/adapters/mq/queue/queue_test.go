package queue

import (
	"context"
	"testing"
	"time"

	"github.com/okian/velopick/internal/domain/model"
)

func job(id string) model.RecomputeJob {
	return model.RecomputeJob{JobID: id, RaceID: "race-" + id, Reason: "test", EnqueuedAt: time.Now()}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if !q.Enqueue(ctx, job("1")) {
		t.Fatal("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.JobID != "1" || got.RaceID != "race-1" {
		t.Errorf("unexpected job %+v", got)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, job("1")) || !q.Enqueue(ctx, job("2")) {
		t.Fatal("expected first two enqueues to succeed")
	}
	if q.Enqueue(ctx, job("3")) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	q.Enqueue(ctx, job("1"))
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to report closed")
	}
	if q.Enqueue(ctx, job("2")) {
		t.Error("expected enqueue after close to fail")
	}

	var drained []string
	for j := range q.Dequeue(ctx) {
		drained = append(drained, j.JobID)
	}
	if len(drained) != 1 || drained[0] != "1" {
		t.Errorf("expected queued job to drain after close, got %v", drained)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if q.Enqueue(ctx, job("1")) {
		t.Error("expected enqueue with cancelled context to fail")
	}

	select {
	case _, ok := <-q.Dequeue(ctx):
		if ok {
			t.Error("expected no job from a cancelled dequeue")
		}
	case <-time.After(time.Second):
		t.Error("dequeue channel was not closed after cancellation")
	}
}

func TestInMemoryQueue_ConcurrentConsumers(t *testing.T) {
	const n = 50
	q := NewInMemoryQueue(WithCapacity(n))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < n; i++ {
		if !q.Enqueue(ctx, model.RecomputeJob{JobID: string(rune('a' + i%26)), RaceID: "r"}) {
			t.Fatalf("enqueue %d failed", i)
		}
	}
	_ = q.Close()

	results := make(chan int, 2)
	for c := 0; c < 2; c++ {
		ch := q.Dequeue(ctx)
		go func() {
			count := 0
			for range ch {
				count++
			}
			results <- count
		}()
	}
	total := <-results + <-results
	if total != n {
		t.Errorf("expected %d jobs delivered once, got %d", n, total)
	}
}
