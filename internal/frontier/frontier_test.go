package frontier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFrontierEnqueue(t *testing.T) {
	t.Parallel()

	t.Run("duplicates are a silent no-op", func(t *testing.T) {
		t.Parallel()

		f := New(10, nil)
		ctx := context.Background()

		ok, err := f.Enqueue(ctx, "https://example.com/")
		if err != nil || !ok {
			t.Fatalf("expected first enqueue to succeed, got %v, %v", ok, err)
		}
		ok, err = f.Enqueue(ctx, "https://example.com/")
		if err != nil || ok {
			t.Errorf("expected duplicate to be rejected without error, got %v, %v", ok, err)
		}
		if f.Len() != 1 {
			t.Errorf("expected 1 pending URL, got %d", f.Len())
		}
	})

	t.Run("exactly one concurrent enqueuer wins", func(t *testing.T) {
		t.Parallel()

		f := New(100, nil)
		var wins atomic.Int32
		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := f.Enqueue(context.Background(), "https://example.com/same")
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		if wins.Load() != 1 {
			t.Errorf("expected exactly one winner, got %d", wins.Load())
		}
		if f.Len() != 1 {
			t.Errorf("expected 1 pending URL, got %d", f.Len())
		}
	})

	t.Run("full queue blocks until context is done", func(t *testing.T) {
		t.Parallel()

		f := New(1, nil)
		if _, err := f.Enqueue(context.Background(), "https://example.com/1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		ok, err := f.Enqueue(ctx, "https://example.com/2")
		if ok || !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected blocked enqueue to fail with deadline, got %v, %v", ok, err)
		}
	})

	t.Run("full queue unblocks when a consumer dequeues", func(t *testing.T) {
		t.Parallel()

		f := New(1, nil)
		if _, err := f.Enqueue(context.Background(), "https://example.com/1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		done := make(chan error, 1)
		go func() {
			_, err := f.Enqueue(context.Background(), "https://example.com/2")
			done <- err
		}()

		if _, ok := f.Dequeue(context.Background(), time.Second); !ok {
			t.Fatal("expected to dequeue the first URL")
		}
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("blocked enqueue did not resume")
		}
	})
}

func TestFrontierDequeue(t *testing.T) {
	t.Parallel()

	t.Run("returns empty after the timeout", func(t *testing.T) {
		t.Parallel()

		f := New(1, nil)
		start := time.Now()
		_, ok := f.Dequeue(context.Background(), 30*time.Millisecond)
		if ok {
			t.Fatal("expected timeout on empty frontier")
		}
		if time.Since(start) < 30*time.Millisecond {
			t.Error("dequeue returned before its timeout")
		}
	})

	t.Run("returns empty when the context is cancelled", func(t *testing.T) {
		t.Parallel()

		f := New(1, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, ok := f.Dequeue(ctx, time.Hour); ok {
			t.Error("expected cancelled dequeue to return empty")
		}
	})

	t.Run("preserves FIFO order", func(t *testing.T) {
		t.Parallel()

		f := New(10, nil)
		for i := range 3 {
			if _, err := f.Enqueue(context.Background(), fmt.Sprintf("u%d", i)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		for i := range 3 {
			got, ok := f.Dequeue(context.Background(), time.Second)
			if !ok || got != fmt.Sprintf("u%d", i) {
				t.Errorf("expected u%d, got %q (%v)", i, got, ok)
			}
		}
		if f.Enqueued() != 3 {
			t.Errorf("expected 3 enqueued, got %d", f.Enqueued())
		}
	})
}

func TestVisited(t *testing.T) {
	t.Parallel()

	v := NewVisited()
	if !v.Add("a") {
		t.Error("expected first add to insert")
	}
	if v.Add("a") {
		t.Error("expected second add to be rejected")
	}
	if !v.Claim("a") {
		t.Error("expected queued key to be claimable once")
	}
	if v.Claim("a") {
		t.Error("expected second claim to be rejected")
	}
	if !v.Claim("b") {
		t.Error("expected unknown key to be claimable")
	}
	if !v.Contains("b") || v.Len() != 2 {
		t.Errorf("expected 2 known keys, got %d", v.Len())
	}
}

func TestFrontierPending(t *testing.T) {
	t.Parallel()

	f := New(1, nil)
	ctx := context.Background()

	if _, err := f.Enqueue(ctx, "https://example.com/a"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if got := f.Pending(); got != 1 {
		t.Fatalf("Pending() = %d, expected 1", got)
	}

	// Rejected by a full queue: the URL stays visited but is not pending.
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if ok, _ := f.Enqueue(cctx, "https://example.com/b"); ok {
		t.Fatal("expected enqueue on full queue with cancelled context to fail")
	}
	if got := f.Pending(); got != 1 {
		t.Errorf("Pending() = %d, expected 1", got)
	}

	if _, ok := f.Dequeue(ctx, time.Second); !ok {
		t.Fatal("expected an item")
	}
	if got := f.Pending(); got != 1 {
		t.Errorf("Pending() after dequeue = %d, expected 1", got)
	}
	f.Done()
	if got := f.Pending(); got != 0 {
		t.Errorf("Pending() after Done = %d, expected 0", got)
	}
}
