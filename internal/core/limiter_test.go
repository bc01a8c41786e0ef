package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestOpLimiter_AcquireRelease(t *testing.T) {
	limiter := NewOpLimiter(2, time.Second)

	if got := limiter.Slots().Free; got != 2 {
		t.Errorf("initial Free = %d, want 2", got)
	}

	ctx := context.Background()
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}
	if got := limiter.InFlight(); got != 2 {
		t.Errorf("after two Acquire, InFlight = %d, want 2", got)
	}
	if got := limiter.Slots().Free; got != 0 {
		t.Errorf("after two Acquire, Free = %d, want 0", got)
	}

	limiter.Release()
	limiter.Release()

	if got := limiter.InFlight(); got != 0 {
		t.Errorf("after Release, InFlight = %d, want 0", got)
	}
}

func TestOpLimiter_BusyWhenFull(t *testing.T) {
	limiter := NewOpLimiter(1, 50*time.Millisecond)
	ctx := context.Background()

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer limiter.Release()

	start := time.Now()
	err := limiter.Acquire(ctx)
	if !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("timeout too fast: %v", elapsed)
	}
}

func TestOpLimiter_SerializesByDefault(t *testing.T) {
	limiter := NewOpLimiter(0, 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	maxObserved := 0

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer limiter.Release()

			mu.Lock()
			if current := limiter.InFlight(); current > maxObserved {
				maxObserved = current
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
		}()
	}
	wg.Wait()

	if maxObserved > DefaultMaxConcurrentOps {
		t.Errorf("observed %d concurrent ops, want at most %d", maxObserved, DefaultMaxConcurrentOps)
	}
}

func TestOpLimiter_TryAcquire(t *testing.T) {
	limiter := NewOpLimiter(1, time.Second)

	if !limiter.TryAcquire() {
		t.Fatal("first TryAcquire should succeed")
	}
	if limiter.TryAcquire() {
		t.Error("second TryAcquire should fail")
		limiter.Release()
	}
	limiter.Release()

	if !limiter.TryAcquire() {
		t.Error("TryAcquire after Release should succeed")
	}
	limiter.Release()
}

func TestOpLimiter_ContextCancellation(t *testing.T) {
	limiter := NewOpLimiter(1, 5*time.Second)
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer limiter.Release()

	cancelCtx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- limiter.Acquire(cancelCtx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Acquire did not return after context cancellation")
	}
}

func TestOpLimiter_WaitForDrain(t *testing.T) {
	limiter := NewOpLimiter(1, time.Second)
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	drainDone := make(chan error, 1)
	go func() {
		drainDone <- limiter.WaitForDrain(context.Background())
	}()

	select {
	case <-drainDone:
		t.Fatal("WaitForDrain returned with an active operation")
	case <-time.After(30 * time.Millisecond):
	}

	limiter.Release()

	select {
	case err := <-drainDone:
		if err != nil {
			t.Errorf("WaitForDrain returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Error("WaitForDrain did not complete after release")
	}
}

func TestOpLimiter_Slots(t *testing.T) {
	limiter := NewOpLimiter(3, time.Second)
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer limiter.Release()

	want := OpSlots{InFlight: 1, Free: 2, Capacity: 3}
	if got := limiter.Slots(); got != want {
		t.Errorf("Slots() = %+v, want %+v", got, want)
	}
}
