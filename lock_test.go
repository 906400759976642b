package rs485

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLineLockExclusive(t *testing.T) {
	l := newLineLock()
	if err := l.acquire(context.Background()); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("second acquire error = %v, want DeadlineExceeded", err)
	}

	l.release()
	if err := l.acquire(context.Background()); err != nil {
		t.Errorf("acquire after release failed: %v", err)
	}
	l.release()
}

func TestLineLockFIFO(t *testing.T) {
	l := newLineLock()
	if err := l.acquire(context.Background()); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 0; i < 5; i++ {
		i := i // per-iteration copy; go.mod targets go 1.21 loop semantics
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.acquire(context.Background()); err != nil {
				t.Errorf("waiter %d: %v", i, err)
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			l.release()
		}()
		// queue the waiters one after another
		time.Sleep(5 * time.Millisecond)
	}

	l.release()
	wg.Wait()

	for i, got := range order {
		if got != i {
			t.Fatalf("lock served waiters in order %v, want arrival order", order)
		}
	}
}

func TestLineLockDestroy(t *testing.T) {
	l := newLineLock()
	if err := l.acquire(context.Background()); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- l.acquire(context.Background())
	}()

	time.Sleep(10 * time.Millisecond)
	l.destroy()

	select {
	case err := <-done:
		if !errors.Is(err, ErrDestroyed) {
			t.Errorf("pending acquire error = %v, want ErrDestroyed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("destroy did not wake the pending acquire")
	}

	l.release()
	if err := l.acquire(context.Background()); !errors.Is(err, ErrDestroyed) {
		t.Errorf("acquire after destroy error = %v, want ErrDestroyed", err)
	}
	l.destroy()
}
