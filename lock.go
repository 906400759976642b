package rs485

import (
	"context"
	"sync"
)

// lineLock serializes all I/O on one instance. Goroutines blocked on a
// channel send are queued in arrival order, so waiters are served FIFO.
// Once destroyed, pending and future acquisitions fail with ErrDestroyed.
type lineLock struct {
	sem  chan struct{}
	dead chan struct{}
	once sync.Once
}

func newLineLock() *lineLock {
	return &lineLock{
		sem:  make(chan struct{}, 1),
		dead: make(chan struct{}),
	}
}

// acquire waits for the lock without limit unless ctx is cancelled
func (l *lineLock) acquire(ctx context.Context) error {
	select {
	case <-l.dead:
		return ErrDestroyed
	default:
	}

	select {
	case l.sem <- struct{}{}:
	case <-l.dead:
		return ErrDestroyed
	case <-ctx.Done():
		return ctx.Err()
	}

	// destroy may have raced with the send above
	select {
	case <-l.dead:
		<-l.sem
		return ErrDestroyed
	default:
		return nil
	}
}

func (l *lineLock) release() {
	<-l.sem
}

func (l *lineLock) destroy() {
	l.once.Do(func() { close(l.dead) })
}
