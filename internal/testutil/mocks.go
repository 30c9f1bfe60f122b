package testutil

import (
	"context"
	"sync"
)

// Latch holds tasks until Release is called. It is used to keep pool
// workers busy so that later submissions stay queued.
type Latch struct {
	ch   chan struct{}
	once sync.Once

	mu      sync.Mutex
	entered int
	enterCh chan struct{}
}

// NewLatch creates a closed-gate latch.
func NewLatch() *Latch {
	return &Latch{
		ch:      make(chan struct{}),
		enterCh: make(chan struct{}, 1024),
	}
}

// Wait blocks until the latch is released or ctx is done.
func (l *Latch) Wait(ctx context.Context) error {
	l.mu.Lock()
	l.entered++
	l.mu.Unlock()
	select {
	case l.enterCh <- struct{}{}:
	default:
	}

	select {
	case <-l.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entered returns a channel that receives once per goroutine entering Wait.
func (l *Latch) Entered() <-chan struct{} {
	return l.enterCh
}

// Waiting returns how many goroutines have entered Wait so far.
func (l *Latch) Waiting() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entered
}

// Release opens the latch. Safe to call more than once.
func (l *Latch) Release() {
	l.once.Do(func() { close(l.ch) })
}
