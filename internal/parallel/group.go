// Package parallel provides a bounded worker pool and a keyed memoization
// layer used to fan out independent cloud pricing calls.
package parallel

import (
	"context"
	"fmt"
	"sync"
)

// Group is a bounded worker pool scoped to one lookup or scan operation.
// All submitted futures must be resolved, in any order, before the scope
// exits; Close waits for outstanding work.
type Group struct {
	semaphore chan struct{}
	wg        sync.WaitGroup
}

// Future is the handle for one submitted call.
type Future struct {
	done  chan struct{}
	value interface{}
	err   error
}

// NewGroup creates a pool that runs at most size calls concurrently.
func NewGroup(size int) *Group {
	if size <= 0 {
		size = 1
	}
	return &Group{semaphore: make(chan struct{}, size)}
}

// Submit schedules fn on the pool and returns its future. A panic or error
// inside fn propagates when Result is read; sibling calls are not cancelled
// and run to completion.
func (g *Group) Submit(fn func() (interface{}, error)) *Future {
	f := &Future{done: make(chan struct{})}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.semaphore <- struct{}{}
		defer func() { <-g.semaphore }()
		defer func() {
			if r := recover(); r != nil {
				f.value, f.err = nil, fmt.Errorf("submitted call panicked: %v", r)
			}
			close(f.done)
		}()

		f.value, f.err = fn()
	}()
	return f
}

// Result blocks until the call completes or ctx is done.
func (f *Future) Result(ctx context.Context) (interface{}, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close waits for all submitted calls to finish.
func (g *Group) Close() {
	g.wg.Wait()
}
