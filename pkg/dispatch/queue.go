package dispatch

import (
	"context"
	"sync"
	"time"
)

// workQueue is a FIFO of paths with a claim set. A path is claimed from
// Push until Done, so it is never queued twice while waiting or in delivery.
type workQueue struct {
	mu      sync.Mutex
	items   []string
	claimed map[string]struct{}
	ready   chan struct{}
}

func newWorkQueue() *workQueue {
	return &workQueue{
		claimed: make(map[string]struct{}),
		ready:   make(chan struct{}, 1),
	}
}

// Push queues path unless it is already claimed.
func (q *workQueue) Push(path string) bool {
	q.mu.Lock()
	if _, ok := q.claimed[path]; ok {
		q.mu.Unlock()
		return false
	}
	q.claimed[path] = struct{}{}
	q.items = append(q.items, path)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// Pop waits up to timeout for a path. It returns false on timeout or when
// ctx is done.
func (q *workQueue) Pop(ctx context.Context, timeout time.Duration) (string, bool) {
	if path, ok := q.tryPop(); ok {
		return path, true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", false
		case <-timer.C:
			return q.tryPop()
		case <-q.ready:
			if path, ok := q.tryPop(); ok {
				return path, true
			}
		}
	}
}

// Done releases the claim on path.
func (q *workQueue) Done(path string) {
	q.mu.Lock()
	delete(q.claimed, path)
	q.mu.Unlock()
}

// Len returns the number of paths waiting to be popped.
func (q *workQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Claimed returns the number of paths queued or in delivery.
func (q *workQueue) Claimed() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.claimed)
}

func (q *workQueue) tryPop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	path := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	return path, true
}
