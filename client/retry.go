package client

import (
	"sync"
	"time"
)

const (
	// RetryInterval is how often the queue wakes to replay failed mutations.
	RetryInterval = 2 * time.Second
	// MaxRetries is how many replays an operation gets before it is dropped.
	MaxRetries = 3
)

type queuedOp struct {
	Op         Operation
	RetryCount int
}

// RetryQueue holds mutations that failed transiently, in dispatch order.
type RetryQueue struct {
	mu    sync.Mutex
	items []queuedOp
}

func NewRetryQueue() *RetryQueue {
	return &RetryQueue{}
}

// Enqueue appends op. A queued operation for the same activity is superseded
// by the newer payload instead of both being replayed; relative order of
// distinct activities is preserved.
func (q *RetryQueue) Enqueue(op Operation) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if op.ActivityID != "" {
		for i := range q.items {
			if q.items[i].Op.EventID == op.EventID && q.items[i].Op.ActivityID == op.ActivityID {
				q.items[i] = queuedOp{Op: op}
				return
			}
		}
	}
	q.items = append(q.items, queuedOp{Op: op})
}

// Len reports how many operations are waiting.
func (q *RetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// take removes and returns the current batch. The caller re-enqueues items
// that should stay via put, so a dispatch arriving mid-flush still supersedes
// correctly.
func (q *RetryQueue) take() []queuedOp {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// put re-inserts an item unless a newer payload for the same activity arrived
// while it was being replayed.
func (q *RetryQueue) put(item queuedOp) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if item.Op.ActivityID != "" {
		for i := range q.items {
			if q.items[i].Op.EventID == item.Op.EventID && q.items[i].Op.ActivityID == item.Op.ActivityID {
				return
			}
		}
	}
	q.items = append(q.items, item)
}
