package notify

import (
	"context"
	"sync"
)

// DefaultQueueCapacity bounds how many undelivered toasts a Queue keeps.
const DefaultQueueCapacity = 32

// Queue buffers notifications until a presenter drains them. When full the
// oldest entry is dropped.
type Queue struct {
	mu       sync.Mutex
	items    []Notification
	capacity int
}

// NewQueue returns a queue holding at most capacity entries. Non-positive
// values fall back to DefaultQueueCapacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{capacity: capacity}
}

// Notify implements Sink.
func (q *Queue) Notify(_ context.Context, n Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == q.capacity {
		q.items = q.items[1:]
	}
	q.items = append(q.items, n)
}

// Drain returns the queued notifications oldest first and empties the queue.
func (q *Queue) Drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	if items == nil {
		return []Notification{}
	}
	return items
}

// Len reports the number of queued notifications.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
