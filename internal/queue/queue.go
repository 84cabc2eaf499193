package queue

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrQueueEmpty  = errors.New("queue is empty")
	ErrQueueClosed = errors.New("queue is closed")
)

type Queue[T any] interface {
	Push(item T) error
	Pop(ctx context.Context) (T, error)
	Size() int
	Close() error
}

// InMemoryQueue is a FIFO queue. Pop blocks while the queue is empty and
// open; once closed, remaining items drain and Pop then reports
// ErrQueueClosed.
type InMemoryQueue[T any] struct {
	items  []T
	mu     sync.Mutex
	notify chan struct{}
	closed bool
}

func NewInMemoryQueue[T any]() *InMemoryQueue[T] {
	return &InMemoryQueue[T]{
		items:  make([]T, 0),
		notify: make(chan struct{}, 1),
	}
}

func (q *InMemoryQueue[T]) Push(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.items = append(q.items, item)
	q.signal()

	return nil
}

func (q *InMemoryQueue[T]) Pop(ctx context.Context) (T, error) {
	var zero T

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = zero
			q.items = q.items[1:]
			if len(q.items) > 0 {
				q.signal()
			}
			q.mu.Unlock()
			return item, nil
		}
		if q.closed {
			q.mu.Unlock()
			return zero, ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-q.notify:
		}
	}
}

func (q *InMemoryQueue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *InMemoryQueue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.signal()

	return nil
}

// signal wakes one waiter; callers hold q.mu.
func (q *InMemoryQueue[T]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

type BatchQueue[T any] struct {
	queue     Queue[T]
	batchSize int
}

func NewBatchQueue[T any](q Queue[T], batchSize int) *BatchQueue[T] {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &BatchQueue[T]{
		queue:     q,
		batchSize: batchSize,
	}
}

func (b *BatchQueue[T]) PushBatch(items []T) error {
	for _, item := range items {
		if err := b.queue.Push(item); err != nil {
			return err
		}
	}
	return nil
}

// PopBatch returns up to batchSize items in FIFO order. It returns
// ErrQueueEmpty once a closed queue has been drained.
func (b *BatchQueue[T]) PopBatch(ctx context.Context) ([]T, error) {
	var items []T

	for i := 0; i < b.batchSize; i++ {
		item, err := b.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueEmpty) || errors.Is(err, ErrQueueClosed) {
				break
			}
			return items, err
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		return nil, ErrQueueEmpty
	}

	return items, nil
}

// Close closes the underlying queue so PopBatch drains instead of blocking.
func (b *BatchQueue[T]) Close() error {
	return b.queue.Close()
}
