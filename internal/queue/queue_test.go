package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueueFIFO(t *testing.T) {
	q := NewInMemoryQueue[string]()
	ctx := context.Background()

	require.NoError(t, q.Push("a"))
	require.NoError(t, q.Push("b"))
	assert.Equal(t, 2, q.Size())

	first, err := q.Pop(ctx)
	require.NoError(t, err)
	second, err := q.Pop(ctx)
	require.NoError(t, err)

	assert.Equal(t, "a", first)
	assert.Equal(t, "b", second)
	assert.Equal(t, 0, q.Size())
}

func TestInMemoryQueueClose(t *testing.T) {
	q := NewInMemoryQueue[int]()
	require.NoError(t, q.Push(1))
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Push(2), ErrQueueClosed)

	v, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = q.Pop(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestInMemoryQueuePopRespectsContext(t *testing.T) {
	q := NewInMemoryQueue[int]()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInMemoryQueuePopWakesOnPush(t *testing.T) {
	q := NewInMemoryQueue[int]()

	done := make(chan int, 1)
	go func() {
		v, err := q.Pop(context.Background())
		if err == nil {
			done <- v
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Push(7))

	select {
	case v := <-done:
		assert.Equal(t, 7, v)
	case <-time.After(time.Second):
		t.Fatal("pop did not wake up")
	}
}

func TestBatchQueuePopBatch(t *testing.T) {
	tests := []struct {
		name      string
		items     int
		batchSize int
		expected  []int
	}{
		{name: "exact batches", items: 6, batchSize: 3, expected: []int{3, 3}},
		{name: "short tail", items: 7, batchSize: 3, expected: []int{3, 3, 1}},
		{name: "single batch", items: 2, batchSize: 100, expected: []int{2}},
		{name: "empty", items: 0, batchSize: 10, expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bq := NewBatchQueue[int](NewInMemoryQueue[int](), tt.batchSize)

			items := make([]int, tt.items)
			for i := range items {
				items[i] = i
			}
			require.NoError(t, bq.PushBatch(items))
			require.NoError(t, bq.Close())

			var sizes []int
			next := 0
			for {
				batch, err := bq.PopBatch(context.Background())
				if err != nil {
					assert.ErrorIs(t, err, ErrQueueEmpty)
					break
				}
				for _, v := range batch {
					assert.Equal(t, next, v)
					next++
				}
				sizes = append(sizes, len(batch))
			}

			assert.Equal(t, tt.expected, sizes)
		})
	}
}
