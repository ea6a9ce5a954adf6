package board

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue()
	release, err := q.Acquire(context.Background(), "s1")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rel, err := q.Acquire(context.Background(), "s1")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			rel()
		}()
		// Wait until the goroutine is queued so submission order is fixed.
		require.Eventually(t, func() bool { return q.waiting("s1") == i+1 }, time.Second, time.Millisecond)
	}
	release()
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.Empty(t, q.slots)
}

func TestQueue_IndependentKeys(t *testing.T) {
	q := NewQueue()
	r1, err := q.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer r1()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r2, err := q.Acquire(ctx, "b")
	require.NoError(t, err)
	r2()
}

func TestQueue_CancelWhileWaiting(t *testing.T) {
	q := NewQueue()
	release, err := q.Acquire(context.Background(), "a", "b")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = q.Acquire(ctx, "b", "c")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// "c" was never taken, "b" is still ours.
	rc, err := q.Acquire(context.Background(), "c")
	require.NoError(t, err)
	rc()
	assert.Equal(t, 0, q.waiting("b"))

	release()
	assert.Empty(t, q.slots)
}

func TestQueue_ReleaseIdempotent(t *testing.T) {
	q := NewQueue()
	release, err := q.Acquire(context.Background(), "a", "a")
	require.NoError(t, err)
	release()
	release()
	assert.Empty(t, q.slots)
}

func (q *Queue) waiting(key string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if s, ok := q.slots[key]; ok {
		return len(s.waiters)
	}
	return 0
}
