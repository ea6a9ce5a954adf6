package board

import (
	"context"
	"slices"
	"sync"
)

// Queue serializes mutations per key (a sprint ID). Waiters on a key are
// served strictly in the order they called Acquire.
type Queue struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	held    bool
	waiters []chan struct{}
}

func NewQueue() *Queue {
	return &Queue{
		slots: make(map[string]*slot),
	}
}

// Acquire locks every key and returns a function releasing them. Keys are
// taken in sorted order so two callers locking overlapping sets cannot
// deadlock. If ctx ends while waiting, keys already taken are released and
// ctx.Err() is returned.
func (q *Queue) Acquire(ctx context.Context, keys ...string) (func(), error) {
	keys = slices.Clone(keys)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	for i, key := range keys {
		if err := q.lock(ctx, key); err != nil {
			for _, k := range keys[:i] {
				q.unlock(k)
			}
			return nil, err
		}
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			for _, k := range keys {
				q.unlock(k)
			}
		})
	}, nil
}

func (q *Queue) lock(ctx context.Context, key string) error {
	q.mu.Lock()
	s, ok := q.slots[key]
	if !ok {
		s = &slot{}
		q.slots[key] = s
	}
	if !s.held {
		s.held = true
		q.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	s.waiters = append(s.waiters, ch)
	q.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
	}

	q.mu.Lock()
	select {
	case <-ch:
		// Ownership was handed over while we were giving up; pass it on.
		q.mu.Unlock()
		q.unlock(key)
		return ctx.Err()
	default:
	}
	s.waiters = slices.DeleteFunc(s.waiters, func(c chan struct{}) bool { return c == ch })
	q.mu.Unlock()
	return ctx.Err()
}

func (q *Queue) unlock(key string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, ok := q.slots[key]
	if !ok || !s.held {
		panic("board: unlock of unlocked key " + key)
	}
	if len(s.waiters) > 0 {
		next := s.waiters[0]
		s.waiters = s.waiters[1:]
		close(next)
		return
	}
	delete(q.slots, key)
}
