package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loading fronts an LRUCache with a loader. Concurrent misses for the same key
// share one load; Invalidate discards both the entry and any load in flight.
type Loading[T any] struct {
	cache *LRUCache[T]
	group singleflight.Group

	mu  sync.Mutex
	gen map[string]uint64
}

func NewLoading[T any](maxSize int, ttl time.Duration) *Loading[T] {
	return &Loading[T]{
		cache: NewLRUCache[T](maxSize, ttl),
		gen:   make(map[string]uint64),
	}
}

// Get returns the cached value for key or runs load. The load ignores the
// caller's cancellation; a canceled caller stops waiting and gets ctx.Err().
func (l *Loading[T]) Get(ctx context.Context, key string, load func(context.Context) (T, error)) (T, error) {
	if v, ok := l.cache.Get(key); ok {
		return v, nil
	}

	l.mu.Lock()
	gen := l.gen[key]
	l.mu.Unlock()

	loadCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(key, func() (any, error) {
		v, err := load(loadCtx)
		if err != nil {
			return v, err
		}
		l.mu.Lock()
		if l.gen[key] == gen {
			l.cache.Set(key, v)
		}
		l.mu.Unlock()
		return v, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Invalidate drops key so the next Get loads fresh data.
func (l *Loading[T]) Invalidate(key string) {
	l.mu.Lock()
	l.gen[key]++
	l.cache.Delete(key)
	l.mu.Unlock()
	l.group.Forget(key)
}

func (l *Loading[T]) CleanExpired() int { return l.cache.CleanExpired() }

func (l *Loading[T]) Size() int { return l.cache.Size() }

func (l *Loading[T]) Stats() Stats { return l.cache.Stats() }
