package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLRUCache_TTL(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %v, %v", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Error("entry should expire after the TTL")
	}
	if c.Size() != 0 {
		t.Errorf("expired entry should be removed on read, size %d", c.Size())
	}
}

func TestLRUCache_Eviction(t *testing.T) {
	c := NewLRUCache[string](2, time.Hour)
	c.Set("a", "A")
	c.Set("b", "B")
	c.Get("a") // a becomes most recently used
	c.Set("c", "C")

	if _, ok := c.Get("b"); ok {
		t.Error("least recently used entry should be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("recently used entry should survive")
	}
	c.Delete("a")
	if c.Size() != 1 {
		t.Errorf("size after delete = %d", c.Size())
	}

	want := Stats{Entries: 1, Hits: 2, Misses: 1, Evictions: 1}
	if got := c.Stats(); got != want {
		t.Errorf("stats = %+v, want %+v", got, want)
	}
}

func TestLRUCache_CleanExpired(t *testing.T) {
	now := time.Now()
	c := NewLRUCache[int](10, time.Second)
	c.now = func() time.Time { return now }
	c.Set("a", 1)
	c.Set("b", 2)
	now = now.Add(2 * time.Second)
	c.Set("c", 3)

	if n := c.CleanExpired(); n != 2 {
		t.Errorf("CleanExpired() = %d, want 2", n)
	}
	if c.Size() != 1 {
		t.Errorf("size = %d, want 1", c.Size())
	}
}

func TestLoading_CoalescesConcurrentMisses(t *testing.T) {
	l := NewLoading[int](10, time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})

	load := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 10)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := l.Get(context.Background(), "alice", load)
			if err != nil {
				t.Errorf("Get: %v", err)
			}
			results[i] = v
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("expected one load, got %d", calls.Load())
	}
	for _, v := range results {
		if v != 42 {
			t.Errorf("unexpected result %d", v)
		}
	}
	if v, _ := l.Get(context.Background(), "alice", load); v != 42 || calls.Load() != 1 {
		t.Errorf("cached value should be served without loading")
	}
}

func TestLoading_ErrorsAreNotCached(t *testing.T) {
	l := NewLoading[int](10, time.Minute)
	boom := errors.New("boom")
	if _, err := l.Get(context.Background(), "k", func(context.Context) (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	v, err := l.Get(context.Background(), "k", func(context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("Get after error = %d, %v", v, err)
	}
}

func TestLoading_InvalidateDiscardsInFlightLoad(t *testing.T) {
	l := NewLoading[int](10, time.Minute)
	started, release := make(chan struct{}), make(chan struct{})

	done := make(chan int)
	go func() {
		v, _ := l.Get(context.Background(), "k", func(context.Context) (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		done <- v
	}()

	<-started
	l.Invalidate("k")
	close(release)
	if v := <-done; v != 1 {
		t.Fatalf("in-flight caller should still get its value, got %d", v)
	}

	v, _ := l.Get(context.Background(), "k", func(context.Context) (int, error) { return 2, nil })
	if v != 2 {
		t.Errorf("stale load should not be cached, got %d", v)
	}
}

func TestLoading_CallerCancel(t *testing.T) {
	l := NewLoading[int](10, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	defer close(release)

	errCh := make(chan error)
	go func() {
		_, err := l.Get(ctx, "k", func(context.Context) (int, error) {
			<-release
			return 1, nil
		})
		errCh <- err
	}()
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestManager_Cleanup(t *testing.T) {
	m := NewManager()
	c := NewLRUCache[int](10, time.Nanosecond)
	c.Set("a", 1)
	m.Register(c)
	m.StartCleanup(5 * time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for c.Size() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	m.Stop()
	m.Stop()

	if c.Size() != 0 {
		t.Errorf("manager should clean expired entries, size %d", c.Size())
	}
}
