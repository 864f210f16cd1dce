package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(requests int) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	return newLimiter(Config{Requests: requests, Window: time.Minute}, clock.now), clock
}

func TestLimiter_Allow(t *testing.T) {
	rl, clock := newTestLimiter(2)

	if !rl.Allow("alice") || !rl.Allow("alice") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("alice") {
		t.Fatal("third request in the window should be limited")
	}
	if !rl.Allow("bob") {
		t.Error("keys are independent")
	}

	// Repeated rejected calls must not push the window forward.
	clock.advance(30 * time.Second)
	rl.Allow("alice")
	clock.advance(30 * time.Second)
	if !rl.Allow("alice") {
		t.Error("window should have reset after one minute")
	}

	if m := rl.GetMetrics(); m.TotalHits != 2 || m.ClientCount != 2 {
		t.Errorf("unexpected metrics %+v", m)
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	rl, clock := newTestLimiter(5)
	rl.Allow("alice")
	clock.advance(90 * time.Second)
	rl.Allow("bob")
	clock.advance(60 * time.Second)

	rl.cleanupStaleEntries()
	if m := rl.GetMetrics(); m.ClientCount != 1 {
		t.Errorf("expected only bob to survive, got %d clients", m.ClientCount)
	}
}

func TestLimiter_Middleware(t *testing.T) {
	rl, clock := newTestLimiter(1)
	h := rl.Middleware(func(r *http.Request) string { return r.Header.Get("X-User") }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	call := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/assist/tips", nil)
		req.Header.Set("X-User", user)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := call("alice"); rec.Code != http.StatusNoContent {
		t.Fatalf("first call: %d", rec.Code)
	}
	clock.advance(20 * time.Second)
	rec := call("alice")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second call: %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "40" {
		t.Errorf("Retry-After = %q, want 40", got)
	}
	if rec := call(""); rec.Code != http.StatusNoContent {
		t.Errorf("empty key should bypass the limiter, got %d", rec.Code)
	}
}

func TestLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewLimiter(Config{})
	rl.Stop()
	rl.Stop()
}
