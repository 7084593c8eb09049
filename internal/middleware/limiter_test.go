package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var discardLogger = slog.New(slog.DiscardHandler)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestIPRateLimiter(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// a very slow refill so only the burst counts
	l := NewIPRateLimiter(ctx, 0.001, 2, false, nil)
	h := l.Middleware(discardLogger)(okHandler)

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for n := range 2 {
		if rec := send("20.55.20.55:1000"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: got %d, want %d", n+1, rec.Code, http.StatusOK)
		}
	}

	rec := send("20.55.20.55:1001")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("got %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	// other clients have their own bucket
	if rec := send("8.8.8.8:1000"); rec.Code != http.StatusOK {
		t.Errorf("other client: got %d, want %d", rec.Code, http.StatusOK)
	}

	if rec := send("mistake"); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid address: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestIPRateLimiterCleanup(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	l := NewIPRateLimiter(ctx, 1, 1, false, nil)

	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	if _, err := l.getLimiter("1.1.1.1"); err != nil {
		t.Fatal(err)
	}
	clock = clock.Add(2 * time.Minute)
	if _, err := l.getLimiter("2.2.2.2"); err != nil {
		t.Fatal(err)
	}

	clock = clock.Add(2 * time.Minute)
	l.cleanup()

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.ips) != 1 {
		t.Fatalf("got %d tracked clients, want 1", len(l.ips))
	}
}
