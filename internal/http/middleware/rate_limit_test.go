package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/nailstore/nailstore-api/internal/http/middleware"
)

func newLimitedHandler(t *testing.T, requests int, window time.Duration) (http.Handler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	limiter := middleware.NewRateLimiter(client, middleware.RateLimitConfig{
		Requests: requests,
		Window:   window,
	})
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return limiter.Middleware()(ok), mr
}

func hit(h http.Handler, remoteAddr string) int {
	req := httptest.NewRequest(http.MethodPost, "/api/account/login", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimiterBlocksAfterLimit(t *testing.T) {
	h, _ := newLimitedHandler(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		if code := hit(h, "10.0.0.1:4000"); code != http.StatusOK {
			t.Fatalf("request %d blocked early: %d", i+1, code)
		}
	}
	if code := hit(h, "10.0.0.1:4000"); code != http.StatusTooManyRequests {
		t.Errorf("fourth request = %d, want 429", code)
	}
	// A different caller is unaffected.
	if code := hit(h, "10.0.0.2:4000"); code != http.StatusOK {
		t.Errorf("other address blocked: %d", code)
	}
}

func TestRateLimiterWindowExpires(t *testing.T) {
	h, mr := newLimitedHandler(t, 1, time.Minute)

	if code := hit(h, "10.0.0.1:4000"); code != http.StatusOK {
		t.Fatalf("first request = %d", code)
	}
	if code := hit(h, "10.0.0.1:4000"); code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d, want 429", code)
	}

	mr.FastForward(time.Minute + time.Second)
	if code := hit(h, "10.0.0.1:4000"); code != http.StatusOK {
		t.Errorf("request after window = %d, want 200", code)
	}
}

func TestRateLimiterFailsOpen(t *testing.T) {
	h, mr := newLimitedHandler(t, 1, time.Minute)
	mr.Close()

	for i := 0; i < 3; i++ {
		if code := hit(h, "10.0.0.1:4000"); code != http.StatusOK {
			t.Errorf("request %d with redis down = %d, want 200", i+1, code)
		}
	}
}
