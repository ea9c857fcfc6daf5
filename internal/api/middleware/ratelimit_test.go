package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newTestLimiter(t *testing.T, perSecond rate.Limit, burst int, maxAge time.Duration) *IPRateLimiter {
	t.Helper()
	rl := NewIPRateLimiter(RateLimitConfig{
		Rate:            perSecond,
		Burst:           burst,
		CleanupInterval: time.Hour,
		MaxAge:          maxAge,
	})
	t.Cleanup(rl.Stop)
	return rl
}

func TestIPRateLimiterBurstPerIP(t *testing.T) {
	rl := newTestLimiter(t, 2, 2, time.Hour)

	for i := 0; i < 2; i++ {
		if !rl.Allow("192.168.1.1") {
			t.Fatalf("request %d within burst was denied", i+1)
		}
	}
	if rl.Allow("192.168.1.1") {
		t.Fatal("request beyond burst was allowed")
	}

	// Limits are tracked per IP, a fresh address starts with a full bucket.
	if !rl.Allow("192.168.1.2") {
		t.Fatal("request from fresh IP was denied")
	}
}

func TestIPRateLimiterEvictsIdleEntries(t *testing.T) {
	rl := newTestLimiter(t, 10, 10, 0) // MaxAge 0: idle immediately

	rl.Allow("10.0.0.1")
	rl.Allow("10.0.0.2")

	rl.cleanup()

	rl.mu.Lock()
	remaining := len(rl.entries)
	rl.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("entries after cleanup = %d, want 0", remaining)
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	rl := newTestLimiter(t, 1, 1, time.Hour)
	handler := RateLimit(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/calls", nil)
		req.RemoteAddr = "10.0.0.5:12345"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	if rr := send(); rr.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rr.Code)
	}

	rr := send()
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want 1", got)
	}
	var resp errorEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse 429 body: %v", err)
	}
	if resp.Error != "rate limit exceeded" {
		t.Errorf("error = %q, want 'rate limit exceeded'", resp.Error)
	}
}

func TestExtractIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		want       string
	}{
		{"ipv4 with port", "192.168.1.1:8080", "192.168.1.1"},
		{"ipv6 with port", "[::1]:8080", "::1"},
		{"bare ip", "10.0.0.1", "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
			r.RemoteAddr = tt.remoteAddr
			if got := extractIP(r); got != tt.want {
				t.Errorf("extractIP(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
			}
		})
	}
}
