package handler

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiter_PerKeyBuckets(t *testing.T) {
	l := NewRateLimiter(0.001, 1)

	if !l.Allow("a") {
		t.Fatal("first request for a should pass")
	}
	if l.Allow("a") {
		t.Error("second request for a should be limited")
	}
	if !l.Allow("b") {
		t.Error("b has its own bucket")
	}
}

func TestRateLimiter_CleanupDropsIdleKeys(t *testing.T) {
	l := NewRateLimiter(1, 1, WithIdleTTL(time.Nanosecond))
	l.Allow("a")
	time.Sleep(time.Millisecond)

	l.Cleanup()
	if n := l.size(); n != 0 {
		t.Errorf("expected idle key removed, %d left", n)
	}
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"10.0.0.1:5555", "10.0.0.1"},
		{"[::1]:80", "::1"},
		{"10.0.0.2", "10.0.0.2"},
		{"", "unknown"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = tt.remote
		if got := clientKey(r); got != tt.want {
			t.Errorf("clientKey(%q) = %q, want %q", tt.remote, got, tt.want)
		}
	}
}
