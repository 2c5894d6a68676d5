package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTokenBucket_RefillsPerSecond(t *testing.T) {
	cur := time.Unix(1700000000, 0)
	tb := NewTokenBucket(2)
	tb.now = func() time.Time { return cur }
	tb.lastSec = cur.Unix()
	if !tb.Allow() || !tb.Allow() {
		t.Fatal("first two should pass")
	}
	if tb.Allow() {
		t.Fatal("third in same second should fail")
	}
	cur = cur.Add(time.Second)
	if !tb.Allow() {
		t.Fatal("should refill next second")
	}
}

func TestLimit_Returns429(t *testing.T) {
	tb := NewTokenBucket(1)
	tb.now = func() time.Time { return time.Unix(1700000000, 0) }
	tb.lastSec = 1700000000
	h := Limit(tb, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for i, want := range []int{http.StatusNoContent, http.StatusTooManyRequests} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/sectors", nil))
		if rr.Code != want {
			t.Errorf("req %d: code %d want %d", i, rr.Code, want)
		}
	}
}

func TestWrap_DisabledPassesThrough(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "")
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	h := Wrap(next)
	rr := httptest.NewRecorder()
	for i := 0; i < 500; i++ {
		h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("code = %d", rr.Code)
	}
}

func TestAllowlist(t *testing.T) {
	if !ParseAllowlist("").Allowed("203.0.113.9:1") {
		t.Error("empty list should allow")
	}
	a := ParseAllowlist("127.0.0.1, 10.0.0.0/8, ::1, bogus")
	cases := map[string]bool{
		"127.0.0.1:5000": true,
		"10.20.30.40:80": true,
		"[::1]:443":      true,
		"203.0.113.9:1":  false,
		"not-an-ip":      false,
	}
	for addr, want := range cases {
		if got := a.Allowed(addr); got != want {
			t.Errorf("%s: got %v want %v", addr, got, want)
		}
	}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/reload-boroughs", nil)
	req.RemoteAddr = "203.0.113.9:1"
	a.Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("code = %d", rr.Code)
	}
}
