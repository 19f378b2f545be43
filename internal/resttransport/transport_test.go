package resttransport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/R3E-Network/sfmc-inv2/internal/auth"
	"github.com/R3E-Network/sfmc-inv2/internal/ratelimit"
)

func newAuth(t *testing.T) (*auth.TokenManager, *httptest.Server) {
	t.Helper()
	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	}))
	t.Cleanup(authSrv.Close)
	tm := auth.NewTokenManager(auth.Config{AuthBase: authSrv.URL, ClientID: "id", ClientSecret: "s", AccountID: "m"}, nil, nil)
	return tm, authSrv
}

func TestDoSucceedsOnFirstTry(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tm, _ := newAuth(t)
	limiter := ratelimit.New(ratelimit.Config{InitialDelay: 0, MinDelay: 0, MaxInFlight: 4})
	tr := New(srv.URL, nil, tm, limiter, nil)

	res, err := tr.Do(context.Background(), "automation", http.MethodGet, "/x", url.Values{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OK || res.Status != http.StatusOK {
		t.Fatalf("expected OK result, got %+v", res)
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("expected exactly 1 call, got %d", got)
	}
}

func TestDoRetriesOn503ThenSucceeds(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tm, _ := newAuth(t)
	limiter := ratelimit.New(ratelimit.Config{InitialDelay: 0, MinDelay: 0, MaxInFlight: 4})
	tr := New(srv.URL, nil, tm, limiter, nil)

	res, err := tr.Do(context.Background(), "automation", http.MethodGet, "/x", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected eventual success, got %+v", res)
	}
	if got := atomic.LoadInt64(&calls); got != 3 {
		t.Fatalf("expected 3 calls (2 failures + 1 success), got %d", got)
	}
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tm, _ := newAuth(t)
	limiter := ratelimit.New(ratelimit.Config{InitialDelay: 0, MinDelay: 0, MaxInFlight: 4})
	tr := New(srv.URL, nil, tm, limiter, nil)

	res, err := tr.Do(context.Background(), "automation", http.MethodGet, "/x", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK {
		t.Fatalf("expected non-OK result after exhausting retries")
	}
	if got := atomic.LoadInt64(&calls); got != maxAttempts {
		t.Fatalf("expected %d calls, got %d", maxAttempts, got)
	}
}

func TestDoRefreshesTokenOnceOn401(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&calls, 1)
		if n == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tm, _ := newAuth(t)
	limiter := ratelimit.New(ratelimit.Config{InitialDelay: 0, MinDelay: 0, MaxInFlight: 4})
	tr := New(srv.URL, nil, tm, limiter, nil)

	res, err := tr.Do(context.Background(), "automation", http.MethodGet, "/x", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected success after token refresh, got %+v", res)
	}
	if got := atomic.LoadInt64(&calls); got != 2 {
		t.Fatalf("expected 2 calls (401 then success), got %d", got)
	}
}

func TestBackoffHonorsRetryAfter(t *testing.T) {
	if d := backoffFor(1, 5*time.Second); d != 5*time.Second {
		t.Fatalf("backoffFor with Retry-After = %v, want 5s", d)
	}
	if d := parseRetryAfter("5"); d != 5*time.Second {
		t.Fatalf("parseRetryAfter(\"5\") = %v, want 5s", d)
	}
	if d := parseRetryAfter(""); d != 0 {
		t.Fatalf("parseRetryAfter(\"\") = %v, want 0", d)
	}
	// Without a Retry-After hint the second attempt backs off around
	// base*2 with +/-20% jitter.
	d := backoffFor(2, 0)
	if d < 1600*time.Millisecond || d > 2400*time.Millisecond {
		t.Fatalf("backoffFor(2) = %v, want within [1.6s, 2.4s]", d)
	}
}
