package resttransport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/R3E-Network/sfmc-inv2/internal/auth"
	"github.com/R3E-Network/sfmc-inv2/internal/ratelimit"
)

func TestPaginateStopsOnShortPage(t *testing.T) {
	pages := [][]int{{1, 2}, {3, 4}, {5}} // last page shorter than pageSize=2
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Query().Get("page")
		idx := 0
		fmt.Sscanf(p, "%d", &idx)
		idx--
		if idx < 0 || idx >= len(pages) {
			w.Write([]byte(`{"items":[]}`))
			return
		}
		b, _ := json.Marshal(map[string]interface{}{"items": pages[idx]})
		w.Write(b)
	}))
	defer srv.Close()

	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	}))
	defer authSrv.Close()
	tm := auth.NewTokenManager(auth.Config{AuthBase: authSrv.URL, ClientID: "id", ClientSecret: "s", AccountID: "m"}, nil, nil)
	limiter := ratelimit.New(ratelimit.Config{InitialDelay: 0, MinDelay: 0, MaxInFlight: 4})
	tr := New(srv.URL, nil, tm, limiter, nil)

	var seen int
	err := tr.Paginate(context.Background(), PaginateOptions{Kind: "automation", Path: "/x", PageSize: 2}, func(items []json.RawMessage) error {
		seen += len(items)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen != 5 {
		t.Fatalf("expected 5 items total, got %d", seen)
	}
}

func TestPaginateStopsOnEmptyPage(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Write([]byte(`{"items":[1,2]}`))
			return
		}
		w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	}))
	defer authSrv.Close()
	tm := auth.NewTokenManager(auth.Config{AuthBase: authSrv.URL, ClientID: "id", ClientSecret: "s", AccountID: "m"}, nil, nil)
	limiter := ratelimit.New(ratelimit.Config{InitialDelay: 0, MinDelay: 0, MaxInFlight: 4})
	tr := New(srv.URL, nil, tm, limiter, nil)

	pagesSeen := 0
	err := tr.Paginate(context.Background(), PaginateOptions{Kind: "automation", Path: "/x", PageSize: 2}, func(items []json.RawMessage) error {
		pagesSeen++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pagesSeen != 1 {
		t.Fatalf("expected exactly 1 non-empty page processed, got %d", pagesSeen)
	}
	if calls != 2 {
		t.Fatalf("expected 2 HTTP calls (1 full page + 1 empty), got %d", calls)
	}
}

func TestPaginateNestedItemsPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"page":{"entry":[{"id":"a"},{"id":"b"}]}}`))
	}))
	defer srv.Close()

	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	}))
	defer authSrv.Close()
	tm := auth.NewTokenManager(auth.Config{AuthBase: authSrv.URL, ClientID: "id", ClientSecret: "s", AccountID: "m"}, nil, nil)
	limiter := ratelimit.New(ratelimit.Config{InitialDelay: 0, MinDelay: 0, MaxInFlight: 4})
	tr := New(srv.URL, nil, tm, limiter, nil)

	var seen int
	err := tr.Paginate(context.Background(), PaginateOptions{Kind: "asset", Path: "/x", PageSize: 50, ItemsPath: "page.entry"}, func(items []json.RawMessage) error {
		seen += len(items)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen != 2 {
		t.Fatalf("expected 2 items via nested path, got %d", seen)
	}
}
