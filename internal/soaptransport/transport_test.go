package soaptransport

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/R3E-Network/sfmc-inv2/internal/auth"
	"github.com/R3E-Network/sfmc-inv2/internal/ratelimit"
)

func newTestAuth(t *testing.T) *auth.TokenManager {
	t.Helper()
	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	}))
	t.Cleanup(authSrv.Close)
	return auth.NewTokenManager(auth.Config{AuthBase: authSrv.URL, ClientID: "id", ClientSecret: "s", AccountID: "m"}, nil, nil)
}

func page(status string, requestID string, names ...string) string {
	var results strings.Builder
	for _, n := range names {
		fmt.Fprintf(&results, `<Results><ObjectID><ID>%s</ID></ObjectID></Results>`, n)
	}
	return fmt.Sprintf(`<?xml version="1.0"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
<soap:Body>
<RetrieveResponseMsg xmlns="http://exacttarget.com/wsdl/partnerAPI">
<OverallStatus>%s</OverallStatus>
<RequestID>%s</RequestID>
%s
</RetrieveResponseMsg>
</soap:Body>
</soap:Envelope>`, status, requestID, results.String())
}

func TestRetrieveAllSinglePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page(statusOK, "", "a", "b")))
	}))
	defer srv.Close()

	tm := newTestAuth(t)
	limiter := ratelimit.New(ratelimit.Config{InitialDelay: 0, MinDelay: 0, MaxInFlight: 4})
	tr := New(srv.URL, nil, tm, limiter, nil)

	var total int
	err := tr.RetrieveAll(context.Background(), "DataExtensionObject", []string{"Name"}, "", func(nodes []*Node) error {
		total += len(nodes)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 results, got %d", total)
	}
}

func TestRetrieveAllFollowsContinuation(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Write([]byte(page(statusMoreData, "req-1", "a")))
			return
		}
		w.Write([]byte(page(statusOK, "", "b")))
	}))
	defer srv.Close()

	tm := newTestAuth(t)
	limiter := ratelimit.New(ratelimit.Config{InitialDelay: 0, MinDelay: 0, MaxInFlight: 4})
	tr := New(srv.URL, nil, tm, limiter, nil)

	var total int
	err := tr.RetrieveAll(context.Background(), "DataExtensionObject", nil, "", func(nodes []*Node) error {
		total += len(nodes)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 total results across both pages, got %d", total)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls (initial + continuation), got %d", calls)
	}
}

func TestDecodeStrippedHandlesNamespaces(t *testing.T) {
	body := []byte(`<ns1:Foo xmlns:ns1="urn:x"><ns1:Bar id="1">hello</ns1:Bar></ns1:Foo>`)
	root, err := decodeStripped(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	foo := findFirst(root, "Foo")
	if foo == nil {
		t.Fatalf("expected to find Foo node")
	}
	bar := foo.Get("Bar")
	if bar == nil || bar.Text != "hello" {
		t.Fatalf("expected Bar text 'hello', got %+v", bar)
	}
}
