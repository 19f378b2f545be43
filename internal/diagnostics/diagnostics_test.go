package diagnostics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthzReportsLastEvent(t *testing.T) {
	s := New(":0", nil)
	rec := httptest.NewRecorder()

	s.SetRunning(true)
	s.Report("query", 2, 5, "fetching page 2")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.handleHealthz(rec, req)

	var got Status
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Running {
		t.Fatalf("expected Running=true")
	}
	if got.EventCount != 1 {
		t.Fatalf("expected EventCount=1, got %d", got.EventCount)
	}
	if got.LastEvent == nil || got.LastEvent.Kind != "query" || got.LastEvent.Done != 2 {
		t.Fatalf("unexpected LastEvent: %+v", got.LastEvent)
	}
}

func TestReportDropsOnFullSubscriberChannelRatherThanBlocking(t *testing.T) {
	s := New(":0", nil)
	ch := make(chan Event) // unbuffered, unread: every send would block
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.Report("automation", 1, 1, "done")
		close(done)
	}()
	<-done // must return promptly; a blocking send would hang the test
}
