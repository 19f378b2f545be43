package auditlog

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/R3E-Network/sfmc-inv2/internal/model"
)

func TestRecordAccumulatesEntries(t *testing.T) {
	r := New()
	r.Record(model.NewExtractionError(model.ErrParse, "query", "Q1", nil))
	r.Record(model.NewExtractionError(model.ErrAuthFailed, "automation", "", nil))

	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	entries := r.Entries()
	if entries[0].Code != model.ErrParse || entries[0].ItemID != "Q1" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
}

func TestRecordNilIsNoop(t *testing.T) {
	r := New()
	r.Record(nil)
	if r.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after recording nil", r.Len())
	}
}

func TestJSONLinesAreValidPerLine(t *testing.T) {
	r := New()
	r.Record(model.NewExtractionError(model.ErrWriteFailed, "snapshot", "", nil))
	r.Record(model.NewExtractionError(model.ErrCanceled, "journey", "J1", nil))

	lines := strings.Split(strings.TrimSpace(string(r.JSONLines())), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 JSON lines, got %d", len(lines))
	}
	for _, line := range lines {
		var v map[string]interface{}
		if err := json.Unmarshal([]byte(line), &v); err != nil {
			t.Fatalf("line is not valid JSON: %v (%q)", err, line)
		}
	}
}
