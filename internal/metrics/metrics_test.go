package metrics

import (
	"testing"
	"time"

	"github.com/R3E-Network/sfmc-inv2/internal/model"
)

func TestObserveExtractorResultIncrementsCounters(t *testing.T) {
	c := New()
	res := model.ExtractorResult{
		Items:  []model.Object{{ID: "Q1", Type: model.ObjectQuery}},
		Errors: []*model.ExtractionError{model.NewExtractionError(model.ErrParse, "query", "Q1", nil)},
	}
	c.ObserveExtractorResult(model.ObjectQuery, res, 2*time.Second)

	metricFamilies, err := c.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(metricFamilies) == 0 {
		t.Fatal("expected at least one registered metric family")
	}
}

func TestObserveRunIncrementsRunsTotal(t *testing.T) {
	c := New()
	c.ObserveRun(5 * time.Second)
	c.ObserveRun(3 * time.Second)

	mfs, err := c.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == namespace+"_runs_total" {
			found = true
			if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 2 {
				t.Fatalf("runs_total = %v, want 2", got)
			}
		}
	}
	if !found {
		t.Fatal("runs_total metric not found")
	}
}
