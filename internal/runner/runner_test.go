package runner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/R3E-Network/sfmc-inv2/internal/cache"
	"github.com/R3E-Network/sfmc-inv2/internal/extract"
	"github.com/R3E-Network/sfmc-inv2/internal/model"
)

type fakeExtractor struct {
	kind     model.ObjectType
	caches   []cache.Kind
	run      func(ctx context.Context, opts extract.Options, progress extract.ProgressFunc) model.ExtractorResult
}

func (f fakeExtractor) Kind() model.ObjectType        { return f.kind }
func (f fakeExtractor) RequiredCaches() []cache.Kind { return f.caches }
func (f fakeExtractor) Run(ctx context.Context, opts extract.Options, progress extract.ProgressFunc) model.ExtractorResult {
	return f.run(ctx, opts, progress)
}

func builderFor(extractors map[string]extract.Extractor) BuilderFunc {
	return func(kind string, deps extract.Deps) (extract.Extractor, bool) {
		ex, ok := extractors[kind]
		return ex, ok
	}
}

func TestRunAggregatesResults(t *testing.T) {
	extractors := map[string]extract.Extractor{
		"query": fakeExtractor{kind: model.ObjectQuery, run: func(ctx context.Context, opts extract.Options, progress extract.ProgressFunc) model.ExtractorResult {
			return model.ExtractorResult{Type: model.ObjectQuery, Items: []model.Object{{ID: "q1", Type: model.ObjectQuery}}, Status: model.StatusOK}
		}},
		"automation": fakeExtractor{kind: model.ObjectAutomation, run: func(ctx context.Context, opts extract.Options, progress extract.ProgressFunc) model.ExtractorResult {
			return model.ExtractorResult{Type: model.ObjectAutomation, Items: []model.Object{{ID: "a1", Type: model.ObjectAutomation}}, Status: model.StatusOK}
		}},
	}
	r := New(extract.Deps{}, nil)
	r.Builder = builderFor(extractors)

	res, err := r.Run(context.Background(), []string{"query", "automation"}, Options{}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(res.Results))
	}
	if len(res.AllItems()) != 2 {
		t.Fatalf("expected 2 aggregated items, got %d", len(res.AllItems()))
	}
	if res.Stats.CountsByType[model.ObjectQuery] != 1 {
		t.Fatalf("expected query count 1, got %d", res.Stats.CountsByType[model.ObjectQuery])
	}
}

func TestRunBoundsGlobalConcurrency(t *testing.T) {
	var inFlight, maxSeen int32
	mkExtractor := func(kind model.ObjectType) extract.Extractor {
		return fakeExtractor{kind: kind, run: func(ctx context.Context, opts extract.Options, progress extract.ProgressFunc) model.ExtractorResult {
			cur := atomic.AddInt32(&inFlight, 1)
			defer atomic.AddInt32(&inFlight, -1)
			for {
				seen := atomic.LoadInt32(&maxSeen)
				if cur <= seen || atomic.CompareAndSwapInt32(&maxSeen, seen, cur) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			return model.ExtractorResult{Type: kind, Status: model.StatusOK}
		}}
	}
	extractors := map[string]extract.Extractor{
		"a": mkExtractor(model.ObjectQuery),
		"b": mkExtractor(model.ObjectAutomation),
		"c": mkExtractor(model.ObjectScript),
		"d": mkExtractor(model.ObjectImport),
		"e": mkExtractor(model.ObjectFilter),
		"f": mkExtractor(model.ObjectEmail),
	}
	r := New(extract.Deps{}, nil)
	r.Builder = builderFor(extractors)

	_, err := r.Run(context.Background(), []string{"a", "b", "c", "d", "e", "f"}, Options{MaxConcurrency: 2}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&maxSeen) > 2 {
		t.Fatalf("observed %d concurrent extractors, want <= 2", maxSeen)
	}
}

func TestRunSequentialRunsOneAtATime(t *testing.T) {
	var inFlight, maxSeen int32
	mkExtractor := func(kind model.ObjectType) extract.Extractor {
		return fakeExtractor{kind: kind, run: func(ctx context.Context, opts extract.Options, progress extract.ProgressFunc) model.ExtractorResult {
			cur := atomic.AddInt32(&inFlight, 1)
			defer atomic.AddInt32(&inFlight, -1)
			for {
				seen := atomic.LoadInt32(&maxSeen)
				if cur <= seen || atomic.CompareAndSwapInt32(&maxSeen, seen, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			return model.ExtractorResult{Type: kind, Status: model.StatusOK}
		}}
	}
	extractors := map[string]extract.Extractor{
		"a": mkExtractor(model.ObjectQuery),
		"b": mkExtractor(model.ObjectAutomation),
		"c": mkExtractor(model.ObjectScript),
	}
	r := New(extract.Deps{}, nil)
	r.Builder = builderFor(extractors)

	_, err := r.RunSequential(context.Background(), []string{"a", "b", "c"}, Options{}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&maxSeen) != 1 {
		t.Fatalf("observed %d concurrent extractors under RunSequential, want 1", maxSeen)
	}
}

func TestRunSurfacesExtractorTimeoutWithoutAbortingSiblings(t *testing.T) {
	extractors := map[string]extract.Extractor{
		"slow": fakeExtractor{kind: model.ObjectQuery, run: func(ctx context.Context, opts extract.Options, progress extract.ProgressFunc) model.ExtractorResult {
			<-ctx.Done()
			return model.ExtractorResult{Type: model.ObjectQuery, Status: model.StatusOK}
		}},
		"fast": fakeExtractor{kind: model.ObjectAutomation, run: func(ctx context.Context, opts extract.Options, progress extract.ProgressFunc) model.ExtractorResult {
			return model.ExtractorResult{Type: model.ObjectAutomation, Status: model.StatusOK}
		}},
	}
	r := New(extract.Deps{}, nil)
	r.Builder = builderFor(extractors)

	res, err := r.Run(context.Background(), []string{"slow", "fast"}, Options{ExtractorTimeout: 20 * time.Millisecond}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Results[model.ObjectQuery].Status != model.StatusPartial {
		t.Fatalf("slow extractor status = %v, want PARTIAL", res.Results[model.ObjectQuery].Status)
	}
	if res.Results[model.ObjectAutomation].Status != model.StatusOK {
		t.Fatalf("fast extractor status = %v, want OK (siblings unaffected)", res.Results[model.ObjectAutomation].Status)
	}
}

func TestCancelAbortsInFlightExtractors(t *testing.T) {
	started := make(chan struct{})
	extractors := map[string]extract.Extractor{
		"blocking": fakeExtractor{kind: model.ObjectQuery, run: func(ctx context.Context, opts extract.Options, progress extract.ProgressFunc) model.ExtractorResult {
			close(started)
			<-ctx.Done()
			return model.ExtractorResult{Type: model.ObjectQuery, Status: model.StatusOK}
		}},
	}
	r := New(extract.Deps{}, nil)
	r.Builder = builderFor(extractors)

	done := make(chan *RunnerResult, 1)
	go func() {
		res, _ := r.Run(context.Background(), []string{"blocking"}, Options{}, nil, nil)
		done <- res
	}()

	<-started
	r.Cancel()

	select {
	case res := <-done:
		if res.Results[model.ObjectQuery].Status != model.StatusAborted {
			t.Fatalf("status = %v, want ABORTED", res.Results[model.ObjectQuery].Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Cancel")
	}
}
