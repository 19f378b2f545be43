package extract

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/R3E-Network/sfmc-inv2/internal/model"
)

func TestPipelineEmptyCollection(t *testing.T) {
	p := Pipeline{
		Type: model.ObjectQuery,
		Fetch: func(ctx context.Context, opts Options) ([]RawItem, error) {
			return nil, nil
		},
		Transform: func(raw RawItem, opts Options) (model.Object, []model.RelationshipEdge, error) {
			t.Fatal("transform should not be called for an empty fetch")
			return model.Object{}, nil, nil
		},
	}
	res := p.Run(context.Background(), Options{}, nil)
	if res.Status != model.StatusOK {
		t.Fatalf("status = %v, want OK", res.Status)
	}
	if len(res.Items) != 0 || len(res.Errors) != 0 {
		t.Fatalf("expected zero items/errors, got %+v", res)
	}
}

func TestPipelinePerItemErrorsDoNotAbort(t *testing.T) {
	raw := []RawItem{{"id": "ok-1"}, {"id": "bad-1"}, {"id": "ok-2"}}
	p := Pipeline{
		Type: model.ObjectQuery,
		Fetch: func(ctx context.Context, opts Options) ([]RawItem, error) {
			return raw, nil
		},
		Transform: func(item RawItem, opts Options) (model.Object, []model.RelationshipEdge, error) {
			id := item["id"].(string)
			if id == "bad-1" {
				return model.Object{}, nil, errors.New("boom")
			}
			return model.Object{ID: id, Type: model.ObjectQuery}, nil, nil
		},
	}
	res := p.Run(context.Background(), Options{}, nil)
	if res.Status != model.StatusPartial {
		t.Fatalf("status = %v, want PARTIAL", res.Status)
	}
	if len(res.Items) != 2 {
		t.Fatalf("expected 2 surviving items, got %d", len(res.Items))
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected 1 collected error, got %d", len(res.Errors))
	}
}

func TestPipelineFetchFailureIsPartial(t *testing.T) {
	p := Pipeline{
		Type: model.ObjectQuery,
		Fetch: func(ctx context.Context, opts Options) ([]RawItem, error) {
			return nil, errors.New("transport exhausted")
		},
	}
	res := p.Run(context.Background(), Options{}, nil)
	if res.Status != model.StatusPartial {
		t.Fatalf("status = %v, want PARTIAL", res.Status)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(res.Errors))
	}
}

func TestPipelineEnrichRunsConcurrentlyBounded(t *testing.T) {
	raw := make([]RawItem, 20)
	for i := range raw {
		raw[i] = RawItem{"id": string(rune('a' + i))}
	}
	var inFlight, maxSeen int32
	p := Pipeline{
		Type: model.ObjectQuery,
		Fetch: func(ctx context.Context, opts Options) ([]RawItem, error) {
			return raw, nil
		},
		Enrich: func(ctx context.Context, item RawItem, opts Options) (RawItem, error) {
			cur := atomic.AddInt32(&inFlight, 1)
			for {
				seen := atomic.LoadInt32(&maxSeen)
				if cur <= seen || atomic.CompareAndSwapInt32(&maxSeen, seen, cur) {
					break
				}
			}
			defer atomic.AddInt32(&inFlight, -1)
			return item, nil
		},
		Transform: func(item RawItem, opts Options) (model.Object, []model.RelationshipEdge, error) {
			return model.Object{ID: item["id"].(string), Type: model.ObjectQuery}, nil, nil
		},
	}
	res := p.Run(context.Background(), Options{MaxDetailConcurrency: 4}, nil)
	if len(res.Items) != 20 {
		t.Fatalf("expected 20 items, got %d", len(res.Items))
	}
	if atomic.LoadInt32(&maxSeen) > 4 {
		t.Fatalf("observed %d concurrent enrich calls, want <= 4", maxSeen)
	}
}
