// Package extract implements the extractor pipeline and the concrete
// domain extractors built on top of it: fetch the raw records for an
// object type, enrich them with breadcrumbs and cross-referenced names,
// then transform them into normalized Objects plus typed
// RelationshipEdges.
package extract

import (
	"context"
	"errors"
	"sync"

	"github.com/R3E-Network/sfmc-inv2/internal/cache"
	"github.com/R3E-Network/sfmc-inv2/internal/model"
	"github.com/R3E-Network/sfmc-inv2/internal/ratelimit"
	"github.com/R3E-Network/sfmc-inv2/internal/resttransport"
	"github.com/R3E-Network/sfmc-inv2/internal/soaptransport"
	"github.com/R3E-Network/sfmc-inv2/pkg/logger"
)

// RawItem is a loosely-typed source record as returned by fetchData, carried
// through enrichData and consumed by transformData.
type RawItem map[string]interface{}

// Options configures a single extractor run.
type Options struct {
	IncludeDetails        bool
	IncludeContent        bool
	PageSize              int
	MaxDetailConcurrency  int
}

// DefaultMaxDetailConcurrency bounds per-item detail fetches.
const DefaultMaxDetailConcurrency = 8

// ProgressFunc reports fetch/enrich progress for one extractor.
type ProgressFunc func(done, total int, label string)

func noopProgress(int, int, string) {}

// Deps bundles the transports, cache manager, and rate limiter every
// extractor is built from.
type Deps struct {
	REST    *resttransport.Transport
	SOAP    *soaptransport.Transport
	Cache   *cache.Manager
	Limiter *ratelimit.Limiter
	Log     *logger.Logger
}

// Extractor is the contract the Runner drives.
type Extractor interface {
	Kind() model.ObjectType
	RequiredCaches() []cache.Kind
	Run(ctx context.Context, opts Options, progress ProgressFunc) model.ExtractorResult
}

// FetchFunc pulls the raw records for an object type.
type FetchFunc func(ctx context.Context, opts Options) ([]RawItem, error)

// EnrichFunc attaches breadcrumbs, resolves referenced names, and fetches
// per-item detail for a single raw item. It runs under
// a bounded semaphore of size opts.MaxDetailConcurrency.
type EnrichFunc func(ctx context.Context, raw RawItem, opts Options) (RawItem, error)

// TransformFunc normalizes one enriched raw item into an Object plus any
// edges it emits.
type TransformFunc func(raw RawItem, opts Options) (model.Object, []model.RelationshipEdge, error)

// Pipeline is the generic fetch/enrich/transform driver every domain
// extractor is built from.
type Pipeline struct {
	Type   model.ObjectType
	Label  string
	Caches []cache.Kind

	Fetch     FetchFunc
	Enrich    EnrichFunc // optional; nil skips the enrich stage
	Transform TransformFunc

	// Finish, when set, runs once after the transform stage with the
	// assembled result, for extractor-specific counters.
	Finish func(*model.ExtractorResult)
}

func (p Pipeline) Kind() model.ObjectType       { return p.Type }
func (p Pipeline) RequiredCaches() []cache.Kind { return p.Caches }

// Run executes the three stages, collecting per-item errors without
// aborting the extractor.
func (p Pipeline) Run(ctx context.Context, opts Options, progress ProgressFunc) model.ExtractorResult {
	if progress == nil {
		progress = noopProgress
	}
	label := p.Label
	if label == "" {
		label = string(p.Type)
	}

	result := model.ExtractorResult{
		Type:     p.Type,
		Counters: make(map[string]int),
		Status:   model.StatusOK,
	}

	raw, err := p.Fetch(ctx, opts)
	if err != nil {
		if canceled(err) {
			result.Status = model.StatusAborted
			result.Errors = append(result.Errors, model.NewExtractionError(model.ErrCanceled, label, "", err))
			return result
		}
		result.Status = model.StatusPartial
		result.Errors = append(result.Errors, toExtractionError(err, label, ""))
		return result
	}

	total := len(raw)
	progress(0, total, label)
	if total == 0 {
		return result
	}

	maxConc := opts.MaxDetailConcurrency
	if maxConc <= 0 {
		maxConc = DefaultMaxDetailConcurrency
	}

	enriched := make([]RawItem, total)
	var mu sync.Mutex
	var errs []*model.ExtractionError
	var done int

	if p.Enrich != nil {
		sem := make(chan struct{}, maxConc)
		var wg sync.WaitGroup
		for i, item := range raw {
			i, item := i, item
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				out, err := p.Enrich(ctx, item, opts)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, toExtractionError(err, label, itemID(item)))
					enriched[i] = item
				} else {
					enriched[i] = out
				}
				done++
				progress(done, total, label)
			}()
		}
		wg.Wait()
		if ctx.Err() != nil {
			result.Status = model.StatusAborted
		}
	} else {
		copy(enriched, raw)
		done = total
		progress(done, total, label)
	}

	items := make([]model.Object, 0, total)
	var edges []model.RelationshipEdge
	unresolvedCount := 0
	for _, item := range enriched {
		if item == nil {
			continue
		}
		obj, objEdges, err := p.Transform(item, opts)
		if err != nil {
			errs = append(errs, toExtractionError(err, label, itemID(item)))
			unresolvedCount++
			continue
		}
		items = append(items, obj)
		edges = append(edges, objEdges...)
	}

	result.Items = items
	result.Edges = edges
	result.Errors = errs
	if unresolvedCount > 0 {
		result.Counters["transform_errors"] = unresolvedCount
	}
	if len(errs) > 0 && result.Status == model.StatusOK {
		result.Status = model.StatusPartial
	}
	if p.Finish != nil {
		p.Finish(&result)
	}
	return result
}

func itemID(raw RawItem) string {
	for _, key := range []string{"ObjectID", "CustomerKey", "id", "ID", "ObjectId"} {
		if v, ok := raw[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

func asExtractionError(err error) (*model.ExtractionError, bool) {
	xerr, ok := err.(*model.ExtractionError)
	return xerr, ok
}

// canceled reports whether err means the run's context was torn down, either
// as a bare context error or already wrapped into an ExtractionError.
func canceled(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	xerr, ok := asExtractionError(err)
	return ok && xerr.Code == model.ErrCanceled
}

func toExtractionError(err error, extractor, itemID string) *model.ExtractionError {
	if xerr, ok := asExtractionError(err); ok {
		if xerr.Extractor == "" {
			xerr.Extractor = extractor
		}
		if xerr.ItemID == "" {
			xerr.ItemID = itemID
		}
		return xerr
	}
	return model.NewExtractionError(model.ErrParse, extractor, itemID, err)
}

