// Package runner orchestrates the extractors: it warms required caches,
// fans out the requested extractor kinds with bounded parallelism (or runs
// them one at a time under RunSequential), and aggregates their results
// into a RunnerResult.
package runner

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/R3E-Network/sfmc-inv2/internal/cache"
	"github.com/R3E-Network/sfmc-inv2/internal/extract"
	"github.com/R3E-Network/sfmc-inv2/internal/model"
	"github.com/R3E-Network/sfmc-inv2/pkg/logger"
)

// DefaultMaxConcurrency bounds how many extractor kinds run at once.
const DefaultMaxConcurrency = 4

// DefaultExtractorTimeout is the per-extractor soft timeout.
const DefaultExtractorTimeout = 30 * time.Minute

// ProgressSink receives the per-extractor progress callback.
type ProgressSink func(kind string, done, total int, message string)

// EventSink receives discrete started/finished/error events.
type EventSink func(kind string, event string, detail string)

// Options configures a single Run/RunSequential call.
type Options struct {
	Extractor        extract.Options
	MaxConcurrency   int
	ExtractorTimeout time.Duration
}

func (o Options) normalized() Options {
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = DefaultMaxConcurrency
	}
	if o.ExtractorTimeout <= 0 {
		o.ExtractorTimeout = DefaultExtractorTimeout
	}
	return o
}

// ExtractorTiming records how long one extractor took to run.
type ExtractorTiming struct {
	Kind     model.ObjectType
	Duration time.Duration
	Status   model.ExtractorStatus
}

// RunStats summarizes a run for statistics.json.
type RunStats struct {
	RunID             string
	StartedAt         time.Time
	FinishedAt        time.Time
	DurationMs        int64
	CountsByType      map[model.ObjectType]int
	ErrorsByExtractor map[string]int
	TimedOutKinds      []string
	AbortedKinds       []string
	Timings           []ExtractorTiming
}

// RunnerResult is what Run/RunSequential hands to the Relationship Builder
// and the Snapshot Writer.
type RunnerResult struct {
	Results map[model.ObjectType]model.ExtractorResult
	Stats   RunStats
}

// AllItems flattens every extractor's items, preserving per-extractor order
// but guaranteeing no ordering across extractors.
func (r *RunnerResult) AllItems() []model.Object {
	var out []model.Object
	for _, res := range r.Results {
		out = append(out, res.Items...)
	}
	return out
}

// AllEdges flattens every extractor's edges.
func (r *RunnerResult) AllEdges() []model.RelationshipEdge {
	var out []model.RelationshipEdge
	for _, res := range r.Results {
		out = append(out, res.Edges...)
	}
	return out
}

// BuilderFunc resolves an extractor kind to an Extractor; swappable in
// tests so the runner's orchestration logic can be exercised without real
// transports.
type BuilderFunc func(kind string, deps extract.Deps) (extract.Extractor, bool)

// Runner orchestrates selected extractors with bounded parallelism.
type Runner struct {
	deps    extract.Deps
	log     *logger.Logger
	Builder BuilderFunc

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New constructs a Runner over the given extractor dependencies.
func New(deps extract.Deps, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.NewDefault("runner")
	}
	return &Runner{deps: deps, log: log, Builder: extract.Build}
}

// Cancel signals all outstanding tasks of the current Run/RunSequential
// call, if any.
func (r *Runner) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

// Run runs kinds in parallel under a global semaphore.
func (r *Runner) Run(ctx context.Context, kinds []string, opts Options, progress ProgressSink, events EventSink) (*RunnerResult, error) {
	return r.run(ctx, kinds, opts, progress, events, true)
}

// RunSequential runs kinds one at a time.
func (r *Runner) RunSequential(ctx context.Context, kinds []string, opts Options, progress ProgressSink, events EventSink) (*RunnerResult, error) {
	return r.run(ctx, kinds, opts, progress, events, false)
}

func (r *Runner) run(ctx context.Context, kinds []string, opts Options, progress ProgressSink, events EventSink, parallel bool) (*RunnerResult, error) {
	opts = opts.normalized()
	if progress == nil {
		progress = func(string, int, int, string) {}
	}
	if events == nil {
		events = func(string, string, string) {}
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer cancel()

	runID := uuid.NewString()
	log := r.log.WithField("runId", runID)
	log.WithField("kinds", len(kinds)).Info("extraction run starting")

	extractors := make(map[string]extract.Extractor, len(kinds))
	var requiredCaches []cache.Kind
	seen := map[cache.Kind]bool{}
	var buildErr *multierror.Error

	for _, kind := range kinds {
		ex, ok := r.Builder(kind, r.deps)
		if !ok {
			buildErr = multierror.Append(buildErr, unknownKindError(kind))
			continue
		}
		extractors[kind] = ex
		for _, ck := range ex.RequiredCaches() {
			if !seen[ck] {
				seen[ck] = true
				requiredCaches = append(requiredCaches, ck)
			}
		}
	}

	if r.deps.Cache != nil && len(requiredCaches) > 0 {
		if err := r.deps.Cache.Warm(runCtx, requiredCaches, opts.MaxConcurrency); err != nil {
			log.WithField("error", err.Error()).Warn("cache warm encountered an error; affected extractors will fail with CACHE_LOAD_FAILED")
		}
	}

	stats := RunStats{
		RunID:             runID,
		StartedAt:         time.Now(),
		CountsByType:      make(map[model.ObjectType]int),
		ErrorsByExtractor: make(map[string]int),
	}
	results := make(map[model.ObjectType]model.ExtractorResult, len(extractors))

	maxConc := 1
	if parallel {
		maxConc = opts.MaxConcurrency
	}
	sem := make(chan struct{}, maxConc)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for kind, ex := range extractors {
		kind, ex := kind, ex
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			events(kind, "started", "")
			extCtx, extCancel := context.WithTimeout(runCtx, opts.ExtractorTimeout)
			defer extCancel()

			start := time.Now()
			res := ex.Run(extCtx, opts.Extractor, func(done, total int, label string) {
				progress(kind, done, total, label)
			})
			duration := time.Since(start)

			timedOut := extCtx.Err() == context.DeadlineExceeded
			if timedOut {
				res.Status = model.StatusPartial
				res.Errors = append(res.Errors, model.NewExtractionError(model.ErrExtractorTimeout, kind, "", extCtx.Err()))
			} else if runCtx.Err() != nil {
				res.Status = model.StatusAborted
			}

			mu.Lock()
			defer mu.Unlock()
			if timedOut {
				stats.TimedOutKinds = append(stats.TimedOutKinds, kind)
			}
			results[ex.Kind()] = res
			stats.CountsByType[ex.Kind()] = len(res.Items)
			if len(res.Errors) > 0 {
				stats.ErrorsByExtractor[kind] = len(res.Errors)
			}
			stats.Timings = append(stats.Timings, ExtractorTiming{Kind: ex.Kind(), Duration: duration, Status: res.Status})
			switch res.Status {
			case model.StatusAborted:
				stats.AbortedKinds = append(stats.AbortedKinds, kind)
				events(kind, "error", "aborted")
			case model.StatusPartial:
				events(kind, "error", "partial")
			default:
				events(kind, "finished", "")
			}
		}()
	}
	wg.Wait()

	stats.FinishedAt = time.Now()
	stats.DurationMs = stats.FinishedAt.Sub(stats.StartedAt).Milliseconds()
	log.WithField("durationMs", stats.DurationMs).Info("extraction run finished")

	var err error
	if buildErr != nil {
		err = buildErr.ErrorOrNil()
	}
	return &RunnerResult{Results: results, Stats: stats}, err
}

type unknownKindErr struct{ kind string }

func (e unknownKindErr) Error() string { return "runner: unknown extractor kind " + e.kind }

func unknownKindError(kind string) error { return unknownKindErr{kind: kind} }
