// Command sfmc-inventory is a thin composition root over the extraction
// engine: it loads configuration from the environment, wires the
// transports, caches, rate limiter, and runner together, runs the
// requested extractors, and writes a snapshot directory. Flag parsing,
// preset pickers, and the interactive TUI are external collaborators that
// embed the same packages.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/R3E-Network/sfmc-inv2/internal/auditlog"
	"github.com/R3E-Network/sfmc-inv2/internal/auth"
	"github.com/R3E-Network/sfmc-inv2/internal/cache"
	"github.com/R3E-Network/sfmc-inv2/internal/config"
	"github.com/R3E-Network/sfmc-inv2/internal/diagnostics"
	"github.com/R3E-Network/sfmc-inv2/internal/extract"
	"github.com/R3E-Network/sfmc-inv2/internal/graph"
	"github.com/R3E-Network/sfmc-inv2/internal/history"
	"github.com/R3E-Network/sfmc-inv2/internal/hostload"
	"github.com/R3E-Network/sfmc-inv2/internal/metrics"
	"github.com/R3E-Network/sfmc-inv2/internal/model"
	"github.com/R3E-Network/sfmc-inv2/internal/ratelimit"
	"github.com/R3E-Network/sfmc-inv2/internal/resttransport"
	"github.com/R3E-Network/sfmc-inv2/internal/runner"
	"github.com/R3E-Network/sfmc-inv2/internal/snapshot"
	"github.com/R3E-Network/sfmc-inv2/internal/soaptransport"
	"github.com/R3E-Network/sfmc-inv2/pkg/logger"
)

const (
	exitOK       = 0
	exitConfig   = 2
	exitAuth     = 3
	exitPartial  = 4
	exitCanceled = 5
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	}

	log := logger.New(logger.LoggingConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	tokens := auth.NewTokenManager(auth.Config{
		AuthBase:     cfg.AuthBase,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		AccountID:    cfg.AccountID,
	}, httpClient, log)

	limiter := ratelimit.New(ratelimit.DefaultConfig())
	rest := resttransport.New(cfg.RestBase, httpClient, tokens, limiter, log)
	soap := soaptransport.New(cfg.SoapBase, httpClient, tokens, limiter, log)

	mgr := cache.New(log)
	extract.RegisterFolderLoaders(mgr, rest, soap)
	extract.RegisterDefinitionLoaders(mgr, rest, soap)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		mgr.SetStore(cache.NewRedisStore(rdb, 0, log))
		defer rdb.Close()
	}

	sampler := hostload.New(0, limiter.Signal, log)
	go sampler.Run(ctx)

	var collectors *metrics.Collectors
	if cfg.MetricsEnabled {
		collectors = metrics.New()
	}

	var diag *diagnostics.Server
	if cfg.DiagnosticsAddr != "" {
		diag = diagnostics.New(cfg.DiagnosticsAddr, log)
		if collectors != nil {
			diag.Handle("/metrics", promhttp.HandlerFor(collectors.Registry, promhttp.HandlerOpts{}))
		}
		diag.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			diag.Shutdown(shutdownCtx)
		}()
		diag.SetRunning(true)
		defer diag.SetRunning(false)
	}

	audit := auditlog.New()
	r := runner.New(extract.Deps{REST: rest, SOAP: soap, Cache: mgr, Limiter: limiter, Log: log}, log)

	kinds := cfg.ResolveKinds()
	opts := runner.Options{
		Extractor: extract.Options{
			IncludeDetails:       cfg.IncludeDetails,
			IncludeContent:       cfg.IncludeContent,
			PageSize:             cfg.PageSize,
			MaxDetailConcurrency: cfg.MaxDetailParallel,
		},
		MaxConcurrency:   cfg.MaxConcurrency,
		ExtractorTimeout: cfg.ExtractorTimeout,
	}

	progress := func(kind string, done, total int, message string) {
		if diag != nil {
			diag.Report(kind, done, total, message)
		}
	}
	events := func(kind, event, detail string) {
		log.WithFields(map[string]interface{}{"kind": kind, "event": event, "detail": detail}).Debug("extractor event")
	}

	started := time.Now()
	result, runErr := r.Run(ctx, kinds, opts, progress, events)
	if runErr != nil {
		log.WithField("error", runErr.Error()).Error("runner reported errors")
	}

	durations := make(map[model.ObjectType]time.Duration, len(result.Stats.Timings))
	for _, t := range result.Stats.Timings {
		durations[t.Kind] = t.Duration
	}

	authFatal := true
	totalErrors := 0
	for _, res := range result.Results {
		audit.RecordAll(res.Errors)
		totalErrors += len(res.Errors)
		if collectors != nil {
			collectors.ObserveExtractorResult(res.Type, res, durations[res.Type])
		}
		fatal := false
		for _, e := range res.Errors {
			if e.Code == model.ErrAuthFailed {
				fatal = true
			}
		}
		if !fatal {
			authFatal = false
		}
	}
	if len(result.Results) == 0 {
		authFatal = false
	}
	if collectors != nil {
		collectors.ObserveRun(time.Since(started))
	}

	g := graph.Build(result.AllItems(), result.AllEdges())

	writer := snapshot.New(log)
	dir, writeErr := writer.Write(snapshot.Inputs{
		Result: result,
		Graph:  g,
		Options: snapshot.Options{
			OutputRoot:     cfg.OutputRoot,
			Preset:         string(cfg.Preset),
			Kinds:          kinds,
			IncludeDetails: cfg.IncludeDetails,
			IncludeContent: cfg.IncludeContent,
			MaxConcurrency: cfg.MaxConcurrency,
			PageSize:       cfg.PageSize,
		},
		Audit:        audit,
		Cache:        mgr,
		Limiter:      limiter,
		LimiterKinds: limiterKinds(kinds),
	}, time.Now())
	if writeErr != nil {
		log.WithField("error", writeErr.Error()).Error("snapshot write failed")
	} else {
		log.WithField("dir", dir).Info("snapshot written")
	}

	partial := totalErrors > 0 || writeErr != nil
	for _, res := range result.Results {
		if res.Status != model.StatusOK {
			partial = true
		}
	}

	if cfg.HistoryDSN != "" {
		recordHistory(cfg.HistoryDSN, log, history.RunSummary{
			GeneratedAt:    started,
			OutputDir:      dir,
			Preset:         string(cfg.Preset),
			ExtractorKinds: kinds,
			DurationMs:     result.Stats.DurationMs,
			TotalObjects:   len(result.AllItems()),
			TotalErrors:    totalErrors,
			Partial:        partial,
		})
	}

	switch {
	case ctx.Err() != nil:
		return exitCanceled
	case authFatal:
		return exitAuth
	case partial:
		return exitPartial
	default:
		return exitOK
	}
}

// limiterKinds maps the selected extractor kinds onto rate-limiter keys for
// statistics.json.
func limiterKinds(kinds []string) []ratelimit.Kind {
	out := make([]ratelimit.Kind, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, ratelimit.Kind(k))
	}
	return out
}

// recordHistory is best-effort: a run's snapshot is complete regardless of
// whether the audit row landed.
func recordHistory(dsn string, log *logger.Logger, summary history.RunSummary) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	rec, err := history.Open(ctx, dsn, log)
	if err != nil {
		log.WithField("error", err.Error()).Warn("run history unavailable")
		return
	}
	defer rec.Close()
	rec.Record(ctx, summary)
}
