// Package snapshot writes the final inventory: given a RunnerResult and a
// RelationshipGraph, it produces a timestamped inventory_<YYYYMMDD>_<HHMMSS>/
// directory containing a manifest, statistics, per-type NDJSON object
// streams, and the relationship graph and orphan sets. Every file is
// written atomically (tmp + rename) so a reader only ever observes an
// absent file or a complete, valid one.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/R3E-Network/sfmc-inv2/internal/auditlog"
	"github.com/R3E-Network/sfmc-inv2/internal/cache"
	"github.com/R3E-Network/sfmc-inv2/internal/model"
	"github.com/R3E-Network/sfmc-inv2/internal/ratelimit"
	"github.com/R3E-Network/sfmc-inv2/internal/runner"
	"github.com/R3E-Network/sfmc-inv2/pkg/logger"
)

// ManifestVersion is the schema version stamped into every manifest.json.
// Bump when the output layout changes in a breaking way.
const ManifestVersion = "1"

// Options mirrors the subset of Config that is worth echoing into
// manifest.json for audit purposes.
type Options struct {
	OutputRoot     string
	Preset         string
	Kinds          []string
	IncludeDetails bool
	IncludeContent bool
	MaxConcurrency int
	PageSize       int
}

// Manifest is manifest.json's shape.
type Manifest struct {
	Version        string         `json:"version"`
	GeneratedAt    time.Time      `json:"generatedAt"`
	Options        Options        `json:"options"`
	ExtractorKinds []string       `json:"extractorKinds"`
	Counts         map[string]int `json:"counts"`
	DurationMs     int64          `json:"durationMs"`
}

// TimingEntry mirrors runner.ExtractorTiming for statistics.json.
type TimingEntry struct {
	Kind       string `json:"kind"`
	DurationMs int64  `json:"durationMs"`
	Status     string `json:"status"`
}

// CacheStat reports one cache kind's load statistics.
type CacheStat struct {
	Kind                 string `json:"kind"`
	EntryCount           int    `json:"entryCount"`
	UnresolvedReferences int    `json:"unresolvedReferences"`
	LoadDurationMs       int64  `json:"loadDurationMs"`
}

// RateLimitStat reports one kind's current adaptive delay.
type RateLimitStat struct {
	Kind    string `json:"kind"`
	DelayMs int64  `json:"delayMs"`
}

// Statistics is statistics.json's shape.
type Statistics struct {
	RunID             string             `json:"runId,omitempty"`
	StartedAt         time.Time          `json:"startedAt"`
	FinishedAt        time.Time          `json:"finishedAt"`
	DurationMs        int64              `json:"durationMs"`
	CountsByType      map[string]int     `json:"countsByType"`
	ErrorsByExtractor map[string]int     `json:"errorsByExtractor"`
	TimedOutKinds     []string           `json:"timedOutKinds"`
	AbortedKinds      []string           `json:"abortedKinds"`
	Timings           []TimingEntry      `json:"timings"`
	CacheStats        []CacheStat        `json:"cacheStats,omitempty"`
	RateLimitStats    []RateLimitStat    `json:"rateLimitStats,omitempty"`
	StressMultiplier  float64            `json:"stressMultiplier,omitempty"`
	Errors            []auditlog.Entry   `json:"errors,omitempty"`
}

// GraphDoc is relationships/graph.json's shape: edges plus an
// index of every endpoint seen, keyed by "<type>/<id>" since Go's map keys
// for JSON must be strings.
type GraphDoc struct {
	Edges []model.RelationshipEdge `json:"edges"`
	Index map[string]model.Summary `json:"index"`
}

// Writer writes a complete snapshot directory.
type Writer struct {
	log *logger.Logger
}

// New constructs a Writer.
func New(log *logger.Logger) *Writer {
	if log == nil {
		log = logger.NewDefault("snapshot-writer")
	}
	return &Writer{log: log}
}

// Inputs bundles everything Write needs beyond the RunnerResult/graph pair,
// all optional except the first two.
type Inputs struct {
	Result  *runner.RunnerResult
	Graph   *model.RelationshipGraph
	Options Options

	Audit        *auditlog.Recorder
	Cache        *cache.Manager
	Limiter      *ratelimit.Limiter
	LimiterKinds []ratelimit.Kind
}

// Write creates inventory_<YYYYMMDD>_<HHMMSS>/ under in.Options.OutputRoot
// and populates it. It returns the created directory's path.
func (w *Writer) Write(in Inputs, generatedAt time.Time) (string, error) {
	if in.Result == nil || in.Graph == nil {
		return "", fmt.Errorf("snapshot: Result and Graph are required")
	}
	root := in.Options.OutputRoot
	if root == "" {
		root = "."
	}
	dir := filepath.Join(root, "inventory_"+generatedAt.Format("20060102_150405"))
	if err := os.MkdirAll(filepath.Join(dir, "objects"), 0o755); err != nil {
		return "", model.NewExtractionError(model.ErrWriteFailed, "snapshot-writer", "", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "relationships"), 0o755); err != nil {
		return "", model.NewExtractionError(model.ErrWriteFailed, "snapshot-writer", "", err)
	}

	if err := w.writeManifest(dir, in, generatedAt); err != nil {
		return dir, err
	}
	if err := w.writeStatistics(dir, in); err != nil {
		return dir, err
	}
	if err := w.writeObjects(dir, in.Result); err != nil {
		return dir, err
	}
	if err := w.writeGraph(dir, in.Graph); err != nil {
		return dir, err
	}
	if err := w.writeOrphans(dir, in.Graph); err != nil {
		return dir, err
	}
	if in.Audit != nil && in.Audit.Len() > 0 {
		if err := writeAtomic(filepath.Join(dir, "run.log.jsonl"), in.Audit.JSONLines()); err != nil {
			return dir, err
		}
	}
	return dir, nil
}

func (w *Writer) writeManifest(dir string, in Inputs, generatedAt time.Time) error {
	counts := make(map[string]int, len(in.Result.Results))
	kinds := make([]string, 0, len(in.Result.Results))
	for t, res := range in.Result.Results {
		counts[string(t)] = len(res.Items)
		kinds = append(kinds, string(t))
	}
	sort.Strings(kinds)
	m := Manifest{
		Version:        ManifestVersion,
		GeneratedAt:    generatedAt,
		Options:        in.Options,
		ExtractorKinds: kinds,
		Counts:         counts,
		DurationMs:     in.Result.Stats.DurationMs,
	}
	return marshalAndWrite(filepath.Join(dir, "manifest.json"), m)
}

func (w *Writer) writeStatistics(dir string, in Inputs) error {
	stats := in.Result.Stats
	countsByType := make(map[string]int, len(stats.CountsByType))
	for t, c := range stats.CountsByType {
		countsByType[string(t)] = c
	}
	timings := make([]TimingEntry, 0, len(stats.Timings))
	for _, t := range stats.Timings {
		timings = append(timings, TimingEntry{Kind: string(t.Kind), DurationMs: t.Duration.Milliseconds(), Status: string(t.Status)})
	}
	sort.Slice(timings, func(i, j int) bool { return timings[i].Kind < timings[j].Kind })

	doc := Statistics{
		RunID:             stats.RunID,
		StartedAt:         stats.StartedAt,
		FinishedAt:        stats.FinishedAt,
		DurationMs:        stats.DurationMs,
		CountsByType:      countsByType,
		ErrorsByExtractor: stats.ErrorsByExtractor,
		TimedOutKinds:     stats.TimedOutKinds,
		AbortedKinds:      stats.AbortedKinds,
		Timings:           timings,
	}

	if in.Cache != nil {
		for _, kind := range in.Cache.RegisteredKinds() {
			cs := in.Cache.StatsFor(kind)
			doc.CacheStats = append(doc.CacheStats, CacheStat{
				Kind:                 string(kind),
				EntryCount:           cs.EntryCount,
				UnresolvedReferences: cs.UnresolvedReferences,
				LoadDurationMs:       cs.LoadDuration.Milliseconds(),
			})
		}
	}
	if in.Limiter != nil {
		doc.StressMultiplier = in.Limiter.StressMultiplier()
		for _, kind := range in.LimiterKinds {
			doc.RateLimitStats = append(doc.RateLimitStats, RateLimitStat{
				Kind:    string(kind),
				DelayMs: in.Limiter.Delay(kind).Milliseconds(),
			})
		}
	}
	if in.Audit != nil {
		doc.Errors = in.Audit.Entries()
	}

	return marshalAndWrite(filepath.Join(dir, "statistics.json"), doc)
}

func (w *Writer) writeObjects(dir string, result *runner.RunnerResult) error {
	for t, res := range result.Results {
		path := filepath.Join(dir, "objects", string(t)+".ndjson")
		var buf []byte
		for _, item := range res.Items {
			line, err := json.Marshal(item)
			if err != nil {
				return model.NewExtractionError(model.ErrWriteFailed, "snapshot-writer", string(item.ID), err)
			}
			buf = append(buf, line...)
			buf = append(buf, '\n')
		}
		if err := writeAtomic(path, buf); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeGraph(dir string, g *model.RelationshipGraph) error {
	index := make(map[string]model.Summary, len(g.ObjectIndex))
	for key, summary := range g.ObjectIndex {
		index[string(key.Type)+"/"+key.ID] = summary
	}
	doc := GraphDoc{Edges: g.Edges, Index: index}
	return marshalAndWrite(filepath.Join(dir, "relationships", "graph.json"), doc)
}

func (w *Writer) writeOrphans(dir string, g *model.RelationshipGraph) error {
	return marshalAndWrite(filepath.Join(dir, "relationships", "orphans.json"), g.Orphans)
}

func marshalAndWrite(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return model.NewExtractionError(model.ErrWriteFailed, "snapshot-writer", path, err)
	}
	return writeAtomic(path, data)
}

// writeAtomic writes data to path by first writing to path+".tmp" then
// renaming, so a concurrent reader never observes a truncated file.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return model.NewExtractionError(model.ErrWriteFailed, "snapshot-writer", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return model.NewExtractionError(model.ErrWriteFailed, "snapshot-writer", path, err)
	}
	return nil
}
