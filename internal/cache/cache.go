// Package cache is the registry of reference tables (folder maps,
// definition lookups) keyed by Kind, each lazily populated exactly once
// per run under a per-kind mutex with double-checked locking. An optional
// Store backing warm-starts tables across runs; the loader path stays
// authoritative.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/R3E-Network/sfmc-inv2/internal/breadcrumb"
	"github.com/R3E-Network/sfmc-inv2/internal/model"
	"github.com/R3E-Network/sfmc-inv2/pkg/logger"
)

// Kind identifies a cache registry entry.
type Kind string

const (
	KindFolderAutomation    Kind = "folder_automation"
	KindFolderQuery         Kind = "folder_query"
	KindFolderDataExtension Kind = "folder_data_extension"
	KindFolderJourney       Kind = "folder_journey"
	KindFolderEmail         Kind = "folder_email"
	KindFolderAsset         Kind = "folder_asset"
	KindFolderScript        Kind = "folder_script"
	KindFolderImport        Kind = "folder_import"
	KindFolderFilter        Kind = "folder_filter"
	KindFolderDataExtract   Kind = "folder_data_extract"
	KindFolderFileTransfer  Kind = "folder_file_transfer"
	KindFolderList          Kind = "folder_list"
	KindFolderTriggeredSend Kind = "folder_triggered_send"

	KindQueryByID         Kind = "query_by_id"
	KindScriptByID        Kind = "script_by_id"
	KindEmailByID         Kind = "email_by_id"
	KindTriggeredSendByID Kind = "triggered_send_by_id"
	KindDataExtensionByID Kind = "data_extension_by_id"
)

// Loader populates a cache entry for a Kind. It returns the populated map
// (id -> raw record, as a generic JSON-shaped value) plus the count of
// references it could not resolve while loading (unresolvedReferences).
type Loader func(ctx context.Context) (entries map[string]interface{}, unresolvedReferences int, err error)

// Stats reports a loaded cache entry's statistics.
type Stats struct {
	LoadDuration          time.Duration
	EntryCount            int
	UnresolvedReferences  int
}

type entry struct {
	mu      sync.Mutex
	loaded  bool
	data    map[string]interface{}
	stats   Stats
	loadErr error
}

// Manager is the Cache Manager: a registry of lazily-populated entries
// keyed by Kind.
type Manager struct {
	log *logger.Logger

	mu      sync.Mutex
	loaders map[Kind]Loader
	entries map[Kind]*entry
	store   Store

	bcMu       sync.Mutex
	bcBuilders map[Kind]*breadcrumb.Builder
}

// New constructs an empty Manager.
func New(log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDefault("cache-manager")
	}
	return &Manager{log: log, loaders: make(map[Kind]Loader), entries: make(map[Kind]*entry), bcBuilders: make(map[Kind]*breadcrumb.Builder)}
}

// Register associates a Loader with a Kind. Must be called before Get is
// used for that Kind.
func (m *Manager) Register(kind Kind, loader Loader) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaders[kind] = loader
}

func (m *Manager) entryFor(kind Kind) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[kind]
	if !ok {
		e = &entry{}
		m.entries[kind] = e
	}
	return e
}

// Get resolves a single id out of kind's cache map, loading the cache on
// first use.
func (m *Manager) Get(ctx context.Context, kind Kind, id string) (interface{}, bool, error) {
	data, err := m.GetAll(ctx, kind)
	if err != nil {
		return nil, false, err
	}
	v, ok := data[id]
	return v, ok, nil
}

// GetAll returns the full populated map for kind, loading it on first use.
// Population is idempotent under the kind's mutex with a double-checked
// load flag.
func (m *Manager) GetAll(ctx context.Context, kind Kind) (map[string]interface{}, error) {
	e := m.entryFor(kind)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded {
		return e.data, e.loadErr
	}

	m.mu.Lock()
	loader, ok := m.loaders[kind]
	store := m.store
	m.mu.Unlock()
	if !ok {
		e.loaded = true
		e.loadErr = model.NewExtractionError(model.ErrCacheLoadFailed, "cache-manager", string(kind), errNoLoader(kind))
		return nil, e.loadErr
	}

	if store != nil {
		start := time.Now()
		if data, hit := store.Load(ctx, kind); hit {
			e.loaded = true
			e.data = data
			e.stats = Stats{LoadDuration: time.Since(start), EntryCount: len(data)}
			m.log.WithField("kind", string(kind)).WithField("entries", len(data)).Info("cache warm-started from store")
			return e.data, nil
		}
	}

	start := time.Now()
	data, unresolved, err := loader(ctx)
	duration := time.Since(start)

	e.loaded = true
	if err != nil {
		e.loadErr = model.NewExtractionError(model.ErrCacheLoadFailed, "cache-manager", string(kind), err)
		m.log.WithField("kind", string(kind)).WithField("error", err.Error()).Error("cache load failed")
		return nil, e.loadErr
	}
	e.data = data
	e.stats = Stats{LoadDuration: duration, EntryCount: len(data), UnresolvedReferences: unresolved}
	m.log.WithField("kind", string(kind)).WithField("entries", len(data)).WithField("duration", duration.String()).Info("cache loaded")
	if store != nil {
		store.Save(ctx, kind, data)
	}
	return e.data, nil
}

// Warm preloads the given kinds in parallel, bounded by maxConcurrent
// — the same buffered-channel semaphore idiom internal/runner uses for
// extractor concurrency. The first load error is returned; all kinds are
// still attempted.
func (m *Manager) Warm(ctx context.Context, kinds []Kind, maxConcurrent int) error {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	errs := make(chan error, len(kinds))

	for _, kind := range kinds {
		kind := kind
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if _, err := m.GetAll(ctx, kind); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	var first error
	for err := range errs {
		if first == nil {
			first = err
		}
	}
	return first
}

// StatsFor returns the load statistics for a kind, zero-valued if it has
// not been loaded yet.
func (m *Manager) StatsFor(kind Kind) Stats {
	e := m.entryFor(kind)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// RegisteredKinds lists every kind a Loader has been registered for, for
// statistics.json assembly.
func (m *Manager) RegisteredKinds() []Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Kind, 0, len(m.loaders))
	for k := range m.loaders {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type errNoLoaderErr struct{ kind Kind }

func (e errNoLoaderErr) Error() string { return "no loader registered for cache kind " + string(e.kind) }

func errNoLoader(kind Kind) error { return errNoLoaderErr{kind: kind} }
