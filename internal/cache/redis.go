package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/R3E-Network/sfmc-inv2/internal/model"
	"github.com/R3E-Network/sfmc-inv2/pkg/logger"
)

// Store is an optional warm-start backing for the Manager: populated cache
// tables are offered to it after a successful load, and consulted before
// the loader runs on the next process. The in-memory path stays default and
// authoritative — a Store that misses or errors just means the loader runs
// as usual, and nothing downstream can tell the difference.
type Store interface {
	Load(ctx context.Context, kind Kind) (map[string]interface{}, bool)
	Save(ctx context.Context, kind Kind, entries map[string]interface{})
}

// SetStore attaches a warm-start Store. Call before the first Get/GetAll.
func (m *Manager) SetStore(store Store) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = store
}

// storedEntry is the serialization envelope RedisStore uses: cache values
// are either folder records or definition summaries, and the envelope
// records which, so Load can rebuild the concrete type.
type storedEntry struct {
	Folder  *model.Folder  `json:"folder,omitempty"`
	Summary *model.Summary `json:"summary,omitempty"`
}

// RedisStore persists cache tables as one Redis hash per kind, with a TTL
// so stale reference data ages out on its own. Folder names and definition
// summaries are pure display lookups, so a stale entry is cosmetic; orphan
// computation never reads them.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	log    *logger.Logger
}

// DefaultStoreTTL bounds how long a persisted table is trusted before the
// loader must refetch it.
const DefaultStoreTTL = 24 * time.Hour

// NewRedisStore connects a RedisStore over client. ttl <= 0 uses
// DefaultStoreTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultStoreTTL
	}
	if log == nil {
		log = logger.NewDefault("cache-store")
	}
	return &RedisStore{client: client, ttl: ttl, prefix: "sfmc:cache:", log: log}
}

func (s *RedisStore) key(kind Kind) string {
	return s.prefix + string(kind)
}

// Load fetches the persisted table for kind, returning ok=false on a miss,
// a connection error, or any undecodable entry (a partially-trusted table
// is worse than a fresh load).
func (s *RedisStore) Load(ctx context.Context, kind Kind) (map[string]interface{}, bool) {
	raw, err := s.client.HGetAll(ctx, s.key(kind)).Result()
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	entries := make(map[string]interface{}, len(raw))
	for id, blob := range raw {
		var env storedEntry
		if err := json.Unmarshal([]byte(blob), &env); err != nil {
			s.log.WithField("kind", string(kind)).WithField("id", id).Warn("discarding undecodable cache entry")
			return nil, false
		}
		switch {
		case env.Folder != nil:
			entries[id] = *env.Folder
		case env.Summary != nil:
			entries[id] = *env.Summary
		default:
			return nil, false
		}
	}
	return entries, true
}

// Save persists entries for kind, best-effort: encoding or connection
// failures are logged and swallowed, never surfaced to the caller.
func (s *RedisStore) Save(ctx context.Context, kind Kind, entries map[string]interface{}) {
	if len(entries) == 0 {
		return
	}
	fields := make(map[string]interface{}, len(entries))
	for id, v := range entries {
		var env storedEntry
		switch val := v.(type) {
		case model.Folder:
			env.Folder = &val
		case model.Summary:
			env.Summary = &val
		default:
			continue
		}
		blob, err := json.Marshal(env)
		if err != nil {
			continue
		}
		fields[id] = string(blob)
	}
	if len(fields) == 0 {
		return
	}
	key := s.key(kind)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.WithField("kind", string(kind)).WithField("error", err.Error()).Warn("cache persist failed")
	}
}
