package profilecache

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/projetsjsl/GOB-sub006/pkg/config"
	"github.com/projetsjsl/GOB-sub006/pkg/logger"
	"github.com/projetsjsl/GOB-sub006/pkg/redis"
)

// Backend stores one opaque payload under a fixed key
type Backend interface {
	Name() string
	Load(ctx context.Context) ([]byte, bool, error)
	Store(ctx context.Context, payload []byte) error
	Delete(ctx context.Context) error
	Close() error
}

// NewBackend selects the backend named by cfg.Cache.Backend.
// An unavailable redis degrades to memory.
func NewBackend(cfg *config.Config, client *redis.Client, log *logger.Logger) (Backend, error) {
	switch cfg.Cache.Backend {
	case "redis":
		if client == nil || !client.Enabled() {
			log.Warn("Redis disabled, profile cache falls back to memory")
			return NewMemoryBackend(), nil
		}
		return NewRedisBackend(redis.NewCache(client, "finsync"), cfg.Cache.Key), nil
	case "sqlite":
		return NewSQLiteBackend(cfg.Cache.SQLitePath, cfg.Cache.Key)
	case "memory":
		return NewMemoryBackend(), nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
}

// MemoryBackend keeps the payload in process
type MemoryBackend struct {
	mu      sync.RWMutex
	payload []byte
}

// NewMemoryBackend creates an empty in-process backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Load(_ context.Context) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.payload == nil {
		return nil, false, nil
	}
	out := make([]byte, len(m.payload))
	copy(out, m.payload)
	return out, true, nil
}

func (m *MemoryBackend) Store(_ context.Context, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payload = append([]byte(nil), payload...)
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payload = nil
	return nil
}

func (m *MemoryBackend) Close() error { return nil }

// RedisBackend stores the payload under one redis key without expiry.
// Staleness is decided from the embedded timestamp, not the key TTL.
type RedisBackend struct {
	cache *redis.Cache
	key   string
}

// NewRedisBackend wraps a redis cache helper
func NewRedisBackend(cache *redis.Cache, key string) *RedisBackend {
	return &RedisBackend{cache: cache, key: key}
}

func (r *RedisBackend) Name() string { return "redis" }

func (r *RedisBackend) Load(ctx context.Context) ([]byte, bool, error) {
	return r.cache.GetBytes(ctx, r.key)
}

func (r *RedisBackend) Store(ctx context.Context, payload []byte) error {
	return r.cache.SetBytes(ctx, r.key, payload, 0)
}

func (r *RedisBackend) Delete(ctx context.Context) error {
	return r.cache.Delete(ctx, r.key)
}

// Close is a no-op, the redis client is owned by the caller
func (r *RedisBackend) Close() error { return nil }

// SQLiteBackend keeps the payload in a local SQLite file
type SQLiteBackend struct {
	db  *sql.DB
	key string
}

// NewSQLiteBackend opens (or creates) the cache database at path
func NewSQLiteBackend(path, key string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS profile_cache (
		key TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	return &SQLiteBackend{db: db, key: key}, nil
}

func (s *SQLiteBackend) Name() string { return "sqlite" }

func (s *SQLiteBackend) Load(ctx context.Context) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM profile_cache WHERE key = ?`, s.key).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache select failed: %w", err)
	}
	return payload, true, nil
}

func (s *SQLiteBackend) Store(ctx context.Context, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profile_cache (key, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		s.key, payload, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("cache upsert failed: %w", err)
	}
	return nil
}

func (s *SQLiteBackend) Delete(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM profile_cache WHERE key = ?`, s.key); err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}

func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}
