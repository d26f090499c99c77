// Package profilecache persists the profile library between sessions.
package profilecache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
	"github.com/projetsjsl/GOB-sub006/internal/metrics"
	"github.com/projetsjsl/GOB-sub006/pkg/logger"
)

const writeTimeout = 10 * time.Second

// Cache is the persistent projection of the library.
// Writes are asynchronous and coalesced: only the latest pending
// library reaches the backend. Failures are logged, never returned.
type Cache struct {
	backend Backend
	ttl     time.Duration
	now     func() time.Time
	logger  *logger.Logger

	pending atomic.Pointer[contracts.Library]
	writeMu sync.Mutex

	signal    chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// New creates a cache over backend and starts its writer
func New(backend Backend, ttl time.Duration, log *logger.Logger) *Cache {
	c := &Cache{
		backend: backend,
		ttl:     ttl,
		now:     time.Now,
		logger:  log.WithModule("profilecache").WithField("backend", backend.Name()),
		signal:  make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

// WithClock overrides the time source
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// TTL returns the freshness window
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Read returns the stored entry, nil when nothing is stored
func (c *Cache) Read(ctx context.Context) (*contracts.CacheEntry, error) {
	raw, ok, err := c.backend.Load(ctx)
	if err != nil {
		metrics.RecordCache("read", "error")
		return nil, fmt.Errorf("%w: %v", contracts.ErrStorageFailure, err)
	}
	if !ok {
		metrics.RecordCache("read", "miss")
		return nil, nil
	}

	entry, err := Decode(raw)
	if err != nil {
		metrics.RecordCache("read", "error")
		return nil, fmt.Errorf("%w: %v", contracts.ErrStorageFailure, err)
	}
	return entry, nil
}

// Stale reports whether entry must not be trusted.
// Legacy entries carry no timestamp and are always stale.
func (c *Cache) Stale(entry *contracts.CacheEntry) bool {
	if entry == nil || entry.Legacy || entry.Timestamp.IsZero() {
		return true
	}
	return c.now().Sub(entry.Timestamp) > c.ttl
}

// Fresh returns the stored entry, if any, and whether it is within the TTL.
// Read failures are logged and reported as no entry.
func (c *Cache) Fresh(ctx context.Context) (*contracts.CacheEntry, bool) {
	entry, err := c.Read(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("Cache read failed, continuing without cache")
		return nil, false
	}
	if entry == nil {
		return nil, false
	}

	if c.Stale(entry) {
		metrics.RecordCache("read", "stale")
		c.logger.WithFields(map[string]interface{}{
			"legacy":   entry.Legacy,
			"profiles": len(entry.Data),
		}).Debug("Cache entry is stale")
		return entry, false
	}

	metrics.RecordCache("read", "hit")
	return entry, true
}

// Write queues lib for persistence and returns immediately
func (c *Cache) Write(lib contracts.Library) {
	snapshot := lib.Clone()
	c.pending.Store(&snapshot)

	select {
	case c.signal <- struct{}{}:
	default:
	}
}

// Flush persists the pending library, if any, before returning
func (c *Cache) Flush(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	lib := c.pending.Swap(nil)
	if lib == nil {
		return nil
	}

	payload, err := Encode(*lib, c.now())
	if err != nil {
		metrics.RecordCache("write", "error")
		return fmt.Errorf("%w: %v", contracts.ErrStorageFailure, err)
	}
	if err := c.backend.Store(ctx, payload); err != nil {
		metrics.RecordCache("write", "error")
		return fmt.Errorf("%w: %v", contracts.ErrStorageFailure, err)
	}

	metrics.RecordCache("write", "ok")
	c.logger.WithFields(map[string]interface{}{
		"profiles": len(*lib),
		"bytes":    len(payload),
	}).Debug("Library persisted")
	return nil
}

// Invalidate drops any pending write and deletes the stored entry
func (c *Cache) Invalidate(ctx context.Context) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.pending.Store(nil)
	if err := c.backend.Delete(ctx); err != nil {
		metrics.RecordCache("invalidate", "error")
		c.logger.WithError(err).Warn("Cache invalidate failed")
		return
	}
	metrics.RecordCache("invalidate", "ok")
	c.logger.Debug("Cache invalidated")
}

// Close stops the writer, flushes the last pending write and closes the backend
func (c *Cache) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stopCh)
		<-c.doneCh

		if ferr := c.Flush(ctx); ferr != nil {
			c.logger.WithError(ferr).Warn("Final cache flush failed")
		}
		err = c.backend.Close()
	})
	return err
}

func (c *Cache) writeLoop() {
	defer close(c.doneCh)

	for {
		select {
		case <-c.stopCh:
			return
		case <-c.signal:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			if err := c.Flush(ctx); err != nil {
				c.logger.WithError(err).Warn("Cache write failed")
			}
			cancel()
		}
	}
}
