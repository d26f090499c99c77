package contracts

import (
	"context"
	"time"
)

// Fetcher retrieves one symbol from the financial-data provider
type Fetcher interface {
	Fetch(ctx context.Context, symbol string) (*FetchResult, error)
}

// RosterLoader returns the full active roster
type RosterLoader interface {
	LoadRoster(ctx context.Context) ([]RosterEntry, error)
}

// ChangeFeed delivers row changes of table until ctx is cancelled
type ChangeFeed interface {
	Subscribe(ctx context.Context, table string, onChange func(ChangeEvent)) error
}

// CacheEntry is the persisted projection of the library
type CacheEntry struct {
	Data      Library
	Timestamp time.Time
	Legacy    bool
}

// ProfileCache persists the library between sessions
type ProfileCache interface {
	// Fresh returns the stored entry, if any, and whether it is younger
	// than the TTL. A stale entry is only usable as an offline fallback.
	Fresh(ctx context.Context) (*CacheEntry, bool)
	Write(lib Library)
	Invalidate(ctx context.Context)
}

// Notifier receives progress and terminal messages for display
type Notifier interface {
	Progress(p SyncProgress)
	Notify(n Notification)
}

// NopNotifier discards everything
type NopNotifier struct{}

func (NopNotifier) Progress(SyncProgress) {}
func (NopNotifier) Notify(Notification)   {}
