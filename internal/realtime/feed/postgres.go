package feed

import (
	"context"
	"time"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
	"github.com/projetsjsl/GOB-sub006/pkg/database"
	"github.com/projetsjsl/GOB-sub006/pkg/logger"
)

// PostgresFeed listens on a NOTIFY channel whose payloads are JSON change events.
//
// The roster table is expected to carry a trigger such as:
//
//	PERFORM pg_notify('tickers_changes', json_build_object(
//	    'eventType', TG_OP, 'table', TG_TABLE_NAME,
//	    'new', row_to_json(NEW), 'old', row_to_json(OLD))::text);
type PostgresFeed struct {
	db      *database.DB
	channel string
	logger  *logger.Logger

	minDelay time.Duration
	maxDelay time.Duration
}

// NewPostgresFeed creates a LISTEN based feed
func NewPostgresFeed(db *database.DB, channel string, log *logger.Logger) *PostgresFeed {
	return &PostgresFeed{
		db:       db,
		channel:  channel,
		logger:   log.WithModule("feed.postgres").WithField("channel", channel),
		minDelay: reconnectDelay,
		maxDelay: maxReconnectDelay,
	}
}

// WithBackoff overrides the reconnect delays
func (f *PostgresFeed) WithBackoff(min, max time.Duration) *PostgresFeed {
	f.minDelay, f.maxDelay = min, max
	return f
}

// Subscribe blocks delivering events for table until ctx is cancelled.
// Lost connections are re-established with exponential backoff.
func (f *PostgresFeed) Subscribe(ctx context.Context, table string, onChange func(contracts.ChangeEvent)) error {
	delay := f.minDelay
	for {
		err := f.listen(ctx, table, onChange, func() { delay = f.minDelay })
		if ctx.Err() != nil {
			return nil
		}

		f.logger.WithError(err).WithField("delay", delay).Warn("Listen connection lost, reconnecting")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = backoff(delay, f.maxDelay)
	}
}

func (f *PostgresFeed) listen(ctx context.Context, table string, onChange func(contracts.ChangeEvent), connected func()) error {
	conn, err := f.db.Listen(ctx, f.channel)
	if err != nil {
		return err
	}
	defer func() {
		if !conn.Conn().IsClosed() {
			uctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_, _ = conn.Exec(uctx, "UNLISTEN *")
			cancel()
		}
		conn.Release()
	}()

	connected()
	f.logger.Info("Listening for roster changes")

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}

		ev, ok, err := DecodeEvent([]byte(n.Payload))
		if err != nil {
			f.logger.WithError(err).Warn("Dropping malformed notification")
			continue
		}
		if !ok || !matchesTable(ev, table) {
			continue
		}
		onChange(ev)
	}
}
