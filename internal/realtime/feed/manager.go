// Package feed provides the remote change feeds.
package feed

import (
	"errors"
	"fmt"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
	"github.com/projetsjsl/GOB-sub006/pkg/config"
	"github.com/projetsjsl/GOB-sub006/pkg/database"
	"github.com/projetsjsl/GOB-sub006/pkg/logger"
)

// Feed modes
const (
	ModePostgres  = "postgres"
	ModeWebSocket = "websocket"
	ModeOff       = "off"
)

// ErrDisabled is returned by New when realtime updates are turned off
var ErrDisabled = errors.New("realtime feed disabled")

// New builds the change feed selected by cfg.Mode
// SSOT: change feed selection happens here only
func New(cfg config.RealtimeConfig, db *database.DB, log *logger.Logger) (contracts.ChangeFeed, error) {
	switch cfg.Mode {
	case ModePostgres:
		if db == nil {
			return nil, fmt.Errorf("%w: postgres feed needs a database", contracts.ErrConfigMissing)
		}
		return NewPostgresFeed(db, cfg.Channel, log), nil
	case ModeWebSocket:
		if cfg.URL == "" {
			return nil, fmt.Errorf("%w: REALTIME_URL", contracts.ErrConfigMissing)
		}
		return NewWebSocketFeed(cfg.URL, nil, log), nil
	case ModeOff, "":
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("unknown realtime mode %q", cfg.Mode)
	}
}
