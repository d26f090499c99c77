package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
)

// DecodeEvent parses one change notification.
// ok is false for well-formed frames that carry no row change (acks, heartbeats).
func DecodeEvent(payload []byte) (ev contracts.ChangeEvent, ok bool, err error) {
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ev, false, fmt.Errorf("decode change event: %w", err)
	}

	ev.EventType = contracts.EventType(strings.ToUpper(string(ev.EventType)))
	switch ev.EventType {
	case contracts.EventInsert, contracts.EventUpdate, contracts.EventDelete:
	default:
		return ev, false, nil
	}
	if ev.Symbol() == "" {
		return ev, false, fmt.Errorf("decode change event: %s without ticker", ev.EventType)
	}
	return ev, true, nil
}

// matchesTable reports whether ev belongs to table. Events without a table pass.
func matchesTable(ev contracts.ChangeEvent, table string) bool {
	return ev.Table == "" || table == "" || strings.EqualFold(ev.Table, table)
}

// backoff doubles delay up to max
func backoff(delay, max time.Duration) time.Duration {
	delay *= 2
	if delay > max {
		delay = max
	}
	return delay
}
