package feed

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
	"github.com/projetsjsl/GOB-sub006/pkg/logger"
)

const (
	// Reconnect settings
	reconnectDelay    = 1 * time.Second
	maxReconnectDelay = 2 * time.Minute

	// Ping/Pong settings
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

// subscribeMessage is sent once per connection
type subscribeMessage struct {
	Type  string `json:"type"`
	Table string `json:"table"`
}

// WebSocketFeed reads JSON change events from a websocket endpoint
type WebSocketFeed struct {
	url    string
	header http.Header
	logger *logger.Logger
	dialer *websocket.Dialer

	minDelay time.Duration
	maxDelay time.Duration
	pingEach time.Duration
}

// NewWebSocketFeed creates a feed for url
func NewWebSocketFeed(url string, header http.Header, log *logger.Logger) *WebSocketFeed {
	return &WebSocketFeed{
		url:      url,
		header:   header,
		logger:   log.WithModule("feed.websocket"),
		dialer:   websocket.DefaultDialer,
		minDelay: reconnectDelay,
		maxDelay: maxReconnectDelay,
		pingEach: pingInterval,
	}
}

// WithBackoff overrides the reconnect delays
func (f *WebSocketFeed) WithBackoff(min, max time.Duration) *WebSocketFeed {
	f.minDelay, f.maxDelay = min, max
	return f
}

// Subscribe blocks delivering events for table until ctx is cancelled.
// Dropped connections are redialled with exponential backoff.
func (f *WebSocketFeed) Subscribe(ctx context.Context, table string, onChange func(contracts.ChangeEvent)) error {
	delay := f.minDelay
	for {
		err := f.session(ctx, table, onChange, func() { delay = f.minDelay })
		if ctx.Err() != nil {
			return nil
		}

		f.logger.WithError(err).WithField("delay", delay).Warn("WebSocket disconnected, attempting to reconnect")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = backoff(delay, f.maxDelay)
	}
}

// session runs one connection until it fails
func (f *WebSocketFeed) session(ctx context.Context, table string, onChange func(contracts.ChangeEvent), connected func()) error {
	conn, _, err := f.dialer.DialContext(ctx, f.url, f.header)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	var closeOnce sync.Once
	closeConn := func() { closeOnce.Do(func() { conn.Close() }) }
	defer closeConn()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(subscribeMessage{Type: "subscribe", Table: table}); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}

	connected()
	f.logger.WithField("table", table).Info("Connected to change feed")

	done := make(chan struct{})
	defer close(done)
	go f.pingLoop(ctx, conn, done, closeConn)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read failed: %w", err)
		}

		ev, ok, err := DecodeEvent(message)
		if err != nil {
			f.logger.WithError(err).Warn("Dropping malformed frame")
			continue
		}
		if !ok || !matchesTable(ev, table) {
			continue
		}
		onChange(ev)
	}
}

// pingLoop keeps the connection alive and closes it when ctx ends
func (f *WebSocketFeed) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}, closeConn func()) {
	ticker := time.NewTicker(f.pingEach)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			closeConn()
			return
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				f.logger.WithError(err).Debug("Failed to send ping")
			}
		}
	}
}
