package profilecache

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
)

var errEmptyPayload = errors.New("empty cache payload")

type envelope struct {
	Data      contracts.Library `json:"data"`
	Timestamp int64             `json:"timestamp"`
}

// Encode serializes the library in the current timestamped format
func Encode(lib contracts.Library, now time.Time) ([]byte, error) {
	if lib == nil {
		lib = contracts.Library{}
	}
	return json.Marshal(envelope{Data: lib, Timestamp: now.UnixMilli()})
}

// Decode accepts the current format and the legacy ones:
//
//	{"data": {...}, "timestamp": 1700000000000}
//	{"AAPL": {...}, "MSFT": {...}}          un-timestamped map
//	"{\"AAPL\": ...}"                       string-encoded payload
//
// Legacy payloads come back with Legacy set and a zero Timestamp.
func Decode(raw []byte) (*contracts.CacheEntry, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errEmptyPayload
	}

	legacy := false
	if raw[0] == '"' {
		inner, err := unquote(raw)
		if err != nil {
			return nil, err
		}
		raw = inner
		legacy = true
	}
	if len(raw) == 0 || raw[0] != '{' {
		return nil, fmt.Errorf("unexpected cache payload starting with %q", truncate(raw, 16))
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode cache payload: %w", err)
	}

	data, hasData := probe["data"]
	ts, hasTS := probe["timestamp"]
	if !hasData || !hasTS {
		lib, err := decodeLibrary(raw)
		if err != nil {
			return nil, err
		}
		return &contracts.CacheEntry{Data: lib, Legacy: true}, nil
	}

	var millis int64
	if err := json.Unmarshal(ts, &millis); err != nil {
		return nil, fmt.Errorf("failed to decode cache timestamp: %w", err)
	}
	lib, err := decodeLibrary(data)
	if err != nil {
		return nil, err
	}

	entry := &contracts.CacheEntry{Data: lib, Legacy: legacy}
	if !legacy {
		entry.Timestamp = time.UnixMilli(millis)
	}
	return entry, nil
}

func decodeLibrary(raw []byte) (contracts.Library, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		inner, err := unquote(raw)
		if err != nil {
			return nil, err
		}
		raw = inner
	}

	var decoded map[string]contracts.AnalysisProfile
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode cached library: %w", err)
	}

	lib := make(contracts.Library, len(decoded))
	for key, p := range decoded {
		symbol := contracts.NormalizeSymbol(key)
		if symbol == "" {
			continue
		}
		p.ID = symbol
		if p.Data == nil {
			p.Data = []contracts.AnnualRecord{}
		}
		lib[symbol] = p
	}
	return lib, nil
}

func unquote(raw []byte) ([]byte, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode string payload: %w", err)
	}
	return bytes.TrimSpace([]byte(s)), nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
