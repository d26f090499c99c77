package contracts

// EventType is the kind of row change pushed by the remote store
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// ChangeEvent is one push notification from the remote change feed
type ChangeEvent struct {
	EventType EventType  `json:"eventType"`
	Table     string     `json:"table,omitempty"`
	New       *TickerRow `json:"new,omitempty"`
	Old       *TickerRow `json:"old,omitempty"`
}

// Symbol returns the affected ticker, preferring the new row
func (e ChangeEvent) Symbol() string {
	if e.New != nil && e.New.Ticker != "" {
		return NormalizeSymbol(e.New.Ticker)
	}
	if e.Old != nil {
		return NormalizeSymbol(e.Old.Ticker)
	}
	return ""
}
