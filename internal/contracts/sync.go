package contracts

import "time"

// FetchResult is one provider answer for one symbol
type FetchResult struct {
	Symbol       string         `json:"symbol"`
	Data         []AnnualRecord `json:"data"`
	Info         CompanyInfo    `json:"info"`
	CurrentPrice float64        `json:"currentPrice"`
}

// JobState is the bulk sync lifecycle state
type JobState string

const (
	JobIdle      JobState = "idle"
	JobRunning   JobState = "running"
	JobPaused    JobState = "paused"
	JobCompleted JobState = "completed"
	JobAborted   JobState = "aborted"
)

// Terminal reports whether no further transitions are possible
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobAborted
}

// SyncError is one recorded per-symbol failure
type SyncError struct {
	Symbol  string `json:"symbol"`
	Message string `json:"message"`
}

// SyncProgress is a consistent snapshot of a job's counters.
// SuccessCount+ErrorCount <= Current <= Total always holds.
type SyncProgress struct {
	JobID        string      `json:"jobId"`
	State        JobState    `json:"state"`
	Total        int         `json:"total"`
	Current      int         `json:"current"`
	SuccessCount int         `json:"successCount"`
	ErrorCount   int         `json:"errorCount"`
	Aborted      bool        `json:"aborted"`
	Paused       bool        `json:"paused"`
	Errors       []SyncError `json:"errors"`
	Fatal        string      `json:"fatal,omitempty"`
	StartedAt    time.Time   `json:"startedAt"`
	FinishedAt   time.Time   `json:"finishedAt,omitempty"`
}

// Clone copies the progress, errors included
func (p SyncProgress) Clone() SyncProgress {
	out := p
	out.Errors = make([]SyncError, len(p.Errors))
	copy(out.Errors, p.Errors)
	return out
}

// Running reports whether the job still holds the orchestrator
func (p SyncProgress) Running() bool {
	return p.State == JobRunning || p.State == JobPaused
}

// NotificationLevel classifies terminal messages for the UI
type NotificationLevel string

const (
	LevelSuccess NotificationLevel = "success"
	LevelWarning NotificationLevel = "warning"
	LevelError   NotificationLevel = "error"
)

// Notification is a user-facing message emitted by the engine
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Details []string          `json:"details,omitempty"`
}
