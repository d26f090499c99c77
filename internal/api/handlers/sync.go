package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
	"github.com/projetsjsl/GOB-sub006/internal/roster"
	"github.com/projetsjsl/GOB-sub006/pkg/logger"
)

// SyncEngine is the part of the engine the sync endpoints use
type SyncEngine interface {
	StartBulkSync(symbols []string, batchSize int) (string, error)
	StartTargetedSync(symbols []string) (string, error)
	Pause() error
	Resume() error
	Abort() error
	Progress() contracts.SyncProgress
	ReloadRoster(ctx context.Context) (roster.Result, error)
}

// SyncHandler controls bulk sync jobs and roster reloads
// SSOT: sync control endpoints are implemented in this handler only
type SyncHandler struct {
	engine SyncEngine
	logger *logger.Logger
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(engine SyncEngine, log *logger.Logger) *SyncHandler {
	return &SyncHandler{
		engine: engine,
		logger: log,
	}
}

// SyncRequest starts a job. An empty symbol list means the whole portfolio.
type SyncRequest struct {
	Symbols   []string `json:"symbols"`
	BatchSize int      `json:"batchSize"`
	Targeted  bool     `json:"targeted"`
}

// StartSync starts a bulk sync job
// POST /api/sync
func (h *SyncHandler) StartSync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.BatchSize < 0 {
		respondError(w, http.StatusBadRequest, "batchSize must not be negative")
		return
	}

	var id string
	var err error
	if req.Targeted {
		if len(req.Symbols) == 0 {
			respondError(w, http.StatusBadRequest, "targeted sync needs symbols")
			return
		}
		id, err = h.engine.StartTargetedSync(req.Symbols)
	} else {
		id, err = h.engine.StartBulkSync(req.Symbols, req.BatchSize)
	}
	if err != nil {
		respondFailure(w, "", err)
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"job_id":   id,
		"symbols":  len(req.Symbols),
		"targeted": req.Targeted,
	}).Info("Sync started via API")

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"jobId":    id,
		"progress": h.engine.Progress(),
	})
}

// Control pauses, resumes or aborts the running job
// POST /api/sync/{action}
func (h *SyncHandler) Control(w http.ResponseWriter, r *http.Request) {
	var err error
	switch action := mux.Vars(r)["action"]; action {
	case "pause":
		err = h.engine.Pause()
	case "resume":
		err = h.engine.Resume()
	case "abort":
		err = h.engine.Abort()
	default:
		respondError(w, http.StatusNotFound, "unknown sync action "+action)
		return
	}
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, h.engine.Progress())
}

// GetProgress returns the running or last job's counters
// GET /api/sync/progress
func (h *SyncHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.Progress())
}

// ReloadRoster forces a roster reload
// POST /api/roster/reload
func (h *SyncHandler) ReloadRoster(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.ReloadRoster(r.Context())
	if err != nil {
		h.logger.WithError(err).Warn("Roster reload request failed")
		respondFailure(w, "", err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
