// Package handlers implements the UI bridge endpoints.
package handlers

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondFailure maps a domain error to its status and user message
func respondFailure(w http.ResponseWriter, symbol string, err error) {
	respondError(w, statusFor(err), contracts.UserMessage(symbol, err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, contracts.ErrUnknownSymbol), errors.Is(err, contracts.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, contracts.ErrJobRunning), errors.Is(err, contracts.ErrNoJob):
		return http.StatusConflict
	case errors.Is(err, contracts.ErrInvalidData), errors.Is(err, contracts.ErrEmptyData), errors.Is(err, contracts.ErrFundNotEquity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, contracts.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, contracts.ErrConfigMissing):
		return http.StatusServiceUnavailable
	case errors.Is(err, contracts.ErrRosterLoad):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
