package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/projetsjsl/GOB-sub006/internal/api/handlers"
	"github.com/projetsjsl/GOB-sub006/pkg/logger"
)

// NewRouter creates and configures the HTTP router
// SSOT: routes are declared in this function only
func NewRouter(profiles *handlers.ProfileHandler, syncs *handlers.SyncHandler, log *logger.Logger, metricsEnabled bool) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Profile library
	api.HandleFunc("/profiles", profiles.ListProfiles).Methods("GET")
	api.HandleFunc("/profiles/{symbol}", profiles.GetProfile).Methods("GET")
	api.HandleFunc("/profiles/{symbol}/select", profiles.SelectProfile).Methods("POST")
	api.HandleFunc("/profiles/{symbol}/refresh", profiles.RefreshProfile).Methods("POST")

	// Bulk sync
	api.HandleFunc("/sync", syncs.StartSync).Methods("POST")
	api.HandleFunc("/sync/progress", syncs.GetProgress).Methods("GET")
	api.HandleFunc("/sync/{action}", syncs.Control).Methods("POST")

	// Roster
	api.HandleFunc("/roster/reload", syncs.ReloadRoster).Methods("POST")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "finsync-api",
	})
}

// statusRecorder keeps the status code for the access log
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
