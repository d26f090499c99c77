package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projetsjsl/GOB-sub006/internal/api/handlers"
	"github.com/projetsjsl/GOB-sub006/internal/contracts"
	"github.com/projetsjsl/GOB-sub006/internal/library"
	"github.com/projetsjsl/GOB-sub006/internal/roster"
	"github.com/projetsjsl/GOB-sub006/pkg/logger"
)

type fakeEngine struct {
	lib        contracts.Library
	active     string
	refreshErr error
	startErr   error
	controlErr error
	progress   contracts.SyncProgress

	lastSymbols  []string
	lastBatch    int
	targeted     bool
	paused       int
	reloadCalled bool
}

func (f *fakeEngine) Library() contracts.Library { return f.lib.Clone() }

func (f *fakeEngine) Profile(symbol string) (contracts.AnalysisProfile, bool) {
	p, ok := f.lib[symbol]
	return p, ok
}

func (f *fakeEngine) Stats() library.Stats { return library.Stats{Profiles: len(f.lib)} }

func (f *fakeEngine) SelectTicker(symbol string) (contracts.AnalysisProfile, error) {
	p, ok := f.lib[symbol]
	if !ok {
		return contracts.AnalysisProfile{}, contracts.ErrUnknownSymbol
	}
	f.active = symbol
	return p, nil
}

func (f *fakeEngine) ActiveTicker() string { return f.active }

func (f *fakeEngine) RefreshOne(_ context.Context, symbol string) (contracts.AnalysisProfile, error) {
	if f.refreshErr != nil {
		return contracts.AnalysisProfile{}, contracts.NewSymbolError(symbol, f.refreshErr)
	}
	return f.lib[symbol], nil
}

func (f *fakeEngine) StartBulkSync(symbols []string, batchSize int) (string, error) {
	f.lastSymbols, f.lastBatch = symbols, batchSize
	return "job-1", f.startErr
}

func (f *fakeEngine) StartTargetedSync(symbols []string) (string, error) {
	f.lastSymbols, f.targeted = symbols, true
	return "job-2", f.startErr
}

func (f *fakeEngine) Pause() error {
	f.paused++
	return f.controlErr
}

func (f *fakeEngine) Resume() error { return f.controlErr }
func (f *fakeEngine) Abort() error  { return f.controlErr }

func (f *fakeEngine) Progress() contracts.SyncProgress { return f.progress }

func (f *fakeEngine) ReloadRoster(context.Context) (roster.Result, error) {
	f.reloadCalled = true
	return roster.Result{Entries: 2, Created: []string{"CVX"}}, nil
}

func newTestRouter(t *testing.T) (http.Handler, *fakeEngine) {
	t.Helper()
	eng := &fakeEngine{lib: contracts.Library{
		"AAPL": {ID: "AAPL", Info: contracts.CompanyInfo{Symbol: "AAPL", Name: "Apple"}, IsWatchlist: contracts.Bool(false)},
		"CVX":  contracts.NewSkeleton(contracts.RosterEntry{Ticker: "CVX", Source: contracts.SourceWatchlist}, time.Now()),
		"XYZ":  {ID: "XYZ", Info: contracts.CompanyInfo{Symbol: "XYZ", Name: "Manual"}},
	}}
	log := logger.Nop()
	r := NewRouter(handlers.NewProfileHandler(eng, log), handlers.NewSyncHandler(eng, log), log, true)
	return r, eng
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := do(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := do(t, r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListProfiles(t *testing.T) {
	r, _ := newTestRouter(t)

	tests := []struct {
		query string
		want  []string
		code  int
	}{
		{"", []string{"AAPL", "CVX", "XYZ"}, http.StatusOK},
		{"?kind=portfolio", []string{"AAPL"}, http.StatusOK},
		{"?kind=watchlist", []string{"CVX"}, http.StatusOK},
		{"?kind=manual", []string{"XYZ"}, http.StatusOK},
		{"?kind=skeleton", []string{"CVX"}, http.StatusOK},
		{"?kind=bogus", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := do(t, r, http.MethodGet, "/api/profiles"+tt.query, "")
			require.Equal(t, tt.code, rec.Code)
			if tt.code != http.StatusOK {
				return
			}

			var body struct {
				Profiles []handlers.ProfileSummary `json:"profiles"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			got := make([]string, 0, len(body.Profiles))
			for _, p := range body.Profiles {
				got = append(got, p.Symbol)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetProfile(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := do(t, r, http.MethodGet, "/api/profiles/aapl", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var p contracts.AnalysisProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "Apple", p.Info.Name)

	rec = do(t, r, http.MethodGet, "/api/profiles/NOPE", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSelectProfile(t *testing.T) {
	r, eng := newTestRouter(t)

	rec := do(t, r, http.MethodPost, "/api/profiles/CVX/select", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CVX", eng.active)

	rec = do(t, r, http.MethodPost, "/api/profiles/NOPE/select", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "CVX", eng.active)
}

func TestRefreshProfile(t *testing.T) {
	r, eng := newTestRouter(t)

	rec := do(t, r, http.MethodPost, "/api/profiles/AAPL/refresh", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	eng.refreshErr = contracts.ErrConfigMissing
	rec = do(t, r, http.MethodPost, "/api/profiles/AAPL/refresh", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "FMP_API_KEY")

	eng.refreshErr = contracts.ErrNotFound
	rec = do(t, r, http.MethodPost, "/api/profiles/AAPL/refresh", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartSync(t *testing.T) {
	r, eng := newTestRouter(t)

	rec := do(t, r, http.MethodPost, "/api/sync", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"jobId":"job-1"`)
	assert.Empty(t, eng.lastSymbols)

	rec = do(t, r, http.MethodPost, "/api/sync", `{"symbols":["AAPL","CVX"],"batchSize":5}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"AAPL", "CVX"}, eng.lastSymbols)
	assert.Equal(t, 5, eng.lastBatch)
	assert.False(t, eng.targeted)

	rec = do(t, r, http.MethodPost, "/api/sync", `{"symbols":["XYZ"],"targeted":true}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, eng.targeted)

	rec = do(t, r, http.MethodPost, "/api/sync", `{"targeted":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/sync", `{"batchSize":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/sync", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	eng.startErr = contracts.ErrJobRunning
	rec = do(t, r, http.MethodPost, "/api/sync", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSyncControl(t *testing.T) {
	r, eng := newTestRouter(t)
	eng.progress = contracts.SyncProgress{JobID: "job-1", State: contracts.JobPaused, Paused: true, Total: 4}

	rec := do(t, r, http.MethodPost, "/api/sync/pause", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, eng.paused)
	assert.Contains(t, rec.Body.String(), `"state":"paused"`)

	rec = do(t, r, http.MethodPost, "/api/sync/resume", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/sync/explode", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	eng.controlErr = contracts.ErrNoJob
	rec = do(t, r, http.MethodPost, "/api/sync/abort", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, r, http.MethodGet, "/api/sync/progress", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var p contracts.SyncProgress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, 4, p.Total)
}

func TestReloadRoster(t *testing.T) {
	r, eng := newTestRouter(t)

	rec := do(t, r, http.MethodPost, "/api/roster/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, eng.reloadCalled)

	var res roster.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, []string{"CVX"}, res.Created)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
