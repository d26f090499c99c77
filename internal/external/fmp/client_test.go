package fmp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
	"github.com/projetsjsl/GOB-sub006/pkg/config"
	"github.com/projetsjsl/GOB-sub006/pkg/httputil"
	"github.com/projetsjsl/GOB-sub006/pkg/logger"
)

const (
	xomProfile   = `[{"symbol":"XOM","companyName":"Exxon Mobil Corporation","price":110.25,"beta":0.88,"mktCap":440000000000,"currency":"USD","exchangeShortName":"NYSE","sector":"Energy","industry":"Oil & Gas Integrated","country":"US","image":"https://img/xom.png","isEtf":false,"isFund":false}]`
	xomMetrics   = `[{"date":"2023-12-31","netIncomePerShare":8.89,"operatingCashFlowPerShare":13.72,"bookValuePerShare":50.54},{"date":"2022-12-31","netIncomePerShare":13.26,"operatingCashFlowPerShare":18.55,"bookValuePerShare":47.59},{"date":"2022-06-30","netIncomePerShare":99,"operatingCashFlowPerShare":99,"bookValuePerShare":99},{"date":"2021-12-31","netIncomePerShare":5.39,"operatingCashFlowPerShare":11.13,"bookValuePerShare":40.9}]`
	xomDividends = `{"symbol":"XOM","historical":[{"date":"2023-11-14","dividend":0.95},{"date":"2023-08-15","dividend":0.91},{"date":"2022-11-10","dividend":0.91}]}`
	xomPrices    = `{"symbol":"XOM","historical":[{"date":"2023-12-29","close":99.98},{"date":"2023-09-27","close":119.92},{"date":"2022-06-08","close":104.59},{"date":"2022-01-03","close":63.54}]}`
)

func newTestServer(t *testing.T, routes map[string]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if strings.HasPrefix(body, "status:") {
			switch body {
			case "status:401":
				w.WriteHeader(http.StatusUnauthorized)
			case "status:slow":
				time.Sleep(300 * time.Millisecond)
				_, _ = w.Write([]byte("[]"))
				return
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(baseURL, key string, timeout time.Duration) *Client {
	cfg := &config.Config{Provider: config.ProviderConfig{
		APIKey:   key,
		BaseURL:  baseURL,
		Timeout:  timeout,
		MaxYears: 15,
	}}
	httpClient := httputil.New(cfg, logger.Nop()).DisableRetry()
	return NewClient(httpClient, cfg.Provider, logger.Nop())
}

func xomRoutes() map[string]string {
	return map[string]string{
		"/profile/XOM":                              xomProfile,
		"/key-metrics/XOM":                          xomMetrics,
		"/historical-price-full/stock_dividend/XOM": xomDividends,
		"/historical-price-full/XOM":                xomPrices,
	}
}

func TestFetch_BuildsAnnualRecords(t *testing.T) {
	srv, _ := newTestServer(t, xomRoutes())
	c := newTestClient(srv.URL, "test-key", 5*time.Second)

	res, err := c.Fetch(context.Background(), "xom")
	require.NoError(t, err)

	assert.Equal(t, "XOM", res.Symbol)
	assert.Equal(t, 110.25, res.CurrentPrice)
	require.Len(t, res.Data, 3, "duplicate 2022 metric row collapses")

	assert.Equal(t, 2021, res.Data[0].Year)
	assert.Equal(t, 2023, res.Data[2].Year)

	y2022 := res.Data[1]
	assert.Equal(t, 13.26, y2022.EarningsPerShare, "first row of a year wins")
	assert.Equal(t, 104.59, y2022.PriceHigh)
	assert.Equal(t, 63.54, y2022.PriceLow)
	assert.Equal(t, 0.91, y2022.DividendPerShare)

	y2023 := res.Data[2]
	assert.Equal(t, 1.86, y2023.DividendPerShare)
	assert.Equal(t, 119.92, y2023.PriceHigh)

	y2021 := res.Data[0]
	assert.Equal(t, 0.0, y2021.PriceHigh, "no closes and no revenue leaves price empty")

	for _, r := range res.Data {
		require.NotNil(t, r.AutoFetched)
		assert.True(t, *r.AutoFetched)
	}

	assert.Equal(t, "Exxon Mobil Corporation", res.Info.Name)
	assert.Equal(t, "NYSE", res.Info.Exchange)
	assert.Equal(t, "440.00B", res.Info.MarketCap)
	assert.Equal(t, 0.88, *res.Info.Beta)
}

func TestFetch_MissingKey(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1", "", time.Second)

	_, err := c.Fetch(context.Background(), "XOM")
	assert.ErrorIs(t, err, contracts.ErrConfigMissing)
	assert.Contains(t, contracts.UserMessage("XOM", err), "FMP_API_KEY")
}

func TestFetch_RejectedKey(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{"/profile/XOM": "status:401"})
	c := newTestClient(srv.URL, "test-key", time.Second)

	_, err := c.Fetch(context.Background(), "XOM")
	assert.ErrorIs(t, err, contracts.ErrConfigMissing)
}

func TestFetch_NotFoundTriesVariants(t *testing.T) {
	srv, calls := newTestServer(t, map[string]string{"/profile/ZZZZ": `[]`})
	c := newTestClient(srv.URL, "test-key", time.Second)

	_, err := c.Fetch(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, contracts.ErrNotFound)

	var symErr *contracts.SymbolError
	require.True(t, errors.As(err, &symErr))
	assert.Equal(t, "ZZZZ", symErr.Symbol)
	assert.Equal(t, int32(2), calls.Load(), "ZZZZ then ZZZZ.TO")
}

func TestFetch_ShareClassFallsBackToToronto(t *testing.T) {
	routes := map[string]string{
		"/profile/BBD-B.TO":                              strings.Replace(xomProfile, `"symbol":"XOM"`, `"symbol":"BBD-B.TO"`, 1),
		"/key-metrics/BBD-B.TO":                          xomMetrics,
		"/historical-price-full/stock_dividend/BBD-B.TO": `{"historical":[]}`,
		"/historical-price-full/BBD-B.TO":                `{"historical":[]}`,
	}
	srv, _ := newTestServer(t, routes)
	c := newTestClient(srv.URL, "test-key", time.Second)

	res, err := c.Fetch(context.Background(), "BBD.B")
	require.NoError(t, err)
	assert.Equal(t, "BBD.B", res.Symbol)
	assert.Len(t, res.Data, 3)
}

func TestFetch_FundIsRejected(t *testing.T) {
	routes := xomRoutes()
	routes["/profile/SPY"] = `[{"symbol":"SPY","companyName":"SPDR S&P 500","price":500,"isEtf":true}]`
	srv, _ := newTestServer(t, routes)
	c := newTestClient(srv.URL, "test-key", time.Second)

	_, err := c.Fetch(context.Background(), "SPY")
	assert.ErrorIs(t, err, contracts.ErrFundNotEquity)
	assert.Contains(t, contracts.UserMessage("SPY", err), "fund")
}

func TestFetch_EmptyMetrics(t *testing.T) {
	routes := xomRoutes()
	routes["/key-metrics/XOM"] = `[]`
	srv, _ := newTestServer(t, routes)
	c := newTestClient(srv.URL, "test-key", time.Second)

	_, err := c.Fetch(context.Background(), "XOM")
	assert.ErrorIs(t, err, contracts.ErrEmptyData)
}

func TestFetch_ProviderErrorMessage(t *testing.T) {
	routes := xomRoutes()
	routes["/profile/XOM"] = `{"Error Message":"Invalid API KEY. Please retry or visit our documentation."}`
	srv, _ := newTestServer(t, routes)
	c := newTestClient(srv.URL, "test-key", time.Second)

	_, err := c.Fetch(context.Background(), "XOM")
	assert.ErrorIs(t, err, contracts.ErrConfigMissing)
}

func TestFetch_Timeout(t *testing.T) {
	routes := xomRoutes()
	routes["/profile/XOM"] = "status:slow"
	srv, _ := newTestServer(t, routes)
	c := newTestClient(srv.URL, "test-key", 50*time.Millisecond)

	_, err := c.Fetch(context.Background(), "XOM")
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrTimeout)
}

func TestFetch_MissingPriceHistoryIsTolerated(t *testing.T) {
	routes := xomRoutes()
	delete(routes, "/historical-price-full/XOM")
	delete(routes, "/historical-price-full/stock_dividend/XOM")
	srv, _ := newTestServer(t, routes)
	c := newTestClient(srv.URL, "test-key", time.Second)

	res, err := c.Fetch(context.Background(), "XOM")
	require.NoError(t, err)
	assert.Len(t, res.Data, 3)
	assert.Equal(t, 0.0, res.Data[2].DividendPerShare)
}

func TestCandidates(t *testing.T) {
	assert.Equal(t, []string{"AAPL", "AAPL.TO"}, candidates("AAPL"))
	assert.Equal(t, []string{"RY.TO"}, candidates("RY.TO"))
	assert.Equal(t, []string{"BRK.B", "BRK-B", "BRK-B.TO", "BRK.B.TO", "BRK", "BRK.TO"}, candidates("BRK.B"))
}

func TestBuildRecords_KeepsNewestYears(t *testing.T) {
	var metrics []keyMetricDTO
	for y := 2000; y < 2025; y++ {
		metrics = append(metrics, keyMetricDTO{Date: time.Date(y, 12, 31, 0, 0, 0, 0, time.UTC).Format("2006-01-02"), NetIncomePerShare: 1, RevenuePerShare: 2})
	}

	records := buildRecords(metrics, nil, nil, 15)
	require.Len(t, records, 15)
	assert.Equal(t, 2010, records[0].Year)
	assert.Equal(t, 2024, records[14].Year)
	assert.Equal(t, 40.0, records[0].PriceHigh, "revenue fallback")
	assert.Equal(t, 20.0, records[0].PriceLow)
}

func TestFormatMarketCap(t *testing.T) {
	assert.Equal(t, "N/A", FormatMarketCap(0))
	assert.Equal(t, "2.50T", FormatMarketCap(2.5e12))
	assert.Equal(t, "12.35M", FormatMarketCap(12_345_678))
	assert.Equal(t, "950", FormatMarketCap(950))
}

func TestClassify_RateLimitPastDeadline(t *testing.T) {
	err := fmt.Errorf("rate limit wait failed: %w: %v", context.DeadlineExceeded, errors.New("rate: Wait(n=1) would exceed context deadline"))
	assert.ErrorIs(t, classify(err), contracts.ErrTimeout)
}
