// Package fmp fetches annual history from Financial Modeling Prep.
package fmp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
	"github.com/projetsjsl/GOB-sub006/internal/metrics"
	"github.com/projetsjsl/GOB-sub006/pkg/config"
	"github.com/projetsjsl/GOB-sub006/pkg/httputil"
	"github.com/projetsjsl/GOB-sub006/pkg/logger"
)

// Client implements contracts.Fetcher against the FMP v3 API
// SSOT: provider calls are made here only
type Client struct {
	http     *httputil.Client
	logger   *logger.Logger
	apiKey   string
	baseURL  string
	timeout  time.Duration
	maxYears int
}

// NewClient creates a provider client. An empty API key is accepted
// here and reported as ErrConfigMissing on the first Fetch.
func NewClient(httpClient *httputil.Client, cfg config.ProviderConfig, log *logger.Logger) *Client {
	maxYears := cfg.MaxYears
	if maxYears <= 0 {
		maxYears = 15
	}
	return &Client{
		http:     httpClient,
		logger:   log.WithModule("fmp"),
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		timeout:  cfg.Timeout,
		maxYears: maxYears,
	}
}

// Fetch returns up to maxYears annual records, company info and the current price
func (c *Client) Fetch(ctx context.Context, symbol string) (*contracts.FetchResult, error) {
	symbol = contracts.NormalizeSymbol(symbol)
	start := time.Now()

	res, err := c.fetch(ctx, symbol)
	if err != nil {
		err = contracts.NewSymbolError(symbol, classify(err))
	}
	metrics.RecordFetch(time.Since(start), err)

	log := c.logger.WithFields(map[string]interface{}{
		"symbol":   symbol,
		"duration": time.Since(start),
	})
	if err != nil {
		log.WithError(err).Warn("Provider fetch failed")
		return nil, err
	}
	log.WithField("records", len(res.Data)).Debug("Provider fetch completed")
	return res, nil
}

func (c *Client) fetch(ctx context.Context, symbol string) (*contracts.FetchResult, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: set FMP_API_KEY", contracts.ErrConfigMissing)
	}
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", contracts.ErrNotFound)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	profile, used, err := c.resolveProfile(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if profile.IsEtf || profile.IsFund {
		return nil, fmt.Errorf("%w: %s", contracts.ErrFundNotEquity, used)
	}

	var (
		keyMetrics []keyMetricDTO
		dividends  dividendHistoryDTO
		prices     priceHistoryDTO
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.get(gctx, "/key-metrics/"+url.PathEscape(used), url.Values{"period": {"annual"}, "limit": {"30"}}, &keyMetrics)
	})
	g.Go(func() error {
		if err := c.get(gctx, "/historical-price-full/stock_dividend/"+url.PathEscape(used), nil, &dividends); err != nil {
			if gctx.Err() != nil {
				return err
			}
			c.logger.WithField("symbol", used).WithError(err).Debug("No dividend history")
		}
		return nil
	})
	g.Go(func() error {
		if err := c.get(gctx, "/historical-price-full/"+url.PathEscape(used), url.Values{"serietype": {"line"}, "timeseries": {"7300"}}, &prices); err != nil {
			if gctx.Err() != nil {
				return err
			}
			c.logger.WithField("symbol", used).WithError(err).Debug("No price history")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(keyMetrics) == 0 {
		return nil, fmt.Errorf("%w: no annual metrics for %s", contracts.ErrEmptyData, used)
	}

	records := buildRecords(keyMetrics, dividends.Historical, prices.Historical, c.maxYears)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no dated annual metrics for %s", contracts.ErrEmptyData, used)
	}

	price := profile.Price
	if !(price > 0) && len(prices.Historical) > 0 {
		price = latestClose(prices.Historical)
	}

	return &contracts.FetchResult{
		Symbol:       symbol,
		Data:         records,
		Info:         buildInfo(symbol, profile),
		CurrentPrice: round(price, 2),
	}, nil
}

// resolveProfile tries the symbol and its common listing variants
func (c *Client) resolveProfile(ctx context.Context, symbol string) (profileDTO, string, error) {
	var lastErr error
	for _, candidate := range candidates(symbol) {
		var profiles []profileDTO
		err := c.get(ctx, "/profile/"+url.PathEscape(candidate), nil, &profiles)
		switch {
		case err == nil && len(profiles) > 0 && profiles[0].Symbol != "":
			return profiles[0], candidate, nil
		case err == nil:
			lastErr = fmt.Errorf("%w: %s", contracts.ErrNotFound, candidate)
		case errors.Is(err, contracts.ErrNotFound):
			lastErr = err
		default:
			return profileDTO{}, "", err
		}
	}
	return profileDTO{}, "", lastErr
}

// candidates lists the symbols to try in order. Share classes are tried
// with a dash and on the Toronto exchange.
func candidates(symbol string) []string {
	out := []string{symbol}
	add := func(s string) {
		for _, existing := range out {
			if existing == s {
				return
			}
		}
		out = append(out, s)
	}

	switch {
	case strings.HasSuffix(symbol, ".TO"):
	case strings.Contains(symbol, "."):
		dashed := strings.Replace(symbol, ".", "-", 1)
		add(dashed)
		add(dashed + ".TO")
		add(symbol + ".TO")
		base := symbol[:strings.Index(symbol, ".")]
		add(base)
		add(base + ".TO")
	default:
		add(symbol + ".TO")
	}
	return out
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dest interface{}) error {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("apikey", c.apiKey)

	var raw json.RawMessage
	if err := c.http.GetJSON(ctx, c.baseURL+path+"?"+q.Encode(), &raw); err != nil {
		return classify(err)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var e errorDTO
		if json.Unmarshal(trimmed, &e) == nil && e.ErrorMessage != "" {
			if strings.Contains(strings.ToLower(e.ErrorMessage), "api key") {
				return fmt.Errorf("%w: %s", contracts.ErrConfigMissing, e.ErrorMessage)
			}
			return fmt.Errorf("%w: %s", contracts.ErrNotFound, e.ErrorMessage)
		}
	}

	if err := json.Unmarshal(trimmed, dest); err != nil {
		return fmt.Errorf("%w: decode %s: %v", contracts.ErrInvalidData, path, err)
	}
	return nil
}

// classify maps transport failures onto the error taxonomy
func classify(err error) error {
	var status *httputil.StatusError
	switch {
	case errors.As(err, &status):
		switch status.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: provider rejected the credential (%d)", contracts.ErrConfigMissing, status.StatusCode)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", contracts.ErrNotFound, err)
		}
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return contracts.ClassifyContextError(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", contracts.ErrTimeout, err)
	}
	return err
}

// buildRecords turns key metrics, dividends and closes into annual records,
// newest maxYears kept, sorted ascending
func buildRecords(keyMetrics []keyMetricDTO, dividends []dividendDTO, closes []closeDTO, maxYears int) []contracts.AnnualRecord {
	dpsByYear := make(map[int]float64)
	for _, d := range dividends {
		year, ok := yearOf(d.Date)
		if !ok {
			continue
		}
		amount := d.Dividend
		if amount == 0 {
			amount = d.AdjDividend
		}
		dpsByYear[year] += amount
	}

	type hl struct{ high, low float64 }
	rangeByYear := make(map[int]hl)
	for _, p := range closes {
		year, ok := yearOf(p.Date)
		if !ok || !(p.Close > 0) {
			continue
		}
		r, seen := rangeByYear[year]
		if !seen {
			r = hl{high: p.Close, low: p.Close}
		}
		if p.Close > r.high {
			r.high = p.Close
		}
		if p.Close < r.low {
			r.low = p.Close
		}
		rangeByYear[year] = r
	}

	seen := make(map[int]bool)
	records := make([]contracts.AnnualRecord, 0, len(keyMetrics))
	for _, m := range keyMetrics {
		year, ok := yearOf(m.Date)
		if !ok || seen[year] {
			continue
		}
		seen[year] = true

		r := rangeByYear[year]
		high, low := r.high, r.low
		if !(high > 0) && m.RevenuePerShare > 0 {
			high = m.RevenuePerShare * 20
		}
		if !(low > 0) {
			low = high * 0.5
		}

		records = append(records, contracts.AnnualRecord{
			Year:              year,
			PriceHigh:         round(high, 2),
			PriceLow:          round(low, 2),
			EarningsPerShare:  round(m.NetIncomePerShare, 2),
			CashFlowPerShare:  round(m.OperatingCashFlowPerShare, 2),
			BookValuePerShare: round(m.BookValuePerShare, 2),
			DividendPerShare:  round(dpsByYear[year], 2),
			AutoFetched:       contracts.Bool(true),
		})
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Year < records[j].Year })
	if len(records) > maxYears {
		records = records[len(records)-maxYears:]
	}
	return records
}

func buildInfo(symbol string, p profileDTO) contracts.CompanyInfo {
	exchange := p.ExchangeShortName
	if exchange == "" {
		exchange = p.Exchange
	}
	currency := p.Currency
	if currency == "" {
		currency = "USD"
	}
	logo := p.Image
	if logo == "" {
		logo = "https://financialmodelingprep.com/image-stock/" + url.PathEscape(p.Symbol) + ".png"
	}

	info := contracts.CompanyInfo{
		Symbol:    symbol,
		Name:      p.CompanyName,
		Sector:    p.Sector,
		Industry:  p.Industry,
		Exchange:  exchange,
		Country:   p.Country,
		Currency:  currency,
		MarketCap: FormatMarketCap(p.MktCap),
		Logo:      logo,
	}
	if p.Beta != nil {
		info.Beta = contracts.Float(*p.Beta)
	}
	return info
}

// FormatMarketCap renders a capitalization as 1.23T / 4.56B / 7.89M
func FormatMarketCap(v float64) string {
	switch {
	case !(v > 0):
		return "N/A"
	case v >= 1e12:
		return decimal.NewFromFloat(v / 1e12).StringFixed(2) + "T"
	case v >= 1e9:
		return decimal.NewFromFloat(v / 1e9).StringFixed(2) + "B"
	case v >= 1e6:
		return decimal.NewFromFloat(v / 1e6).StringFixed(2) + "M"
	}
	return decimal.NewFromFloat(v).StringFixed(0)
}

func latestClose(closes []closeDTO) float64 {
	var best string
	var price float64
	for _, p := range closes {
		if p.Close > 0 && p.Date > best {
			best, price = p.Date, p.Close
		}
	}
	return price
}

func yearOf(date string) (int, bool) {
	if len(date) < 4 {
		return 0, false
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil || y < 1900 {
		return 0, false
	}
	return y, true
}

func round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
