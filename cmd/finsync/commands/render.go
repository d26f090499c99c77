package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
	"github.com/projetsjsl/GOB-sub006/internal/library"
	"github.com/projetsjsl/GOB-sub006/internal/roster"
)

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	if noColor {
		tw.SetStyle(table.StyleLight)
	} else {
		tw.SetStyle(table.StyleColoredDark)
	}
	tw.Style().Options.DrawBorder = false
	tw.Style().Options.SeparateRows = false
	tw.Style().Options.SeparateColumns = false
	return tw
}

func colorize(colors text.Colors, s string) string {
	if noColor {
		return s
	}
	return colors.Sprint(s)
}

func kindOf(p contracts.AnalysisProfile) string {
	switch {
	case p.IsWatchlist == nil:
		return "manual"
	case *p.IsWatchlist:
		return "watchlist"
	default:
		return "portfolio"
	}
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04")
}

// renderLibrary prints one row per profile
func renderLibrary(w io.Writer, lib contracts.Library) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"SYMBOL", "NAME", "KIND", "YEARS", "PRICE", "STATUS", "MODIFIED"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: 32},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignRight},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignRight},
	})

	for _, symbol := range lib.Symbols() {
		p := lib[symbol]
		status := "ready"
		if p.IsSkeleton {
			status = colorize(text.Colors{text.FgYellow}, "skeleton")
		}
		tw.AppendRow(table.Row{
			symbol,
			p.Info.Name,
			kindOf(p),
			len(p.Data),
			strconv.FormatFloat(p.Assumptions.CurrentPrice, 'f', 2, 64),
			status,
			formatMillis(p.LastModified),
		})
	}
	tw.Render()
}

// renderStats prints the library composition on one line
func renderStats(w io.Writer, s library.Stats) {
	fmt.Fprintf(w, "%d profiles: %d portfolio, %d watchlist, %d manual, %d skeletons\n",
		s.Profiles, s.Portfolio, s.Watchlist, s.Manual, s.Skeletons)
}

// renderRoster prints what a roster load changed
func renderRoster(w io.Writer, res roster.Result) {
	if res.Skipped {
		fmt.Fprintln(w, "Roster load skipped: another load is in flight")
		return
	}
	fmt.Fprintf(w, "Roster: %d entries, %d created, %d updated, %d demoted\n",
		res.Entries, len(res.Created), res.Updated, len(res.Demoted))
	if len(res.Created) > 0 {
		fmt.Fprintf(w, "  created: %s\n", strings.Join(res.Created, ", "))
	}
	if len(res.Demoted) > 0 {
		fmt.Fprintf(w, "  demoted: %s\n", strings.Join(res.Demoted, ", "))
	}
}

// renderProfile prints the profile header and its annual history
func renderProfile(w io.Writer, p contracts.AnalysisProfile) {
	fmt.Fprintf(w, "%s  %s  (%s)\n", colorize(text.Colors{text.Bold}, p.ID), p.Info.Name, kindOf(p))
	fmt.Fprintf(w, "price %.2f  dividend %.2f  base year %d\n",
		p.Assumptions.CurrentPrice, p.Assumptions.CurrentDividend, p.Assumptions.BaseYear)

	tw := newTable(w)
	tw.AppendHeader(table.Row{"YEAR", "HIGH", "LOW", "EPS", "CFPS", "BVPS", "DPS", "SOURCE"})
	cfgs := make([]table.ColumnConfig, 0, 7)
	for i := 2; i <= 7; i++ {
		cfgs = append(cfgs, table.ColumnConfig{Number: i, Align: text.AlignRight, AlignHeader: text.AlignRight})
	}
	tw.SetColumnConfigs(cfgs)

	for _, r := range p.Data {
		source := "provider"
		if r.UserOwned() {
			source = colorize(text.Colors{text.FgCyan}, "manual")
		}
		year := strconv.Itoa(r.Year)
		if r.IsEstimate {
			year += "e"
		}
		tw.AppendRow(table.Row{
			year,
			fmtNum(r.PriceHigh), fmtNum(r.PriceLow),
			fmtNum(r.EarningsPerShare), fmtNum(r.CashFlowPerShare),
			fmtNum(r.BookValuePerShare), fmtNum(r.DividendPerShare),
			source,
		})
	}
	tw.Render()
}

// renderErrors prints per-symbol sync failures
func renderErrors(w io.Writer, errs []contracts.SyncError) {
	if len(errs) == 0 {
		return
	}
	tw := newTable(w)
	tw.AppendHeader(table.Row{"SYMBOL", "ERROR"})
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 2, WidthMax: 80}})
	for _, e := range errs {
		tw.AppendRow(table.Row{e.Symbol, e.Message})
	}
	tw.Render()
}

func fmtNum(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// consoleNotifier writes job progress and notifications to w
type consoleNotifier struct {
	mu   sync.Mutex
	w    io.Writer
	last string
}

func newConsoleNotifier(w io.Writer) *consoleNotifier {
	return &consoleNotifier{w: w}
}

// Progress prints a line whenever the counters or state move
func (c *consoleNotifier) Progress(p contracts.SyncProgress) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := fmt.Sprintf("%s/%s/%d/%t", p.JobID, p.State, p.Current, p.Paused)
	if key == c.last {
		return
	}
	c.last = key

	state := string(p.State)
	if p.Paused {
		state = colorize(text.Colors{text.FgYellow}, "paused")
	}
	fmt.Fprintf(c.w, "[Sync] %s ok=%d failed=%d [%d/%d]\n", state, p.SuccessCount, p.ErrorCount, p.Current, p.Total)
}

// Notify prints a terminal message with its details
func (c *consoleNotifier) Notify(n contracts.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var mark string
	switch n.Level {
	case contracts.LevelSuccess:
		mark = colorize(text.Colors{text.FgGreen}, "OK")
	case contracts.LevelWarning:
		mark = colorize(text.Colors{text.FgYellow}, "WARN")
	default:
		mark = colorize(text.Colors{text.FgRed}, "ERROR")
	}

	if n.Title != "" {
		fmt.Fprintf(c.w, "%s %s: %s\n", mark, n.Title, n.Message)
	} else {
		fmt.Fprintf(c.w, "%s %s\n", mark, n.Message)
	}
	for _, d := range n.Details {
		fmt.Fprintf(c.w, "   - %s\n", d)
	}
}
