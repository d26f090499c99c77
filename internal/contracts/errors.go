package contracts

import (
	"context"
	"errors"
	"fmt"
)

// Error taxonomy. Callers branch with errors.Is.
var (
	ErrNotFound       = errors.New("ticker not found")
	ErrInvalidData    = errors.New("invalid provider data")
	ErrEmptyData      = errors.New("no financial data available")
	ErrFundNotEquity  = errors.New("symbol is a fund, not an equity")
	ErrTimeout        = errors.New("fetch timed out")
	ErrConfigMissing  = errors.New("provider credential missing")
	ErrStorageFailure = errors.New("storage failure")
	ErrFatalJob       = errors.New("fatal sync job error")
	ErrJobRunning     = errors.New("a sync job is already running")
	ErrNoJob          = errors.New("no sync job running")
	ErrUnknownSymbol  = errors.New("symbol not in library")
)

// Roster load failures. All three wrap ErrRosterLoad.
var (
	ErrRosterLoad      = errors.New("roster load failed")
	ErrRosterEmpty     = fmt.Errorf("%w: roster is empty", ErrRosterLoad)
	ErrRosterMalformed = fmt.Errorf("%w: roster entries are malformed", ErrRosterLoad)
	ErrRosterNetwork   = fmt.Errorf("%w: remote store unreachable", ErrRosterLoad)
)

// SymbolError attaches a symbol to a failure
type SymbolError struct {
	Symbol string
	Err    error
}

func (e *SymbolError) Error() string {
	return fmt.Sprintf("%s: %v", e.Symbol, e.Err)
}

func (e *SymbolError) Unwrap() error {
	return e.Err
}

// NewSymbolError wraps err unless it is nil
func NewSymbolError(symbol string, err error) error {
	if err == nil {
		return nil
	}
	return &SymbolError{Symbol: symbol, Err: err}
}

// ClassifyContextError maps a context failure to the taxonomy
func ClassifyContextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// UserMessage returns the single actionable message for a failed symbol
func UserMessage(symbol string, err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfigMissing):
		return "The financial data provider credential is missing. Set FMP_API_KEY and retry."
	case errors.Is(err, ErrFundNotEquity):
		return fmt.Sprintf("%s looks like a fund, not an equity. Only stocks can be valued.", symbol)
	case errors.Is(err, ErrNotFound):
		return fmt.Sprintf("Ticker %s was not found. Check the symbol and try again.", symbol)
	case errors.Is(err, ErrEmptyData), errors.Is(err, ErrInvalidData):
		return fmt.Sprintf("No financial data is available for %s.", symbol)
	case errors.Is(err, ErrTimeout):
		return fmt.Sprintf("Loading %s timed out. The provider may be slow; try again shortly.", symbol)
	case errors.Is(err, ErrRosterEmpty):
		return "The ticker roster is empty."
	case errors.Is(err, ErrRosterMalformed):
		return "The ticker roster contains malformed entries."
	case errors.Is(err, ErrRosterLoad):
		return "Could not reach the ticker roster. It will be retried on the next refresh."
	default:
		return fmt.Sprintf("Could not load %s: %v", symbol, err)
	}
}
