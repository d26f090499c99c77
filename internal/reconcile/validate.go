package reconcile

import (
	"fmt"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
)

// Validate rejects a provider result that cannot replace a skeleton.
// It needs at least one record, a positive price, and one record with
// a positive EPS, cash flow or book value per share.
func Validate(res *contracts.FetchResult) error {
	if res == nil {
		return fmt.Errorf("%w: empty result", contracts.ErrInvalidData)
	}
	if len(res.Data) == 0 {
		return fmt.Errorf("%w: no annual records", contracts.ErrInvalidData)
	}
	if !(res.CurrentPrice > 0) {
		return fmt.Errorf("%w: current price %.2f", contracts.ErrInvalidData, res.CurrentPrice)
	}
	for _, r := range res.Data {
		if r.HasFundamentals() {
			return nil
		}
	}
	return fmt.Errorf("%w: no positive EPS, cash flow or book value", contracts.ErrInvalidData)
}
