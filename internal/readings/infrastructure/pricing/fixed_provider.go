package pricing

import (
	"context"
	"time"
)

// FixedPriceProvider returns one price for every nozzle and date.
// Useful for tests and single-product stations.
type FixedPriceProvider struct {
	Price float64
}

// PriceOn returns the fixed price.
func (p FixedPriceProvider) PriceOn(ctx context.Context, stationID, nozzleID string, date time.Time) (float64, error) {
	return p.Price, nil
}
