package pricing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	readings "forecourt-cloud/internal/readings/domain"
)

const (
	defaultPricesTable  = "fuel_prices"
	defaultNozzlesTable = "nozzles"
)

// PostgresPriceProvider resolves the nozzle's fuel type and returns the
// station price effective on the business date.
type PostgresPriceProvider struct {
	db          *sql.DB
	pricesTable string
	nozzleTable string
}

// NewPostgresPriceProvider constructs a provider.
func NewPostgresPriceProvider(db *sql.DB) *PostgresPriceProvider {
	return &PostgresPriceProvider{
		db:          db,
		pricesTable: defaultPricesTable,
		nozzleTable: defaultNozzlesTable,
	}
}

// PriceOn returns the unit price for the nozzle's fuel type on the date.
func (p *PostgresPriceProvider) PriceOn(ctx context.Context, stationID, nozzleID string, date time.Time) (float64, error) {
	if p == nil || p.db == nil {
		return 0, errors.New("price provider: nil db")
	}
	query := fmt.Sprintf(`
SELECT fp.price
FROM %s fp
JOIN %s n ON n.fuel_type = fp.fuel_type AND n.station_id = fp.station_id
WHERE n.id = $1 AND fp.station_id = $2
	AND fp.effective_from <= $3
	AND (fp.effective_to IS NULL OR fp.effective_to > $3)
ORDER BY fp.effective_from DESC
LIMIT 1`, p.pricesTable, p.nozzleTable)

	var price float64
	if err := p.db.QueryRowContext(ctx, query, nozzleID, stationID, date).Scan(&price); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, readings.ErrUnknownPrice
		}
		return 0, err
	}
	return price, nil
}
