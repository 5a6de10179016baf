package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	readings "forecourt-cloud/internal/readings/domain"
)

const (
	defaultReadingsTable    = "meter_readings"
	defaultSettlementsTable = "settlements"
)

// ReadingRepository is a Postgres implementation of the reading ledger.
type ReadingRepository struct {
	db               *sql.DB
	table            string
	settlementsTable string
}

// NewReadingRepository constructs a repository.
func NewReadingRepository(db *sql.DB, opts ...ReadingOption) *ReadingRepository {
	repo := &ReadingRepository{
		db:               db,
		table:            defaultReadingsTable,
		settlementsTable: defaultSettlementsTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ReadingOption configures the repository.
type ReadingOption func(*ReadingRepository)

// WithReadingsTable overrides the readings table name.
func WithReadingsTable(table string) ReadingOption {
	return func(repo *ReadingRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const readingColumns = `id, tenant_id, station_id, nozzle_id, reading_date, meter_value, litres_sold,
	value, cash_amount, online_amount, credit_amount, settlement_id, recorded_by, created_at`

// Insert appends a reading.
func (r *ReadingRepository) Insert(ctx context.Context, reading *readings.Reading) error {
	if r == nil || r.db == nil {
		return errors.New("reading repo: nil db")
	}
	if reading == nil {
		return errors.New("reading repo: nil reading")
	}
	if err := reading.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, tenant_id, station_id, nozzle_id, reading_date, meter_value, litres_sold,
	value, cash_amount, online_amount, credit_amount, settlement_id, recorded_by, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NULLIF($12,''),$13,$14
)`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		reading.ID, reading.TenantID, reading.StationID, reading.NozzleID,
		reading.ReadingDate, reading.MeterValue, reading.LitresSold,
		reading.Value, reading.CashAmount, reading.OnlineAmount, reading.CreditAmount,
		reading.SettlementID, reading.RecordedBy, reading.CreatedAt)
	return err
}

// Get loads a reading by id.
func (r *ReadingRepository) Get(ctx context.Context, id string) (*readings.Reading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	if id == "" {
		return nil, readings.ErrEmptyID
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 LIMIT 1`, readingColumns, r.table)
	row := r.db.QueryRowContext(ctx, query, id)
	reading, err := scanReading(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, readings.ErrNotFound
		}
		return nil, err
	}
	return reading, nil
}

// GetByIDs loads readings by id set, in no particular order.
func (r *ReadingRepository) GetByIDs(ctx context.Context, ids []string) ([]readings.Reading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id IN (%s)`,
		readingColumns, r.table, strings.Join(placeholders, ","))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReadings(rows)
}

// LatestForNozzle returns the most recent reading for a nozzle created
// before the given instant, or nil when the nozzle has no history.
func (r *ReadingRepository) LatestForNozzle(ctx context.Context, nozzleID string, before time.Time) (*readings.Reading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	if nozzleID == "" {
		return nil, readings.ErrEmptyNozzleID
	}
	query := fmt.Sprintf(`
SELECT %s FROM %s
WHERE nozzle_id = $1 AND created_at < $2
ORDER BY created_at DESC
LIMIT 1`, readingColumns, r.table)

	row := r.db.QueryRowContext(ctx, query, nozzleID, before.UTC())
	reading, err := scanReading(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return reading, nil
}

// ListUnlinked returns unclaimed readings for a station and date.
func (r *ReadingRepository) ListUnlinked(ctx context.Context, stationID string, date time.Time) ([]readings.Reading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s FROM %s
WHERE station_id = $1 AND reading_date = $2 AND settlement_id IS NULL
ORDER BY created_at ASC`, readingColumns, r.table)

	rows, err := r.db.QueryContext(ctx, query, stationID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReadings(rows)
}

// ListLinked returns claimed readings for a station and date together
// with the owning settlement's date and finality.
func (r *ReadingRepository) ListLinked(ctx context.Context, stationID string, date time.Time) ([]readings.LinkedReading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT r.id, r.tenant_id, r.station_id, r.nozzle_id, r.reading_date, r.meter_value, r.litres_sold,
	r.value, r.cash_amount, r.online_amount, r.credit_amount, r.settlement_id, r.recorded_by, r.created_at,
	s.business_date, s.is_final
FROM %s r
JOIN %s s ON s.id = r.settlement_id
WHERE r.station_id = $1 AND r.reading_date = $2
ORDER BY r.created_at ASC`, r.table, r.settlementsTable)

	rows, err := r.db.QueryContext(ctx, query, stationID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []readings.LinkedReading
	for rows.Next() {
		var lr readings.LinkedReading
		var settlementID sql.NullString
		if err := rows.Scan(
			&lr.ID, &lr.TenantID, &lr.StationID, &lr.NozzleID, &lr.ReadingDate,
			&lr.MeterValue, &lr.LitresSold, &lr.Value,
			&lr.CashAmount, &lr.OnlineAmount, &lr.CreditAmount,
			&settlementID, &lr.RecordedBy, &lr.CreatedAt,
			&lr.SettlementDate, &lr.SettlementFinal,
		); err != nil {
			return nil, err
		}
		lr.SettlementID = settlementID.String
		lr.ReadingDate = lr.ReadingDate.UTC()
		lr.CreatedAt = lr.CreatedAt.UTC()
		out = append(out, lr)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (*readings.Reading, error) {
	var reading readings.Reading
	var settlementID sql.NullString
	if err := row.Scan(
		&reading.ID, &reading.TenantID, &reading.StationID, &reading.NozzleID,
		&reading.ReadingDate, &reading.MeterValue, &reading.LitresSold,
		&reading.Value, &reading.CashAmount, &reading.OnlineAmount, &reading.CreditAmount,
		&settlementID, &reading.RecordedBy, &reading.CreatedAt,
	); err != nil {
		return nil, err
	}
	reading.SettlementID = settlementID.String
	reading.ReadingDate = reading.ReadingDate.UTC()
	reading.CreatedAt = reading.CreatedAt.UTC()
	return &reading, nil
}

func collectReadings(rows *sql.Rows) ([]readings.Reading, error) {
	var out []readings.Reading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *reading)
	}
	return out, rows.Err()
}
