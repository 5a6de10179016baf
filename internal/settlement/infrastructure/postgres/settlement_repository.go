package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	settlement "forecourt-cloud/internal/settlement/domain"
)

const (
	defaultSettlementsTable = "settlements"
	defaultReadingsTable    = "meter_readings"

	pgUniqueViolation = "23505"
)

// SettlementRepository is a Postgres implementation of settlement
// persistence. Claiming readings and inserting the settlement happen
// in one transaction; the readings rows are locked first so concurrent
// settlements for the same readings serialize.
type SettlementRepository struct {
	db            *sql.DB
	table         string
	readingsTable string
}

// NewSettlementRepository constructs a repository.
func NewSettlementRepository(db *sql.DB, opts ...SettlementOption) *SettlementRepository {
	repo := &SettlementRepository{
		db:            db,
		table:         defaultSettlementsTable,
		readingsTable: defaultReadingsTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// SettlementOption configures the repository.
type SettlementOption func(*SettlementRepository)

// WithSettlementsTable overrides the settlements table name.
func WithSettlementsTable(table string) SettlementOption {
	return func(repo *SettlementRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// CreateAndClaim locks the readings, verifies they are unclaimed and in
// scope, demotes a previous final settlement when needed, inserts the
// settlement, and stamps the readings.
func (r *SettlementRepository) CreateAndClaim(ctx context.Context, s *settlement.Settlement) error {
	if r == nil || r.db == nil {
		return errors.New("settlement repo: nil db")
	}
	if err := s.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := r.lockAndVerifyReadings(ctx, tx, s); err != nil {
		_ = tx.Rollback()
		return err
	}

	if s.IsFinal {
		demote := fmt.Sprintf(`
UPDATE %s
SET is_final = FALSE, updated_at = $1
WHERE station_id = $2 AND business_date = $3 AND is_final`, r.table)
		if _, err := tx.ExecContext(ctx, demote, s.UpdatedAt, s.StationID, s.BusinessDate); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	insert := fmt.Sprintf(`
INSERT INTO %s (
	id, tenant_id, station_id, business_date,
	expected_cash, expected_online, expected_credit,
	actual_cash, actual_online, actual_credit,
	variance_cash, variance_online, variance_credit,
	litres_total, status, is_final, notes, created_by, created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20
)`, r.table)
	_, err = tx.ExecContext(ctx, insert,
		s.ID, s.TenantID, s.StationID, s.BusinessDate,
		s.Expected.Cash, s.Expected.Online, s.Expected.Credit,
		s.Actual.Cash, s.Actual.Online, s.Actual.Credit,
		s.Variance.Cash, s.Variance.Online, s.Variance.Credit,
		s.LitresTotal, s.Status, s.IsFinal, s.Notes, s.CreatedBy, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		_ = tx.Rollback()
		if isUniqueViolation(err) {
			return settlement.ErrFinalConflict
		}
		return err
	}

	placeholders := make([]string, len(s.ReadingIDs))
	args := make([]any, 0, len(s.ReadingIDs)+1)
	args = append(args, s.ID)
	for i, id := range s.ReadingIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	claim := fmt.Sprintf(`
UPDATE %s
SET settlement_id = $1
WHERE id IN (%s) AND settlement_id IS NULL`, r.readingsTable, strings.Join(placeholders, ","))
	result, err := tx.ExecContext(ctx, claim, args...)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if affected, err := result.RowsAffected(); err == nil && affected != int64(len(s.ReadingIDs)) {
		_ = tx.Rollback()
		return &settlement.AlreadyLinkedError{ReadingIDs: s.ReadingIDs}
	}

	return tx.Commit()
}

func (r *SettlementRepository) lockAndVerifyReadings(ctx context.Context, tx *sql.Tx, s *settlement.Settlement) error {
	placeholders := make([]string, len(s.ReadingIDs))
	args := make([]any, len(s.ReadingIDs))
	for i, id := range s.ReadingIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`
SELECT id, station_id, reading_date, settlement_id
FROM %s
WHERE id IN (%s)
FOR UPDATE`, r.readingsTable, strings.Join(placeholders, ","))

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	type lockedReading struct {
		stationID    string
		readingDate  time.Time
		settlementID sql.NullString
	}
	found := make(map[string]lockedReading, len(s.ReadingIDs))
	for rows.Next() {
		var id string
		var lr lockedReading
		if err := rows.Scan(&id, &lr.stationID, &lr.readingDate, &lr.settlementID); err != nil {
			return err
		}
		found[id] = lr
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var mismatched []string
	var linked []string
	for _, id := range s.ReadingIDs {
		lr, ok := found[id]
		if !ok || lr.stationID != s.StationID || !lr.readingDate.UTC().Equal(s.BusinessDate) {
			mismatched = append(mismatched, id)
			continue
		}
		if lr.settlementID.Valid {
			linked = append(linked, id)
		}
	}
	if len(mismatched) > 0 {
		return &settlement.ReadingMismatchError{ReadingIDs: mismatched}
	}
	if len(linked) > 0 {
		return &settlement.AlreadyLinkedError{ReadingIDs: linked}
	}
	return nil
}

const settlementColumns = `id, tenant_id, station_id, business_date,
	expected_cash, expected_online, expected_credit,
	actual_cash, actual_online, actual_credit,
	variance_cash, variance_online, variance_credit,
	litres_total, status, is_final, notes, created_by, created_at, updated_at`

// Get loads a settlement with its claimed reading ids.
func (r *SettlementRepository) Get(ctx context.Context, id string) (*settlement.Settlement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("settlement repo: nil db")
	}
	if id == "" {
		return nil, settlement.ErrEmptyID
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 LIMIT 1`, settlementColumns, r.table)
	row := r.db.QueryRowContext(ctx, query, id)
	s, err := scanSettlement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, settlement.ErrNotFound
		}
		return nil, err
	}
	if err := r.fillReadingIDs(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// ListByStationDate returns settlements for a station and date, newest
// first.
func (r *SettlementRepository) ListByStationDate(ctx context.Context, tenantID, stationID string, date time.Time) ([]settlement.Settlement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("settlement repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s FROM %s
WHERE tenant_id = $1 AND station_id = $2 AND business_date = $3
ORDER BY created_at DESC`, settlementColumns, r.table)

	rows, err := r.db.QueryContext(ctx, query, tenantID, stationID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []settlement.Settlement
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := r.fillReadingIDs(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FindFinal returns the final settlement for a station and date, or nil.
func (r *SettlementRepository) FindFinal(ctx context.Context, stationID string, date time.Time) (*settlement.Settlement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("settlement repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s FROM %s
WHERE station_id = $1 AND business_date = $2 AND is_final
LIMIT 1`, settlementColumns, r.table)

	row := r.db.QueryRowContext(ctx, query, stationID, date)
	s, err := scanSettlement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := r.fillReadingIDs(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SettlementRepository) fillReadingIDs(ctx context.Context, s *settlement.Settlement) error {
	query := fmt.Sprintf(`SELECT id FROM %s WHERE settlement_id = $1 ORDER BY created_at ASC`, r.readingsTable)
	rows, err := r.db.QueryContext(ctx, query, s.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		s.ReadingIDs = append(s.ReadingIDs, id)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSettlement(row rowScanner) (*settlement.Settlement, error) {
	var s settlement.Settlement
	if err := row.Scan(
		&s.ID, &s.TenantID, &s.StationID, &s.BusinessDate,
		&s.Expected.Cash, &s.Expected.Online, &s.Expected.Credit,
		&s.Actual.Cash, &s.Actual.Online, &s.Actual.Credit,
		&s.Variance.Cash, &s.Variance.Online, &s.Variance.Credit,
		&s.LitresTotal, &s.Status, &s.IsFinal, &s.Notes, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.BusinessDate = s.BusinessDate.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
