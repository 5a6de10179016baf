package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	handover "forecourt-cloud/internal/handover/domain"
)

const (
	defaultHandoversTable = "cash_handovers"

	pgUniqueViolation = "23505"
)

// HandoverRepository is a Postgres implementation of handover
// persistence. The partial unique index on previous_handover_id is the
// arbiter for predecessor consumption: two steps racing for the same
// predecessor serialize on it and the loser gets a sequence violation.
type HandoverRepository struct {
	db    *sql.DB
	table string
}

// NewHandoverRepository constructs a repository.
func NewHandoverRepository(db *sql.DB, opts ...HandoverOption) *HandoverRepository {
	repo := &HandoverRepository{db: db, table: defaultHandoversTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// HandoverOption configures the repository.
type HandoverOption func(*HandoverRepository)

// WithHandoversTable overrides the table name.
func WithHandoversTable(table string) HandoverOption {
	return func(repo *HandoverRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Create inserts a handover.
func (r *HandoverRepository) Create(ctx context.Context, h *handover.CashHandover) error {
	if r == nil || r.db == nil {
		return errors.New("handover repo: nil db")
	}
	if err := h.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, tenant_id, station_id, type, from_user_id, to_user_id,
	expected_amount, actual_amount, variance, status,
	previous_handover_id, notes, created_at, confirmed_at, confirmed_by
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NULLIF($11,''),$12,$13,$14,NULLIF($15,'')
)`, r.table)

	var actual any
	if h.ActualAmount != nil {
		actual = *h.ActualAmount
	}
	var confirmedAt any
	if !h.ConfirmedAt.IsZero() {
		confirmedAt = h.ConfirmedAt
	}
	_, err := r.db.ExecContext(ctx, query,
		h.ID, h.TenantID, h.StationID, string(h.Type), h.FromUserID, h.ToUserID,
		h.ExpectedAmount, actual, h.Variance, h.Status,
		h.PreviousHandoverID, h.Notes, h.CreatedAt, confirmedAt, h.ConfirmedBy)
	if err != nil {
		if isUniqueViolation(err) {
			prev, _ := h.Type.Previous()
			return &handover.SequenceViolationError{Missing: prev}
		}
		return err
	}
	return nil
}

const handoverColumns = `id, tenant_id, station_id, type, from_user_id, to_user_id,
	expected_amount, actual_amount, variance, status,
	previous_handover_id, notes, created_at, confirmed_at, confirmed_by`

// Get loads a handover by id.
func (r *HandoverRepository) Get(ctx context.Context, id string) (*handover.CashHandover, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("handover repo: nil db")
	}
	if id == "" {
		return nil, handover.ErrEmptyID
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 LIMIT 1`, handoverColumns, r.table)
	row := r.db.QueryRowContext(ctx, query, id)
	h, err := scanHandover(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, handover.ErrNotFound
		}
		return nil, err
	}
	return h, nil
}

// UpdateConfirmation applies a terminal status to a pending handover.
func (r *HandoverRepository) UpdateConfirmation(ctx context.Context, h *handover.CashHandover) error {
	if r == nil || r.db == nil {
		return errors.New("handover repo: nil db")
	}
	if h == nil || h.ID == "" {
		return handover.ErrEmptyID
	}

	query := fmt.Sprintf(`
UPDATE %s
SET actual_amount = $1, variance = $2, status = $3, notes = $4,
	confirmed_at = $5, confirmed_by = $6
WHERE id = $7 AND status = 'pending'`, r.table)

	var actual any
	if h.ActualAmount != nil {
		actual = *h.ActualAmount
	}
	result, err := r.db.ExecContext(ctx, query,
		actual, h.Variance, h.Status, h.Notes, h.ConfirmedAt, h.ConfirmedBy, h.ID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	current, err := r.Get(ctx, h.ID)
	if err != nil {
		return err
	}
	switch current.Status {
	case handover.StatusConfirmed:
		return handover.ErrAlreadyConfirmed
	case handover.StatusDisputed:
		return handover.ErrAlreadyDisputed
	default:
		return handover.ErrNotFound
	}
}

// FindUnconsumedConfirmed returns the latest confirmed handover of the
// given type at the station that no later step has consumed, or nil.
func (r *HandoverRepository) FindUnconsumedConfirmed(ctx context.Context, stationID string, t handover.Type) (*handover.CashHandover, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("handover repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s FROM %s
WHERE station_id = $1 AND type = $2 AND status = 'confirmed'
	AND id NOT IN (
		SELECT previous_handover_id FROM %s WHERE previous_handover_id IS NOT NULL
	)
ORDER BY confirmed_at DESC
LIMIT 1`, handoverColumns, r.table, r.table)

	row := r.db.QueryRowContext(ctx, query, stationID, string(t))
	h, err := scanHandover(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return h, nil
}

// ListByStation returns a station's handovers, newest first, optionally
// filtered by status.
func (r *HandoverRepository) ListByStation(ctx context.Context, tenantID, stationID, status string) ([]handover.CashHandover, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("handover repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s FROM %s
WHERE tenant_id = $1 AND station_id = $2 AND ($3 = '' OR status = $3)
ORDER BY created_at DESC`, handoverColumns, r.table)

	rows, err := r.db.QueryContext(ctx, query, tenantID, stationID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []handover.CashHandover
	for rows.Next() {
		h, err := scanHandover(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHandover(row rowScanner) (*handover.CashHandover, error) {
	var h handover.CashHandover
	var typeValue string
	var actual sql.NullFloat64
	var previous sql.NullString
	var confirmedAt sql.NullTime
	var confirmedBy sql.NullString
	if err := row.Scan(
		&h.ID, &h.TenantID, &h.StationID, &typeValue, &h.FromUserID, &h.ToUserID,
		&h.ExpectedAmount, &actual, &h.Variance, &h.Status,
		&previous, &h.Notes, &h.CreatedAt, &confirmedAt, &confirmedBy,
	); err != nil {
		return nil, err
	}
	h.Type = handover.Type(typeValue)
	if actual.Valid {
		value := actual.Float64
		h.ActualAmount = &value
	}
	h.PreviousHandoverID = previous.String
	if confirmedAt.Valid {
		h.ConfirmedAt = confirmedAt.Time.UTC()
	}
	h.ConfirmedBy = confirmedBy.String
	h.CreatedAt = h.CreatedAt.UTC()
	return &h, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
