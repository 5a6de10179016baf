package apihttp

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"forecourt-cloud/internal/auth"
	"forecourt-cloud/internal/observability/metrics"
)

const dateLayout = "2006-01-02"

// SettlementsRangeHandler serves settlement range queries across
// business dates.
type SettlementsRangeHandler struct {
	db *sql.DB
}

// NewSettlementsRangeHandler constructs a SettlementsRangeHandler.
func NewSettlementsRangeHandler(db *sql.DB) *SettlementsRangeHandler {
	return &SettlementsRangeHandler{db: db}
}

// ServeHTTP handles GET /api/v1/exports/settlements.
func (h *SettlementsRangeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	stationID, from, to, ok := rangeParams(w, r)
	if !ok {
		return
	}

	rows, err := querySettlements(r.Context(), h.db, auth.TenantIDFromContext(r.Context()), stationID, from, to)
	if err != nil {
		http.Error(w, "query settlements error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

// ExportSettlementsCSVHandler serves settlement CSV exports.
type ExportSettlementsCSVHandler struct {
	db *sql.DB
}

// NewExportSettlementsCSVHandler constructs a ExportSettlementsCSVHandler.
func NewExportSettlementsCSVHandler(db *sql.DB) *ExportSettlementsCSVHandler {
	return &ExportSettlementsCSVHandler{db: db}
}

// ServeHTTP handles GET /api/v1/exports/settlements.csv.
func (h *ExportSettlementsCSVHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveSettlementExport("csv", result, time.Since(start))
	}()

	if r.Method != http.MethodGet {
		result = metrics.ResultError
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		result = metrics.ResultError
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	stationID, from, to, ok := rangeParams(w, r)
	if !ok {
		result = metrics.ResultError
		return
	}

	rows, err := querySettlements(r.Context(), h.db, auth.TenantIDFromContext(r.Context()), stationID, from, to)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "query settlements error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{
		"settlement_id",
		"tenant_id",
		"station_id",
		"business_date",
		"expected_cash",
		"expected_online",
		"expected_credit",
		"actual_cash",
		"actual_online",
		"actual_credit",
		"variance_cash",
		"variance_online",
		"variance_credit",
		"litres_total",
		"status",
		"is_final",
		"created_by",
		"created_at",
	})
	for _, row := range rows {
		_ = writer.Write([]string{
			row.ID,
			row.TenantID,
			row.StationID,
			row.BusinessDate.Format(dateLayout),
			formatFloat(row.ExpectedCash),
			formatFloat(row.ExpectedOnline),
			formatFloat(row.ExpectedCredit),
			formatFloat(row.ActualCash),
			formatFloat(row.ActualOnline),
			formatFloat(row.ActualCredit),
			formatFloat(row.VarianceCash),
			formatFloat(row.VarianceOnline),
			formatFloat(row.VarianceCredit),
			formatFloat(row.LitresTotal),
			row.Status,
			strconv.FormatBool(row.IsFinal),
			row.CreatedBy,
			row.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writer.Flush()
}

type settlementRow struct {
	ID             string    `json:"settlement_id"`
	TenantID       string    `json:"tenant_id"`
	StationID      string    `json:"station_id"`
	BusinessDate   time.Time `json:"business_date"`
	ExpectedCash   float64   `json:"expected_cash"`
	ExpectedOnline float64   `json:"expected_online"`
	ExpectedCredit float64   `json:"expected_credit"`
	ActualCash     float64   `json:"actual_cash"`
	ActualOnline   float64   `json:"actual_online"`
	ActualCredit   float64   `json:"actual_credit"`
	VarianceCash   float64   `json:"variance_cash"`
	VarianceOnline float64   `json:"variance_online"`
	VarianceCredit float64   `json:"variance_credit"`
	LitresTotal    float64   `json:"litres_total"`
	Status         string    `json:"status"`
	IsFinal        bool      `json:"is_final"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
}

func querySettlements(ctx context.Context, db *sql.DB, tenantID, stationID string, from, to time.Time) ([]settlementRow, error) {
	rows, err := db.QueryContext(ctx, `
SELECT
	id,
	tenant_id,
	station_id,
	business_date,
	expected_cash,
	expected_online,
	expected_credit,
	actual_cash,
	actual_online,
	actual_credit,
	variance_cash,
	variance_online,
	variance_credit,
	litres_total,
	status,
	is_final,
	created_by,
	created_at
FROM settlements
WHERE ($1 = '' OR tenant_id = $1)
	AND station_id = $2
	AND business_date >= $3
	AND business_date <= $4
ORDER BY business_date ASC, created_at ASC`, tenantID, stationID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []settlementRow
	for rows.Next() {
		var row settlementRow
		if err := rows.Scan(
			&row.ID,
			&row.TenantID,
			&row.StationID,
			&row.BusinessDate,
			&row.ExpectedCash,
			&row.ExpectedOnline,
			&row.ExpectedCredit,
			&row.ActualCash,
			&row.ActualOnline,
			&row.ActualCredit,
			&row.VarianceCash,
			&row.VarianceOnline,
			&row.VarianceCredit,
			&row.LitresTotal,
			&row.Status,
			&row.IsFinal,
			&row.CreatedBy,
			&row.CreatedAt,
		); err != nil {
			return nil, err
		}
		row.BusinessDate = row.BusinessDate.UTC()
		row.CreatedAt = row.CreatedAt.UTC()
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func rangeParams(w http.ResponseWriter, r *http.Request) (string, time.Time, time.Time, bool) {
	stationID := r.URL.Query().Get("station_id")
	if stationID == "" {
		http.Error(w, "station_id is required", http.StatusBadRequest)
		return "", time.Time{}, time.Time{}, false
	}
	from, err := parseDateQuery(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", time.Time{}, time.Time{}, false
	}
	to, err := parseDateQuery(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", time.Time{}, time.Time{}, false
	}
	if to.Before(from) {
		http.Error(w, "to must not be before from", http.StatusBadRequest)
		return "", time.Time{}, time.Time{}, false
	}
	return stationID, from, to, true
}

func parseDateQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be YYYY-MM-DD")
	}
	return parsed.UTC(), nil
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
