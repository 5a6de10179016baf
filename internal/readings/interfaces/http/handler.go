package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"forecourt-cloud/internal/audit"
	"forecourt-cloud/internal/auth"
	"forecourt-cloud/internal/observability/metrics"
	readingsapp "forecourt-cloud/internal/readings/application"
	readings "forecourt-cloud/internal/readings/domain"
)

// Handler provides reading ledger HTTP endpoints.
type Handler struct {
	service        *readingsapp.LedgerService
	stationChecker auth.StationTenantChecker
	auditLogger    audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *readingsapp.LedgerService, stationChecker auth.StationTenantChecker, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("readings handler: nil service")
	}
	return &Handler{service: service, stationChecker: stationChecker, auditLogger: auditLogger}, nil
}

// ServeHTTP handles POST/GET /api/v1/readings.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReadingRecord(result, time.Since(start))
	}()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req readingsapp.RecordReadingRequest
	if err := json.Unmarshal(body, &req); err != nil {
		result = metrics.ResultError
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID != "" && req.TenantID != "" && req.TenantID != tenantID {
		result = metrics.ResultError
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if tenantID != "" {
		req.TenantID = tenantID
		if err := ensureStationTenant(r, h.stationChecker, tenantID, req.StationID); err != nil {
			result = metrics.ResultError
			respondTenantError(w, err)
			return
		}
	}
	if req.RecordedBy == "" {
		req.RecordedBy = auth.SubjectFromContext(r.Context())
	}

	resp, err := h.service.RecordReading(r.Context(), req)
	if err != nil {
		result = metrics.ResultError
		status := http.StatusBadRequest
		if errors.Is(err, readings.ErrMeterRegression) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)

	h.logAudit(r, tenantID, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	stationID := r.URL.Query().Get("station_id")
	dateValue := r.URL.Query().Get("date")
	if stationID == "" || dateValue == "" {
		http.Error(w, "station_id/date required", http.StatusBadRequest)
		return
	}
	date, err := readingsapp.ParseBusinessDate(dateValue)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID != "" {
		if err := ensureStationTenant(r, h.stationChecker, tenantID, stationID); err != nil {
			respondTenantError(w, err)
			return
		}
	}

	view := r.URL.Query().Get("view")
	w.Header().Set("Content-Type", "application/json")
	switch view {
	case "", "unlinked":
		list, err := h.service.ListUnlinked(r.Context(), stationID, date)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(list)
	case "linked":
		list, err := h.service.ListLinked(r.Context(), stationID, date)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(list)
	default:
		http.Error(w, "view must be unlinked or linked", http.StatusBadRequest)
	}
}

func (h *Handler) logAudit(r *http.Request, tenantID string, resp *readingsapp.RecordReadingResponse) {
	if h.auditLogger == nil || tenantID == "" {
		return
	}
	meta, _ := json.Marshal(map[string]any{
		"nozzle_id":    resp.NozzleID,
		"reading_date": resp.ReadingDate,
		"litres_sold":  resp.LitresSold,
		"value":        resp.Value,
	})
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		TenantID:     tenantID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       "reading.record",
		ResourceType: "reading",
		ResourceID:   resp.ReadingID,
		StationID:    resp.StationID,
		Category:     audit.CategoryFinance,
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func ensureStationTenant(r *http.Request, checker auth.StationTenantChecker, tenantID, stationID string) error {
	if checker == nil || tenantID == "" || stationID == "" {
		return nil
	}
	return checker.EnsureStationTenant(r.Context(), tenantID, stationID)
}

func respondTenantError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, auth.ErrTenantMismatch) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if errors.Is(err, auth.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.Error(w, "tenant check failed", http.StatusInternalServerError)
}
