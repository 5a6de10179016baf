package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"forecourt-cloud/internal/audit"
	"forecourt-cloud/internal/auth"
	"forecourt-cloud/internal/observability/metrics"
	readings "forecourt-cloud/internal/readings/domain"
	settlementapp "forecourt-cloud/internal/settlement/application"
	settlement "forecourt-cloud/internal/settlement/domain"
	"forecourt-cloud/internal/settlement/interfaces"
)

// Handler serves settlement endpoints.
type Handler struct {
	service        *settlementapp.SettlementService
	readings       readings.Repository
	stationChecker auth.StationTenantChecker
	auditLogger    audit.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *settlementapp.SettlementService, readingRepo readings.Repository, stationChecker auth.StationTenantChecker, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("settlement handler: nil service")
	}
	return &Handler{service: service, readings: readingRepo, stationChecker: stationChecker, auditLogger: auditLogger}, nil
}

// ServeHTTP routes settlement requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/v1/settlements" {
		switch r.Method {
		case http.MethodPost:
			h.handleCreate(w, r)
		case http.MethodGet:
			h.handleList(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1/settlements/")
	parts := strings.Split(path, "/")
	if len(parts) < 1 || parts[0] == "" || r.Method != http.MethodGet {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	settlementID := parts[0]
	if len(parts) == 1 {
		h.handleGet(w, r, settlementID)
		return
	}
	if len(parts) == 2 && (parts[1] == "export.pdf" || parts[1] == "export.xlsx") {
		h.handleExport(w, r, settlementID, strings.TrimPrefix(parts[1], "export."))
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveSettlementCreate(result, time.Since(start))
	}()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req settlementapp.CreateSettlementRequest
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
	if req.CreatedBy == "" {
		req.CreatedBy = auth.SubjectFromContext(r.Context())
	}

	record, err := h.service.CreateSettlement(r.Context(), req)
	if err != nil {
		result = metrics.ResultError
		respondSettlementError(w, err)
		return
	}
	metrics.IncSettlementStatus(record.Status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(settlementResponse(record))

	h.logAudit(r, tenantID, record)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	stationID := r.URL.Query().Get("station_id")
	dateValue := r.URL.Query().Get("date")
	if stationID == "" || dateValue == "" {
		http.Error(w, "station_id/date required", http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", dateValue)
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

	list, err := h.service.ListSettlements(r.Context(), tenantID, stationID, date)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]map[string]any, 0, len(list))
	for i := range list {
		out = append(out, settlementResponse(&list[i]))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, settlementID string) {
	record, err := h.loadScoped(w, r, settlementID)
	if record == nil || err != nil {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(settlementResponse(record))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, settlementID, format string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveSettlementExport(format, result, time.Since(start))
	}()

	record, err := h.loadScoped(w, r, settlementID)
	if record == nil || err != nil {
		result = metrics.ResultError
		return
	}

	var claimed []readings.Reading
	if h.readings != nil {
		claimed, err = h.readings.GetByIDs(r.Context(), record.ReadingIDs)
		if err != nil {
			result = metrics.ResultError
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	var data []byte
	var contentType string
	switch format {
	case "pdf":
		data, err = interfaces.BuildSettlementPDF(record, claimed)
		contentType = "application/pdf"
	case "xlsx":
		data, err = interfaces.BuildSettlementXLSX(record, claimed)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		result = metrics.ResultError
		http.Error(w, "unknown format", http.StatusBadRequest)
		return
	}
	if err != nil {
		result = metrics.ResultError
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=settlement-"+record.ID+"."+format)
	_, _ = w.Write(data)
}

func (h *Handler) loadScoped(w http.ResponseWriter, r *http.Request, settlementID string) (*settlement.Settlement, error) {
	record, err := h.service.GetSettlement(r.Context(), settlementID)
	if err != nil {
		if errors.Is(err, settlement.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return nil, err
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, err
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID != "" && record.TenantID != tenantID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return nil, auth.ErrTenantMismatch
	}
	return record, nil
}

func (h *Handler) logAudit(r *http.Request, tenantID string, record *settlement.Settlement) {
	if h.auditLogger == nil || tenantID == "" {
		return
	}
	meta, _ := json.Marshal(map[string]any{
		"business_date": record.BusinessDate.Format("2006-01-02"),
		"status":        record.Status,
		"is_final":      record.IsFinal,
		"variance_cash": record.Variance.Cash,
		"reading_count": len(record.ReadingIDs),
	})
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		TenantID:     tenantID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       "settlement.create",
		ResourceType: "settlement",
		ResourceID:   record.ID,
		StationID:    record.StationID,
		Category:     audit.CategoryFinance,
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func settlementResponse(s *settlement.Settlement) map[string]any {
	return map[string]any{
		"settlement_id": s.ID,
		"station_id":    s.StationID,
		"business_date": s.BusinessDate.Format("2006-01-02"),
		"expected":      s.Expected,
		"actual":        s.Actual,
		"variance":      s.Variance,
		"litres_total":  s.LitresTotal,
		"status":        s.Status,
		"is_final":      s.IsFinal,
		"notes":         s.Notes,
		"created_by":    s.CreatedBy,
		"reading_ids":   s.ReadingIDs,
		"created_at":    s.CreatedAt,
	}
}

func respondSettlementError(w http.ResponseWriter, err error) {
	var linked *settlement.AlreadyLinkedError
	if errors.As(err, &linked) {
		http.Error(w, linked.Error(), http.StatusConflict)
		return
	}
	var mismatch *settlement.ReadingMismatchError
	if errors.As(err, &mismatch) {
		http.Error(w, mismatch.Error(), http.StatusUnprocessableEntity)
		return
	}
	if errors.Is(err, settlement.ErrFinalConflict) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
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
