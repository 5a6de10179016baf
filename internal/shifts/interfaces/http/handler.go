package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"forecourt-cloud/internal/audit"
	"forecourt-cloud/internal/auth"
	"forecourt-cloud/internal/observability/metrics"
	shiftsapp "forecourt-cloud/internal/shifts/application"
)

// Handler serves the shift close endpoint.
type Handler struct {
	service        *shiftsapp.ShiftService
	stationChecker auth.StationTenantChecker
	auditLogger    audit.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *shiftsapp.ShiftService, stationChecker auth.StationTenantChecker, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("shifts handler: nil service")
	}
	return &Handler{service: service, stationChecker: stationChecker, auditLogger: auditLogger}, nil
}

// ServeHTTP handles POST /api/v1/shifts/close.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	result := metrics.ResultSuccess
	defer func() {
		metrics.IncShiftClose(result)
	}()

	var req shiftsapp.CloseShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
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
		if h.stationChecker != nil && req.StationID != "" {
			if err := h.stationChecker.EnsureStationTenant(r.Context(), tenantID, req.StationID); err != nil {
				result = metrics.ResultError
				if errors.Is(err, auth.ErrTenantMismatch) {
					http.Error(w, "forbidden", http.StatusForbidden)
					return
				}
				if errors.Is(err, auth.ErrNotFound) {
					http.Error(w, "not found", http.StatusNotFound)
					return
				}
				http.Error(w, "tenant check failed", http.StatusInternalServerError)
				return
			}
		}
	}

	event, err := h.service.CloseShift(r.Context(), req)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(event)

	if h.auditLogger != nil && tenantID != "" {
		meta, _ := json.Marshal(map[string]any{
			"employee_id": event.EmployeeID,
			"cash_amount": event.CashAmount,
		})
		_ = h.auditLogger.Log(r.Context(), audit.Entry{
			TenantID:     tenantID,
			Actor:        auth.SubjectFromContext(r.Context()),
			Role:         string(auth.RoleFromContext(r.Context())),
			Action:       "shift.close",
			ResourceType: "shift",
			ResourceID:   event.ShiftID,
			StationID:    event.StationID,
			Category:     audit.CategoryFinance,
			Metadata:     meta,
			IP:           audit.ClientIP(r),
			UserAgent:    r.UserAgent(),
		})
	}
}
