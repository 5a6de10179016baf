package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"forecourt-cloud/internal/audit"
	"forecourt-cloud/internal/auth"
	handoverapp "forecourt-cloud/internal/handover/application"
	handover "forecourt-cloud/internal/handover/domain"
	"forecourt-cloud/internal/observability/metrics"
)

// Handler serves handover chain endpoints.
type Handler struct {
	service        *handoverapp.ChainService
	stationChecker auth.StationTenantChecker
	auditLogger    audit.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *handoverapp.ChainService, stationChecker auth.StationTenantChecker, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("handover handler: nil service")
	}
	return &Handler{service: service, stationChecker: stationChecker, auditLogger: auditLogger}, nil
}

// ServeHTTP routes handover requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/v1/handovers" {
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
	if r.URL.Path == "/api/v1/handovers/bank-deposit" {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleBankDeposit(w, r)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1/handovers/")
	parts := strings.Split(path, "/")
	if len(parts) < 1 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	handoverID := parts[0]
	if len(parts) == 1 && r.Method == http.MethodGet {
		h.handleGet(w, r, handoverID)
		return
	}
	if len(parts) == 2 && parts[1] == "confirm" && r.Method == http.MethodPost {
		h.handleConfirm(w, r, handoverID)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req handoverapp.CreateHandoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	tenantID, ok := h.scopeRequest(w, r, &req.TenantID, req.StationID)
	if !ok {
		metrics.IncHandoverCreate(req.Type, metrics.ResultError)
		return
	}
	if req.FromUserID == "" {
		req.FromUserID = auth.SubjectFromContext(r.Context())
	}

	record, err := h.service.CreateHandover(r.Context(), req)
	if err != nil {
		metrics.IncHandoverCreate(req.Type, metrics.ResultError)
		respondHandoverError(w, err)
		return
	}
	metrics.IncHandoverCreate(string(record.Type), metrics.ResultSuccess)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(handoverResponse(record))

	h.logAudit(r, tenantID, "handover.create", record)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request, handoverID string) {
	start := time.Now()
	outcome := "confirmed"
	defer func() {
		metrics.ObserveHandoverConfirm(outcome, time.Since(start))
	}()

	var req handoverapp.ConfirmHandoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		outcome = "error"
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.ConfirmedBy == "" {
		req.ConfirmedBy = auth.SubjectFromContext(r.Context())
	}

	// Ownership is checked before the confirm so a foreign tenant
	// cannot flip the status and then be told no.
	tenantID := auth.TenantIDFromContext(r.Context())
	existing, err := h.service.GetHandover(r.Context(), handoverID)
	if err != nil {
		outcome = "error"
		respondHandoverError(w, err)
		return
	}
	if tenantID != "" && existing.TenantID != tenantID {
		outcome = "error"
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	record, err := h.service.ConfirmHandover(r.Context(), handoverID, req)
	if err != nil {
		outcome = "error"
		respondHandoverError(w, err)
		return
	}
	outcome = record.Status

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(handoverResponse(record))

	h.logAudit(r, tenantID, "handover.confirm", record)
}

func (h *Handler) handleBankDeposit(w http.ResponseWriter, r *http.Request) {
	var req handoverapp.RecordBankDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	tenantID, ok := h.scopeRequest(w, r, &req.TenantID, req.StationID)
	if !ok {
		metrics.IncBankDeposit(metrics.ResultError)
		return
	}
	if req.RecordedBy == "" {
		req.RecordedBy = auth.SubjectFromContext(r.Context())
	}

	record, err := h.service.RecordBankDeposit(r.Context(), req)
	if err != nil {
		metrics.IncBankDeposit(metrics.ResultError)
		respondHandoverError(w, err)
		return
	}
	metrics.IncBankDeposit(metrics.ResultSuccess)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(handoverResponse(record))

	h.logAudit(r, tenantID, "handover.bank_deposit", record)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	stationID := r.URL.Query().Get("station_id")
	if stationID == "" {
		http.Error(w, "station_id required", http.StatusBadRequest)
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID != "" && h.stationChecker != nil {
		if err := h.stationChecker.EnsureStationTenant(r.Context(), tenantID, stationID); err != nil {
			respondTenantError(w, err)
			return
		}
	}

	list, err := h.service.ListHandovers(r.Context(), tenantID, stationID, r.URL.Query().Get("status"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]map[string]any, 0, len(list))
	for i := range list {
		out = append(out, handoverResponse(&list[i]))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, handoverID string) {
	record, err := h.service.GetHandover(r.Context(), handoverID)
	if err != nil {
		respondHandoverError(w, err)
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID != "" && record.TenantID != tenantID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(handoverResponse(record))
}

func (h *Handler) scopeRequest(w http.ResponseWriter, r *http.Request, reqTenantID *string, stationID string) (string, bool) {
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID != "" && *reqTenantID != "" && *reqTenantID != tenantID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", false
	}
	if tenantID != "" {
		*reqTenantID = tenantID
		if h.stationChecker != nil && stationID != "" {
			if err := h.stationChecker.EnsureStationTenant(r.Context(), tenantID, stationID); err != nil {
				respondTenantError(w, err)
				return "", false
			}
		}
	}
	return tenantID, true
}

func (h *Handler) logAudit(r *http.Request, tenantID, action string, record *handover.CashHandover) {
	if h.auditLogger == nil || tenantID == "" {
		return
	}
	meta, _ := json.Marshal(map[string]any{
		"type":     string(record.Type),
		"expected": record.ExpectedAmount,
		"status":   record.Status,
		"variance": record.Variance,
	})
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		TenantID:     tenantID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "handover",
		ResourceID:   record.ID,
		StationID:    record.StationID,
		Category:     audit.CategoryFinance,
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func handoverResponse(h *handover.CashHandover) map[string]any {
	resp := map[string]any{
		"handover_id":     h.ID,
		"station_id":      h.StationID,
		"type":            string(h.Type),
		"from_user_id":    h.FromUserID,
		"to_user_id":      h.ToUserID,
		"expected_amount": h.ExpectedAmount,
		"variance":        h.Variance,
		"status":          h.Status,
		"notes":           h.Notes,
		"created_at":      h.CreatedAt,
	}
	if h.ActualAmount != nil {
		resp["actual_amount"] = *h.ActualAmount
	}
	if h.PreviousHandoverID != "" {
		resp["previous_handover_id"] = h.PreviousHandoverID
	}
	if !h.ConfirmedAt.IsZero() {
		resp["confirmed_at"] = h.ConfirmedAt
		resp["confirmed_by"] = h.ConfirmedBy
	}
	return resp
}

func respondHandoverError(w http.ResponseWriter, err error) {
	var seq *handover.SequenceViolationError
	if errors.As(err, &seq) {
		http.Error(w, seq.Error(), http.StatusConflict)
		return
	}
	var mismatch *handover.AmountMismatchError
	if errors.As(err, &mismatch) {
		http.Error(w, mismatch.Error(), http.StatusUnprocessableEntity)
		return
	}
	switch {
	case errors.Is(err, handover.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, handover.ErrAlreadyConfirmed), errors.Is(err, handover.ErrAlreadyDisputed):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
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
