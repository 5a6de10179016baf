package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"forecourt-cloud/internal/audit"
	"forecourt-cloud/internal/auth"
	masterdata "forecourt-cloud/internal/masterdata/domain"
)

// NozzleLister lists the nozzles configured for a station.
type NozzleLister interface {
	ListNozzles(ctx context.Context, stationID string) ([]masterdata.Nozzle, error)
}

// Handler serves station masterdata endpoints.
type Handler struct {
	stations    masterdata.StationRepository
	nozzles     NozzleLister
	auditLogger audit.Logger
}

// NewHandler constructs a Handler.
func NewHandler(stations masterdata.StationRepository, nozzles NozzleLister, auditLogger audit.Logger) (*Handler, error) {
	if stations == nil {
		return nil, errors.New("masterdata handler: nil station repository")
	}
	return &Handler{stations: stations, nozzles: nozzles, auditLogger: auditLogger}, nil
}

// ServeHTTP routes station requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/v1/stations" {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleSave(w, r)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1/stations/")
	parts := strings.Split(path, "/")
	if len(parts) < 1 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	stationID := parts[0]
	if len(parts) == 1 && r.Method == http.MethodGet {
		h.handleGet(w, r, stationID)
		return
	}
	if len(parts) == 2 && parts[1] == "nozzles" && r.Method == http.MethodGet {
		h.handleListNozzles(w, r, stationID)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

type stationPayload struct {
	StationID     string `json:"station_id"`
	Name          string `json:"name"`
	Timezone      string `json:"timezone"`
	Region        string `json:"region"`
	ManagerUserID string `json:"manager_user_id"`
	OwnerUserID   string `json:"owner_user_id"`
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var req stationPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	tenantID := auth.TenantIDFromContext(r.Context())
	now := time.Now().UTC()
	station := &masterdata.Station{
		ID:            req.StationID,
		TenantID:      tenantID,
		Name:          req.Name,
		Timezone:      req.Timezone,
		Region:        req.Region,
		ManagerUserID: req.ManagerUserID,
		OwnerUserID:   req.OwnerUserID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if station.Timezone == "" {
		station.Timezone = "UTC"
	}
	if err := station.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	existing, err := h.stations.Get(r.Context(), station.ID)
	if err != nil {
		http.Error(w, "station lookup failed", http.StatusInternalServerError)
		return
	}
	if existing != nil && tenantID != "" && existing.TenantID != tenantID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	if err := h.stations.Save(r.Context(), station); err != nil {
		http.Error(w, "station save failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(stationResponse(station))

	h.logAudit(r, tenantID, "station.save", station)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, stationID string) {
	station, err := h.stations.Get(r.Context(), stationID)
	if err != nil {
		http.Error(w, "station lookup failed", http.StatusInternalServerError)
		return
	}
	if station == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID != "" && station.TenantID != tenantID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stationResponse(station))
}

func (h *Handler) handleListNozzles(w http.ResponseWriter, r *http.Request, stationID string) {
	if h.nozzles == nil {
		http.Error(w, "nozzles not configured", http.StatusServiceUnavailable)
		return
	}
	station, err := h.stations.Get(r.Context(), stationID)
	if err != nil {
		http.Error(w, "station lookup failed", http.StatusInternalServerError)
		return
	}
	if station == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID != "" && station.TenantID != tenantID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	nozzles, err := h.nozzles.ListNozzles(r.Context(), stationID)
	if err != nil {
		http.Error(w, "nozzle lookup failed", http.StatusInternalServerError)
		return
	}
	out := make([]map[string]any, 0, len(nozzles))
	for _, n := range nozzles {
		out = append(out, map[string]any{
			"nozzle_id":  n.ID,
			"pump_id":    n.PumpID,
			"station_id": n.StationID,
			"fuel_type":  n.FuelType,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (h *Handler) logAudit(r *http.Request, tenantID, action string, station *masterdata.Station) {
	if h.auditLogger == nil || tenantID == "" {
		return
	}
	meta, _ := json.Marshal(map[string]any{
		"name":            station.Name,
		"manager_user_id": station.ManagerUserID,
		"owner_user_id":   station.OwnerUserID,
	})
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		TenantID:     tenantID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "station",
		ResourceID:   station.ID,
		StationID:    station.ID,
		Category:     audit.CategoryMasterdata,
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func stationResponse(s *masterdata.Station) map[string]any {
	return map[string]any{
		"station_id":      s.ID,
		"name":            s.Name,
		"timezone":        s.Timezone,
		"region":          s.Region,
		"manager_user_id": s.ManagerUserID,
		"owner_user_id":   s.OwnerUserID,
	}
}
