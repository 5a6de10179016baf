package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"forecourt-cloud/internal/auth"
	handoverapp "forecourt-cloud/internal/handover/application"
	handover "forecourt-cloud/internal/handover/domain"
	handovermem "forecourt-cloud/internal/handover/infrastructure/memory"
	"forecourt-cloud/internal/variance"
)

type stubResolver struct{}

func (stubResolver) Resolve(ctx context.Context, stationID string, t handover.Type) (string, error) {
	return "user-mgr", nil
}

func newHandlerFixture(t *testing.T) (*Handler, *handoverapp.ChainService, *handovermem.HandoverRepository) {
	t.Helper()
	repo := handovermem.NewHandoverRepository()
	policy := variance.Policy{Defaults: variance.Thresholds{AbsoluteFloor: 100, PercentOfExpected: 0.02}}
	service, err := handoverapp.NewChainService(repo, stubResolver{}, policy, nil, handoverapp.SystemClock{})
	if err != nil {
		t.Fatalf("new chain service: %v", err)
	}
	handler, err := NewHandler(service, nil, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler, service, repo
}

func openPendingHandover(t *testing.T, service *handoverapp.ChainService, tenantID string) *handover.CashHandover {
	t.Helper()
	record, err := service.CreateHandover(context.Background(), handoverapp.CreateHandoverRequest{
		TenantID:       tenantID,
		StationID:      "station-1",
		Type:           "shift_collection",
		FromUserID:     "user-emp",
		ExpectedAmount: 3900,
	})
	if err != nil {
		t.Fatalf("create handover: %v", err)
	}
	return record
}

func TestHandleConfirm_ForeignTenantRejectedBeforeWrite(t *testing.T) {
	handler, service, repo := newHandlerFixture(t)
	record := openPendingHandover(t, service, "tenant-b")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/handovers/"+record.ID+"/confirm",
		strings.NewReader(`{"accept_as_is":true}`))
	req = req.WithContext(auth.WithIdentity(req.Context(), "tenant-a", auth.RoleManager, "user-intruder"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}

	stored, err := repo.Get(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("get handover: %v", err)
	}
	if stored.Status != handover.StatusPending {
		t.Fatalf("expected handover untouched, got status %s", stored.Status)
	}
	if stored.ConfirmedBy != "" || !stored.ConfirmedAt.IsZero() {
		t.Fatalf("expected no confirmation stamp, got %+v", stored)
	}
}

func TestHandleConfirm_SameTenant(t *testing.T) {
	handler, service, repo := newHandlerFixture(t)
	record := openPendingHandover(t, service, "tenant-b")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/handovers/"+record.ID+"/confirm",
		strings.NewReader(`{"accept_as_is":true}`))
	req = req.WithContext(auth.WithIdentity(req.Context(), "tenant-b", auth.RoleManager, "user-mgr"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	stored, err := repo.Get(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("get handover: %v", err)
	}
	if stored.Status != handover.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", stored.Status)
	}
	if stored.ConfirmedBy != "user-mgr" {
		t.Fatalf("expected confirmation by user-mgr, got %s", stored.ConfirmedBy)
	}
}

func TestHandleConfirm_UnknownHandover(t *testing.T) {
	handler, _, _ := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/handovers/ho-missing/confirm",
		strings.NewReader(`{"accept_as_is":true}`))
	req = req.WithContext(auth.WithIdentity(req.Context(), "tenant-b", auth.RoleManager, "user-mgr"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
