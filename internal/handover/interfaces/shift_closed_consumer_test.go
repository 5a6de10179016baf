package interfaces

import (
	"context"
	"sync"
	"testing"

	"forecourt-cloud/internal/audit"
	handoverapp "forecourt-cloud/internal/handover/application"
	handover "forecourt-cloud/internal/handover/domain"
	handovermem "forecourt-cloud/internal/handover/infrastructure/memory"
	"forecourt-cloud/internal/shifts/application/events"
	"forecourt-cloud/internal/variance"
)

type fixedResolver struct{}

func (fixedResolver) Resolve(ctx context.Context, stationID string, t handover.Type) (string, error) {
	return "user-mgr", nil
}

type recordingAuditLogger struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (l *recordingAuditLogger) Log(ctx context.Context, entry audit.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

func newConsumerFixture(t *testing.T) (*ShiftClosedConsumer, *handovermem.HandoverRepository, *recordingAuditLogger) {
	t.Helper()
	repo := handovermem.NewHandoverRepository()
	policy := variance.Policy{Defaults: variance.Thresholds{AbsoluteFloor: 100, PercentOfExpected: 0.02}}
	chain, err := handoverapp.NewChainService(repo, fixedResolver{}, policy, nil, handoverapp.SystemClock{})
	if err != nil {
		t.Fatalf("new chain service: %v", err)
	}
	auditLog := &recordingAuditLogger{}
	consumer, err := NewShiftClosedConsumer(chain, auditLog)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	return consumer, repo, auditLog
}

func TestShiftClosedConsumer_OpensCollection(t *testing.T) {
	consumer, repo, _ := newConsumerFixture(t)

	err := consumer.Consume(context.Background(), events.ShiftClosed{
		TenantID:   "tenant-1",
		StationID:  "station-1",
		ShiftID:    "shift-abc",
		EmployeeID: "user-emp",
		CashAmount: 3900,
	})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	list, err := repo.ListByStation(context.Background(), "tenant-1", "station-1", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 handover, got %d", len(list))
	}
	got := list[0]
	if got.Type != handover.TypeShiftCollection {
		t.Fatalf("expected shift_collection, got %s", got.Type)
	}
	if got.FromUserID != "user-emp" || got.ToUserID != "user-mgr" {
		t.Fatalf("unexpected participants: %s -> %s", got.FromUserID, got.ToUserID)
	}
	if got.ExpectedAmount != 3900 {
		t.Fatalf("expected amount 3900, got %v", got.ExpectedAmount)
	}
	if got.Status != handover.StatusPending {
		t.Fatalf("expected pending, got %s", got.Status)
	}
}

func TestShiftClosedConsumer_EmitsAuditEntry(t *testing.T) {
	consumer, repo, auditLog := newConsumerFixture(t)

	err := consumer.Consume(context.Background(), events.ShiftClosed{
		TenantID:   "tenant-1",
		StationID:  "station-1",
		ShiftID:    "shift-abc",
		EmployeeID: "user-emp",
		CashAmount: 3900,
	})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	if len(auditLog.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(auditLog.entries))
	}
	entry := auditLog.entries[0]
	if entry.Action != "handover.create" {
		t.Fatalf("expected handover.create, got %s", entry.Action)
	}
	if entry.TenantID != "tenant-1" || entry.StationID != "station-1" {
		t.Fatalf("unexpected scope: %s / %s", entry.TenantID, entry.StationID)
	}
	if entry.Actor != "user-emp" || entry.ResourceType != "handover" {
		t.Fatalf("unexpected actor or resource: %s / %s", entry.Actor, entry.ResourceType)
	}

	list, err := repo.ListByStation(context.Background(), "tenant-1", "station-1", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || entry.ResourceID != list[0].ID {
		t.Fatalf("expected audit entry for created handover %v, got %s", list, entry.ResourceID)
	}
}

func TestShiftClosedConsumer_NoAuditOnFailure(t *testing.T) {
	consumer, _, auditLog := newConsumerFixture(t)

	err := consumer.Consume(context.Background(), events.ShiftClosed{
		TenantID:   "tenant-1",
		StationID:  "",
		ShiftID:    "shift-abc",
		EmployeeID: "user-emp",
		CashAmount: 3900,
	})
	if err == nil {
		t.Fatal("expected error for missing station")
	}
	if len(auditLog.entries) != 0 {
		t.Fatalf("expected no audit entries, got %d", len(auditLog.entries))
	}
}

func TestShiftClosedConsumer_NilService(t *testing.T) {
	if _, err := NewShiftClosedConsumer(nil, nil); err == nil {
		t.Fatal("expected error for nil chain service")
	}
}
