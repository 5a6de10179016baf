package interfaces

import (
	"context"
	"encoding/json"
	"errors"

	"forecourt-cloud/internal/audit"
	handoverapp "forecourt-cloud/internal/handover/application"
	handover "forecourt-cloud/internal/handover/domain"
	"forecourt-cloud/internal/shifts/application/events"
)

// ShiftClosedConsumer opens a shift_collection handover for every
// closed shift, seeding the chain with the declared cash amount.
type ShiftClosedConsumer struct {
	chain       *handoverapp.ChainService
	auditLogger audit.Logger
}

// NewShiftClosedConsumer constructs a consumer adapter.
func NewShiftClosedConsumer(chain *handoverapp.ChainService, auditLogger audit.Logger) (*ShiftClosedConsumer, error) {
	if chain == nil {
		return nil, errors.New("shift consumer: nil chain service")
	}
	return &ShiftClosedConsumer{chain: chain, auditLogger: auditLogger}, nil
}

// Consume handles a ShiftClosed event.
func (c *ShiftClosedConsumer) Consume(ctx context.Context, event events.ShiftClosed) error {
	record, err := c.chain.CreateHandover(ctx, handoverapp.CreateHandoverRequest{
		TenantID:       event.TenantID,
		StationID:      event.StationID,
		Type:           string(handover.TypeShiftCollection),
		FromUserID:     event.EmployeeID,
		ExpectedAmount: event.CashAmount,
	})
	if err != nil {
		return err
	}
	c.logAudit(ctx, record, event.ShiftID)
	return nil
}

func (c *ShiftClosedConsumer) logAudit(ctx context.Context, record *handover.CashHandover, shiftID string) {
	if c.auditLogger == nil {
		return
	}
	meta, _ := json.Marshal(map[string]any{
		"type":     string(record.Type),
		"expected": record.ExpectedAmount,
		"status":   record.Status,
		"shift_id": shiftID,
	})
	_ = c.auditLogger.Log(ctx, audit.Entry{
		TenantID:     record.TenantID,
		Actor:        record.FromUserID,
		Action:       "handover.create",
		ResourceType: "handover",
		ResourceID:   record.ID,
		StationID:    record.StationID,
		Category:     audit.CategoryFinance,
		Metadata:     meta,
	})
}
