package handover

import "context"

// Repository manages handover persistence.
//
// Create relies on the uniqueness of previous_handover_id: two chain
// steps can never consume the same predecessor, and a lost race
// surfaces as SequenceViolationError. UpdateConfirmation only applies
// to pending handovers; confirmed and disputed rows never change.
type Repository interface {
	Create(ctx context.Context, h *CashHandover) error
	Get(ctx context.Context, id string) (*CashHandover, error)
	UpdateConfirmation(ctx context.Context, h *CashHandover) error
	FindUnconsumedConfirmed(ctx context.Context, stationID string, t Type) (*CashHandover, error)
	ListByStation(ctx context.Context, tenantID, stationID, status string) ([]CashHandover, error)
}
