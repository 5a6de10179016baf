package interfaces

import (
	"context"

	"forecourt-cloud/internal/eventing"
	"forecourt-cloud/internal/shifts/application/events"
)

// OutboxPublisher writes shift closed events to outbox.
type OutboxPublisher struct {
	publisher *eventing.Publisher
	tenantID  string
}

// NewOutboxPublisher constructs an outbox publisher.
func NewOutboxPublisher(publisher *eventing.Publisher, tenantID string) *OutboxPublisher {
	return &OutboxPublisher{publisher: publisher, tenantID: tenantID}
}

// PublishShiftClosed writes event to outbox.
func (p *OutboxPublisher) PublishShiftClosed(ctx context.Context, event events.ShiftClosed) error {
	if p == nil || p.publisher == nil {
		return nil
	}
	ctx = eventing.WithTenantID(ctx, p.tenantID)
	return p.publisher.Publish(ctx, event)
}
