package interfaces

import (
	"context"

	"forecourt-cloud/internal/eventing"
	"forecourt-cloud/internal/handover/application"
)

// OutboxPublisher writes handover confirmed events to outbox.
type OutboxPublisher struct {
	publisher *eventing.Publisher
	tenantID  string
}

// NewOutboxPublisher constructs an outbox publisher.
func NewOutboxPublisher(publisher *eventing.Publisher, tenantID string) *OutboxPublisher {
	return &OutboxPublisher{publisher: publisher, tenantID: tenantID}
}

// PublishHandoverConfirmed writes event to outbox.
func (p *OutboxPublisher) PublishHandoverConfirmed(ctx context.Context, event application.HandoverConfirmed) error {
	if p == nil || p.publisher == nil {
		return nil
	}
	ctx = eventing.WithTenantID(ctx, p.tenantID)
	return p.publisher.Publish(ctx, event)
}
