package interfaces

import (
	"context"

	"forecourt-cloud/internal/eventing"
	"forecourt-cloud/internal/settlement/application"
)

// OutboxPublisher writes settlement created events to outbox.
type OutboxPublisher struct {
	publisher *eventing.Publisher
	tenantID  string
}

// NewOutboxPublisher constructs an outbox publisher.
func NewOutboxPublisher(publisher *eventing.Publisher, tenantID string) *OutboxPublisher {
	return &OutboxPublisher{publisher: publisher, tenantID: tenantID}
}

// PublishSettlementCreated writes event to outbox.
func (p *OutboxPublisher) PublishSettlementCreated(ctx context.Context, event application.SettlementCreated) error {
	if p == nil || p.publisher == nil {
		return nil
	}
	ctx = eventing.WithTenantID(ctx, p.tenantID)
	return p.publisher.Publish(ctx, event)
}
