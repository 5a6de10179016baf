package interfaces

import (
	"context"
	"errors"
	"log"

	"forecourt-cloud/internal/settlement/application"
)

// LoggingPublisher logs settlement created events.
type LoggingPublisher struct {
	logger *log.Logger
}

// NewLoggingPublisher constructs a logging publisher.
func NewLoggingPublisher(logger *log.Logger) *LoggingPublisher {
	if logger == nil {
		logger = log.Default()
	}
	return &LoggingPublisher{logger: logger}
}

// PublishSettlementCreated logs the event.
func (p *LoggingPublisher) PublishSettlementCreated(ctx context.Context, event application.SettlementCreated) error {
	_ = ctx
	if p == nil {
		return errors.New("settlement publisher: nil publisher")
	}
	p.logger.Printf("settlement created: station=%s date=%s status=%s variance=%.2f final=%t",
		event.StationID, event.BusinessDate.Format("2006-01-02"), event.Status, event.VarianceCash, event.IsFinal)
	return nil
}
