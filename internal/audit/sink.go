package audit

import (
	"context"
	"log"
)

// Sink wraps a Logger so that audit failures never fail the caller.
// Write errors are logged and counted; the business operation proceeds.
type Sink struct {
	logger    Logger
	appLog    *log.Logger
	onFailure func()
}

// NewSink constructs a best-effort sink. logger may be nil, in which
// case Emit is a no-op.
func NewSink(logger Logger, appLog *log.Logger, onFailure func()) *Sink {
	return &Sink{logger: logger, appLog: appLog, onFailure: onFailure}
}

// Emit writes the entry, swallowing any error.
func (s *Sink) Emit(ctx context.Context, entry Entry) {
	if s == nil || s.logger == nil {
		return
	}
	if err := s.logger.Log(ctx, entry); err != nil {
		if s.appLog != nil {
			s.appLog.Printf("audit write failed action=%s resource=%s: %v", entry.Action, entry.ResourceID, err)
		}
		if s.onFailure != nil {
			s.onFailure()
		}
	}
}

// Log implements Logger so a Sink can be passed where a Logger is
// expected; it reports success unconditionally.
func (s *Sink) Log(ctx context.Context, entry Entry) error {
	s.Emit(ctx, entry)
	return nil
}
