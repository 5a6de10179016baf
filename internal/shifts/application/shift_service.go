package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"forecourt-cloud/internal/shifts/application/events"
)

// ShiftPublisher emits shift closed events.
type ShiftPublisher interface {
	PublishShiftClosed(ctx context.Context, event events.ShiftClosed) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// CloseShiftRequest carries a shift close submission.
type CloseShiftRequest struct {
	TenantID   string  `json:"tenant_id"`
	StationID  string  `json:"station_id"`
	ShiftID    string  `json:"shift_id"`
	EmployeeID string  `json:"employee_id"`
	CashAmount float64 `json:"cash_amount"`
}

// ShiftService closes shifts and announces them to the chain.
type ShiftService struct {
	publisher ShiftPublisher
	clock     Clock
}

// NewShiftService constructs the service.
func NewShiftService(publisher ShiftPublisher, clock Clock) (*ShiftService, error) {
	if publisher == nil {
		return nil, errors.New("shift service: nil publisher")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &ShiftService{publisher: publisher, clock: clock}, nil
}

// CloseShift validates the request and publishes the closure.
func (s *ShiftService) CloseShift(ctx context.Context, req CloseShiftRequest) (*events.ShiftClosed, error) {
	if req.StationID == "" {
		return nil, errors.New("shift service: empty station id")
	}
	if req.EmployeeID == "" {
		return nil, errors.New("shift service: empty employee id")
	}
	if req.CashAmount < 0 {
		return nil, errors.New("shift service: negative cash amount")
	}
	shiftID := req.ShiftID
	if shiftID == "" {
		shiftID = newShiftID()
	}
	event := events.ShiftClosed{
		TenantID:   req.TenantID,
		StationID:  req.StationID,
		ShiftID:    shiftID,
		EmployeeID: req.EmployeeID,
		CashAmount: req.CashAmount,
		OccurredAt: s.clock.Now().UTC(),
	}
	if err := s.publisher.PublishShiftClosed(ctx, event); err != nil {
		return nil, err
	}
	return &event, nil
}

func newShiftID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return "shift-" + hex.EncodeToString(buf)
}
