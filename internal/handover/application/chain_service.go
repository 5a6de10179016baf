package application

import (
	"context"
	"errors"
	"time"

	handover "forecourt-cloud/internal/handover/domain"
	"forecourt-cloud/internal/variance"
)

// RecipientResolver resolves who receives the cash at a chain step.
type RecipientResolver interface {
	Resolve(ctx context.Context, stationID string, t handover.Type) (string, error)
}

// HandoverConfirmed is emitted when a handover reaches a terminal
// status, disputed included.
type HandoverConfirmed struct {
	HandoverID string    `json:"handover_id"`
	TenantID   string    `json:"tenant_id"`
	StationID  string    `json:"station_id"`
	Type       string    `json:"type"`
	Expected   float64   `json:"expected"`
	Actual     float64   `json:"actual"`
	Variance   float64   `json:"variance"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// HandoverPublisher emits handover confirmed events.
type HandoverPublisher interface {
	PublishHandoverConfirmed(ctx context.Context, event HandoverConfirmed) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// CreateHandoverRequest opens a chain step. ExpectedAmount is only
// honored for shift_collection; later steps inherit the confirmed
// amount of their predecessor.
type CreateHandoverRequest struct {
	TenantID       string  `json:"tenant_id"`
	StationID      string  `json:"station_id"`
	Type           string  `json:"type"`
	FromUserID     string  `json:"from_user_id"`
	ExpectedAmount float64 `json:"expected_amount"`
	Notes          string  `json:"notes"`
}

// ConfirmHandoverRequest settles a pending handover. AcceptAsIs takes
// the expected amount as counted; otherwise ActualAmount is required.
type ConfirmHandoverRequest struct {
	ActualAmount *float64 `json:"actual_amount"`
	AcceptAsIs   bool     `json:"accept_as_is"`
	Notes        string   `json:"notes"`
	ConfirmedBy  string   `json:"confirmed_by"`
}

// RecordBankDepositRequest records the terminal deposit of the chain.
type RecordBankDepositRequest struct {
	TenantID   string  `json:"tenant_id"`
	StationID  string  `json:"station_id"`
	Amount     float64 `json:"amount"`
	Reference  string  `json:"reference"`
	RecordedBy string  `json:"recorded_by"`
}

// ChainService handles custody chain use cases.
type ChainService struct {
	repo      handover.Repository
	resolver  RecipientResolver
	policy    variance.Policy
	publisher HandoverPublisher
	clock     Clock
}

// NewChainService constructs the service.
func NewChainService(
	repo handover.Repository,
	resolver RecipientResolver,
	policy variance.Policy,
	publisher HandoverPublisher,
	clock Clock,
) (*ChainService, error) {
	if repo == nil {
		return nil, errors.New("chain service: nil repository")
	}
	if resolver == nil {
		return nil, errors.New("chain service: nil recipient resolver")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &ChainService{
		repo:      repo,
		resolver:  resolver,
		policy:    policy,
		publisher: publisher,
		clock:     clock,
	}, nil
}

// CreateHandover opens a pending handover, consuming the predecessor
// step when the type requires one.
func (s *ChainService) CreateHandover(ctx context.Context, req CreateHandoverRequest) (*handover.CashHandover, error) {
	t := handover.Type(req.Type)
	if !t.Valid() {
		return nil, handover.ErrInvalidType
	}
	if t == handover.TypeBankDeposit {
		// Bank deposits go through RecordBankDeposit so the amount
		// check happens before anything is written.
		return nil, handover.ErrInvalidType
	}
	if req.StationID == "" {
		return nil, handover.ErrEmptyStationID
	}

	h := &handover.CashHandover{
		ID:         handover.NewID(),
		TenantID:   req.TenantID,
		StationID:  req.StationID,
		Type:       t,
		FromUserID: req.FromUserID,
		Status:     handover.StatusPending,
		Notes:      req.Notes,
		CreatedAt:  s.clock.Now().UTC(),
	}

	if prevType, hasPrev := t.Previous(); hasPrev {
		pred, err := s.repo.FindUnconsumedConfirmed(ctx, req.StationID, prevType)
		if err != nil {
			return nil, err
		}
		if pred == nil || pred.ActualAmount == nil {
			return nil, &handover.SequenceViolationError{Missing: prevType}
		}
		h.PreviousHandoverID = pred.ID
		h.ExpectedAmount = *pred.ActualAmount
		// Expected is inherited from the chain; a caller-supplied amount
		// that disagrees is a mistake, not an override.
		if req.ExpectedAmount != 0 && req.ExpectedAmount != h.ExpectedAmount {
			return nil, handover.ErrExpectedMismatch
		}
		if h.FromUserID == "" {
			h.FromUserID = pred.ToUserID
		}
	} else {
		h.ExpectedAmount = req.ExpectedAmount
	}
	if h.ExpectedAmount < 0 {
		return nil, handover.ErrNegativeAmount
	}

	recipient, err := s.resolver.Resolve(ctx, req.StationID, t)
	if err != nil {
		return nil, err
	}
	h.ToUserID = recipient

	if err := h.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// ConfirmHandover settles a pending handover. Within tolerance the
// handover confirms; beyond it the handover becomes disputed, which is
// a recorded outcome, not an error.
func (s *ChainService) ConfirmHandover(ctx context.Context, id string, req ConfirmHandoverRequest) (*handover.CashHandover, error) {
	if id == "" {
		return nil, handover.ErrEmptyID
	}
	h, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch h.Status {
	case handover.StatusConfirmed:
		return nil, handover.ErrAlreadyConfirmed
	case handover.StatusDisputed:
		return nil, handover.ErrAlreadyDisputed
	}

	now := s.clock.Now().UTC()
	if req.AcceptAsIs {
		actual := h.ExpectedAmount
		h.ActualAmount = &actual
		h.Variance = 0
		h.Status = handover.StatusConfirmed
	} else {
		if req.ActualAmount == nil {
			return nil, handover.ErrActualRequired
		}
		if *req.ActualAmount < 0 {
			return nil, handover.ErrNegativeAmount
		}
		res := variance.Evaluate(h.ExpectedAmount, *req.ActualAmount, s.policy.ForStation(h.StationID))
		h.ActualAmount = req.ActualAmount
		h.Variance = res.Variance
		if res.Status == variance.StatusDisputed {
			h.Status = handover.StatusDisputed
		} else {
			h.Status = handover.StatusConfirmed
		}
	}
	if req.Notes != "" {
		h.Notes = req.Notes
	}
	h.ConfirmedAt = now
	h.ConfirmedBy = req.ConfirmedBy

	if err := s.repo.UpdateConfirmation(ctx, h); err != nil {
		return nil, err
	}
	s.publishConfirmed(ctx, h, now)
	return h, nil
}

// RecordBankDeposit closes the chain. The deposit must match the
// confirmed manager_to_owner amount within tolerance; a mismatch is
// rejected without writing anything.
func (s *ChainService) RecordBankDeposit(ctx context.Context, req RecordBankDepositRequest) (*handover.CashHandover, error) {
	if req.StationID == "" {
		return nil, handover.ErrEmptyStationID
	}
	if req.Amount < 0 {
		return nil, handover.ErrNegativeAmount
	}

	pred, err := s.repo.FindUnconsumedConfirmed(ctx, req.StationID, handover.TypeManagerToOwner)
	if err != nil {
		return nil, err
	}
	if pred == nil || pred.ActualAmount == nil {
		return nil, &handover.SequenceViolationError{Missing: handover.TypeManagerToOwner}
	}

	expected := *pred.ActualAmount
	res := variance.Evaluate(expected, req.Amount, s.policy.ForStation(req.StationID))
	if res.Status == variance.StatusDisputed {
		return nil, &handover.AmountMismatchError{Expected: expected, Actual: req.Amount, Variance: res.Variance}
	}

	recipient, err := s.resolver.Resolve(ctx, req.StationID, handover.TypeBankDeposit)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	amount := req.Amount
	h := &handover.CashHandover{
		ID:                 handover.NewID(),
		TenantID:           req.TenantID,
		StationID:          req.StationID,
		Type:               handover.TypeBankDeposit,
		FromUserID:         pred.ToUserID,
		ToUserID:           recipient,
		ExpectedAmount:     expected,
		ActualAmount:       &amount,
		Variance:           res.Variance,
		Status:             handover.StatusConfirmed,
		PreviousHandoverID: pred.ID,
		Notes:              req.Reference,
		CreatedAt:          now,
		ConfirmedAt:        now,
		ConfirmedBy:        req.RecordedBy,
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, h); err != nil {
		return nil, err
	}
	s.publishConfirmed(ctx, h, now)
	return h, nil
}

// GetHandover loads a handover by id.
func (s *ChainService) GetHandover(ctx context.Context, id string) (*handover.CashHandover, error) {
	if id == "" {
		return nil, handover.ErrEmptyID
	}
	return s.repo.Get(ctx, id)
}

// ListHandovers returns a station's handovers, optionally by status.
func (s *ChainService) ListHandovers(ctx context.Context, tenantID, stationID, status string) ([]handover.CashHandover, error) {
	if stationID == "" {
		return nil, handover.ErrEmptyStationID
	}
	return s.repo.ListByStation(ctx, tenantID, stationID, status)
}

func (s *ChainService) publishConfirmed(ctx context.Context, h *handover.CashHandover, occurredAt time.Time) {
	if s.publisher == nil {
		return
	}
	actual := 0.0
	if h.ActualAmount != nil {
		actual = *h.ActualAmount
	}
	_ = s.publisher.PublishHandoverConfirmed(ctx, HandoverConfirmed{
		HandoverID: h.ID,
		TenantID:   h.TenantID,
		StationID:  h.StationID,
		Type:       string(h.Type),
		Expected:   h.ExpectedAmount,
		Actual:     actual,
		Variance:   h.Variance,
		Status:     h.Status,
		OccurredAt: occurredAt,
	})
}
