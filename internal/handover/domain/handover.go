package handover

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Type identifies a step in the custody chain. Cash moves from the
// forecourt to the bank strictly in this order; each step except the
// first consumes exactly one confirmed predecessor.
type Type string

// Chain steps in custody order.
const (
	TypeShiftCollection   Type = "shift_collection"
	TypeEmployeeToManager Type = "employee_to_manager"
	TypeManagerToOwner    Type = "manager_to_owner"
	TypeBankDeposit       Type = "bank_deposit"
)

// Previous returns the predecessor step, if any.
func (t Type) Previous() (Type, bool) {
	switch t {
	case TypeEmployeeToManager:
		return TypeShiftCollection, true
	case TypeManagerToOwner:
		return TypeEmployeeToManager, true
	case TypeBankDeposit:
		return TypeManagerToOwner, true
	default:
		return "", false
	}
}

// Valid reports whether the type is a known chain step.
func (t Type) Valid() bool {
	switch t {
	case TypeShiftCollection, TypeEmployeeToManager, TypeManagerToOwner, TypeBankDeposit:
		return true
	}
	return false
}

// Handover statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusDisputed  = "disputed"
)

// CashHandover is one custody transfer of cash. ActualAmount stays nil
// until the recipient confirms; confirmed and disputed are terminal.
type CashHandover struct {
	ID                 string
	TenantID           string
	StationID          string
	Type               Type
	FromUserID         string
	ToUserID           string
	ExpectedAmount     float64
	ActualAmount       *float64
	Variance           float64
	Status             string
	PreviousHandoverID string
	Notes              string
	CreatedAt          time.Time
	ConfirmedAt        time.Time
	ConfirmedBy        string
}

// Validate checks handover invariants.
func (h *CashHandover) Validate() error {
	if h == nil {
		return ErrNilHandover
	}
	if h.ID == "" {
		return ErrEmptyID
	}
	if h.TenantID == "" {
		return ErrEmptyTenantID
	}
	if h.StationID == "" {
		return ErrEmptyStationID
	}
	if !h.Type.Valid() {
		return ErrInvalidType
	}
	if h.FromUserID == "" || h.ToUserID == "" {
		return ErrEmptyParticipant
	}
	if h.ExpectedAmount < 0 {
		return ErrNegativeAmount
	}
	if h.ActualAmount != nil && *h.ActualAmount < 0 {
		return ErrNegativeAmount
	}
	switch h.Status {
	case StatusPending, StatusConfirmed, StatusDisputed:
	default:
		return ErrInvalidStatus
	}
	if _, hasPrev := h.Type.Previous(); hasPrev && h.PreviousHandoverID == "" {
		return &SequenceViolationError{Missing: mustPrevious(h.Type)}
	}
	return nil
}

// Terminal reports whether the handover can no longer change.
func (h *CashHandover) Terminal() bool {
	return h.Status == StatusConfirmed || h.Status == StatusDisputed
}

func mustPrevious(t Type) Type {
	prev, _ := t.Previous()
	return prev
}

// NewID generates a random handover id.
func NewID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return "ho-" + hex.EncodeToString(buf)
}
