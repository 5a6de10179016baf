package handover

import (
	"errors"
	"fmt"
)

var (
	// ErrNilHandover is returned when saving a nil handover.
	ErrNilHandover = errors.New("handover: nil handover")
	// ErrEmptyID is returned when handover id is empty.
	ErrEmptyID = errors.New("handover: empty id")
	// ErrEmptyTenantID is returned when tenant id is empty.
	ErrEmptyTenantID = errors.New("handover: empty tenant id")
	// ErrEmptyStationID is returned when station id is empty.
	ErrEmptyStationID = errors.New("handover: empty station id")
	// ErrEmptyParticipant is returned when either party is missing.
	ErrEmptyParticipant = errors.New("handover: empty participant")
	// ErrInvalidType is returned for an unknown chain step.
	ErrInvalidType = errors.New("handover: invalid type")
	// ErrInvalidStatus is returned for an unknown status.
	ErrInvalidStatus = errors.New("handover: invalid status")
	// ErrNegativeAmount is returned when an amount is negative.
	ErrNegativeAmount = errors.New("handover: negative amount")
	// ErrActualRequired is returned when a confirmation carries no
	// counted amount and does not accept as-is.
	ErrActualRequired = errors.New("handover: actual amount required")
	// ErrExpectedMismatch is returned when a caller supplies an expected
	// amount that differs from the predecessor's confirmed actual.
	ErrExpectedMismatch = errors.New("handover: expected amount differs from predecessor actual")
	// ErrAlreadyConfirmed is returned when confirming twice.
	ErrAlreadyConfirmed = errors.New("handover: already confirmed")
	// ErrAlreadyDisputed is returned when acting on a disputed handover.
	ErrAlreadyDisputed = errors.New("handover: already disputed")
	// ErrNotFound is returned when a handover does not exist.
	ErrNotFound = errors.New("handover: not found")
)

// SequenceViolationError reports a chain step attempted without an
// unconsumed confirmed predecessor.
type SequenceViolationError struct {
	Missing Type
}

func (e *SequenceViolationError) Error() string {
	return fmt.Sprintf("handover: no unconsumed confirmed %s available", e.Missing)
}

// AmountMismatchError reports a bank deposit whose amount deviates from
// the confirmed predecessor beyond tolerance.
type AmountMismatchError struct {
	Expected float64
	Actual   float64
	Variance float64
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("handover: deposit amount %.2f deviates from expected %.2f by %.2f", e.Actual, e.Expected, e.Variance)
}
