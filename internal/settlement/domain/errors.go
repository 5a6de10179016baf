package settlement

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNilSettlement is returned when saving a nil settlement.
	ErrNilSettlement = errors.New("settlement: nil settlement")
	// ErrEmptyID is returned when settlement id is empty.
	ErrEmptyID = errors.New("settlement: empty id")
	// ErrEmptyTenantID is returned when tenant id is empty.
	ErrEmptyTenantID = errors.New("settlement: empty tenant id")
	// ErrEmptyStationID is returned when station id is empty.
	ErrEmptyStationID = errors.New("settlement: empty station id")
	// ErrInvalidBusinessDate is returned when the business date is zero.
	ErrInvalidBusinessDate = errors.New("settlement: invalid business date")
	// ErrEmptyReadingSet is returned when no readings are claimed.
	ErrEmptyReadingSet = errors.New("settlement: empty reading set")
	// ErrNegativeActual is returned when a counted amount is negative.
	ErrNegativeActual = errors.New("settlement: negative actual amount")
	// ErrInvalidStatus is returned for an unknown variance status.
	ErrInvalidStatus = errors.New("settlement: invalid status")
	// ErrNotFound is returned when a settlement does not exist.
	ErrNotFound = errors.New("settlement: not found")
	// ErrFinalConflict is returned when a concurrent request finalized
	// the same station and date first.
	ErrFinalConflict = errors.New("settlement: concurrent final settlement")
)

// AlreadyLinkedError reports readings that another settlement claimed.
type AlreadyLinkedError struct {
	ReadingIDs []string
}

func (e *AlreadyLinkedError) Error() string {
	return fmt.Sprintf("settlement: readings already linked: %s", strings.Join(e.ReadingIDs, ","))
}

// ReadingMismatchError reports readings that are unknown or do not
// belong to the settlement's station and business date.
type ReadingMismatchError struct {
	ReadingIDs []string
}

func (e *ReadingMismatchError) Error() string {
	return fmt.Sprintf("settlement: readings unknown or out of scope: %s", strings.Join(e.ReadingIDs, ","))
}
