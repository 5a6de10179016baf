package readings

import "errors"

var (
	// ErrEmptyID is returned when reading id is empty.
	ErrEmptyID = errors.New("readings: empty id")
	// ErrEmptyTenantID is returned when tenant id is empty.
	ErrEmptyTenantID = errors.New("readings: empty tenant id")
	// ErrEmptyStationID is returned when station id is empty.
	ErrEmptyStationID = errors.New("readings: empty station id")
	// ErrEmptyNozzleID is returned when nozzle id is empty.
	ErrEmptyNozzleID = errors.New("readings: empty nozzle id")
	// ErrInvalidDate is returned when the reading date is zero.
	ErrInvalidDate = errors.New("readings: invalid reading date")
	// ErrNegativeMeter is returned when the meter value is negative.
	ErrNegativeMeter = errors.New("readings: negative meter value")
	// ErrNegativeAmount is returned when a collected amount is negative.
	ErrNegativeAmount = errors.New("readings: negative amount")
	// ErrMeterRegression is returned when a meter value is below the
	// previous recorded value for the same nozzle.
	ErrMeterRegression = errors.New("readings: meter value below previous reading")
	// ErrNotFound is returned when a reading does not exist.
	ErrNotFound = errors.New("readings: not found")
	// ErrUnknownPrice is returned when no fuel price covers the date.
	ErrUnknownPrice = errors.New("readings: no price for fuel type on date")
)
