package readings

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Reading is one append-only meter reading for a nozzle. It carries the
// meter value at shift end plus the amounts collected per payment
// channel. SettlementID stays empty until a settlement claims the
// reading; a claimed reading is never unlinked again.
type Reading struct {
	ID           string
	TenantID     string
	StationID    string
	NozzleID     string
	ReadingDate  time.Time
	MeterValue   float64
	LitresSold   float64
	Value        float64
	CashAmount   float64
	OnlineAmount float64
	CreditAmount float64
	SettlementID string
	RecordedBy   string
	CreatedAt    time.Time
}

// Linked reports whether the reading has been claimed by a settlement.
func (r Reading) Linked() bool {
	return r.SettlementID != ""
}

// Validate checks reading invariants.
func (r Reading) Validate() error {
	if r.ID == "" {
		return ErrEmptyID
	}
	if r.TenantID == "" {
		return ErrEmptyTenantID
	}
	if r.StationID == "" {
		return ErrEmptyStationID
	}
	if r.NozzleID == "" {
		return ErrEmptyNozzleID
	}
	if r.ReadingDate.IsZero() {
		return ErrInvalidDate
	}
	if r.MeterValue < 0 {
		return ErrNegativeMeter
	}
	if r.CashAmount < 0 || r.OnlineAmount < 0 || r.CreditAmount < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// LinkedReading is a reading annotated with its owning settlement.
type LinkedReading struct {
	Reading
	SettlementDate  time.Time
	SettlementFinal bool
}

// Totals aggregates a set of readings per channel.
type Totals struct {
	Litres float64
	Value  float64
	Cash   float64
	Online float64
	Credit float64
}

// Aggregate sums readings into channel totals.
func Aggregate(list []Reading) Totals {
	var totals Totals
	for _, r := range list {
		totals.Litres += r.LitresSold
		totals.Value += r.Value
		totals.Cash += r.CashAmount
		totals.Online += r.OnlineAmount
		totals.Credit += r.CreditAmount
	}
	return totals
}

// NormalizeDate truncates a timestamp to its UTC business date.
func NormalizeDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NewID generates a random reading id.
func NewID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return "rdg-" + hex.EncodeToString(buf)
}
