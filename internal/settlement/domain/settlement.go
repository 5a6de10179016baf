package settlement

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Settlement statuses.
const (
	StatusMatched  = "matched"
	StatusDisputed = "disputed"
)

// ChannelAmounts holds per-payment-channel money amounts.
type ChannelAmounts struct {
	Cash   float64 `json:"cash"`
	Online float64 `json:"online"`
	Credit float64 `json:"credit"`
}

// Total sums all channels.
func (c ChannelAmounts) Total() float64 {
	return c.Cash + c.Online + c.Credit
}

// Negative reports whether any channel is negative.
func (c ChannelAmounts) Negative() bool {
	return c.Cash < 0 || c.Online < 0 || c.Credit < 0
}

// Settlement reconciles one station day. Expected amounts derive from
// the claimed meter readings; actual amounts are what the manager
// counted. The variance is recomputed server-side and the stored status
// is the verdict. At most one settlement per station and business date
// is final; finalizing a new one demotes the previous final.
type Settlement struct {
	ID           string
	TenantID     string
	StationID    string
	BusinessDate time.Time
	Expected     ChannelAmounts
	Actual       ChannelAmounts
	Variance     ChannelAmounts
	LitresTotal  float64
	Status       string
	IsFinal      bool
	Notes        string
	CreatedBy    string
	ReadingIDs   []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate checks settlement invariants.
func (s *Settlement) Validate() error {
	if s == nil {
		return ErrNilSettlement
	}
	if s.ID == "" {
		return ErrEmptyID
	}
	if s.TenantID == "" {
		return ErrEmptyTenantID
	}
	if s.StationID == "" {
		return ErrEmptyStationID
	}
	if s.BusinessDate.IsZero() {
		return ErrInvalidBusinessDate
	}
	if len(s.ReadingIDs) == 0 {
		return ErrEmptyReadingSet
	}
	if s.Actual.Negative() {
		return ErrNegativeActual
	}
	if s.Status != StatusMatched && s.Status != StatusDisputed {
		return ErrInvalidStatus
	}
	return nil
}

// NewID generates a random settlement id.
func NewID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return "stl-" + hex.EncodeToString(buf)
}
