package masterdata

import (
	"context"
	"errors"
	"time"
)

// Station represents a fuel station in masterdata.
// Each station has exactly one manager and one owner assigned; the handover
// chain resolves its recipients from these assignments.
type Station struct {
	ID            string
	TenantID      string
	Name          string
	Timezone      string
	Region        string
	ManagerUserID string
	OwnerUserID   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks station invariants.
func (s Station) Validate() error {
	if s.ID == "" {
		return errors.New("station: empty id")
	}
	if s.TenantID == "" {
		return errors.New("station: empty tenant id")
	}
	if s.Name == "" {
		return errors.New("station: empty name")
	}
	if s.Timezone == "" {
		return errors.New("station: empty timezone")
	}
	if s.ManagerUserID == "" {
		return errors.New("station: empty manager user id")
	}
	if s.OwnerUserID == "" {
		return errors.New("station: empty owner user id")
	}
	return nil
}

// StationRepository manages station persistence.
type StationRepository interface {
	Get(ctx context.Context, id string) (*Station, error)
	Save(ctx context.Context, station *Station) error
}
