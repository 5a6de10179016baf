package directory

import (
	"context"
	"errors"
	"fmt"

	handover "forecourt-cloud/internal/handover/domain"
	masterdata "forecourt-cloud/internal/masterdata/domain"
)

// StationResolver resolves handover recipients from station
// assignments: collection steps go to the manager, the later steps to
// the owner.
type StationResolver struct {
	stations masterdata.StationRepository
}

// NewStationResolver constructs a resolver.
func NewStationResolver(stations masterdata.StationRepository) (*StationResolver, error) {
	if stations == nil {
		return nil, errors.New("directory resolver: nil station repository")
	}
	return &StationResolver{stations: stations}, nil
}

// Resolve returns the recipient user id for a chain step.
func (r *StationResolver) Resolve(ctx context.Context, stationID string, t handover.Type) (string, error) {
	station, err := r.stations.Get(ctx, stationID)
	if err != nil {
		return "", err
	}
	if station == nil {
		return "", fmt.Errorf("directory resolver: unknown station %s", stationID)
	}
	switch t {
	case handover.TypeShiftCollection, handover.TypeEmployeeToManager:
		return station.ManagerUserID, nil
	case handover.TypeManagerToOwner, handover.TypeBankDeposit:
		return station.OwnerUserID, nil
	default:
		return "", handover.ErrInvalidType
	}
}
