package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	masterdata "forecourt-cloud/internal/masterdata/domain"
)

// StationRepository is an in-memory station store for tests and local runs.
type StationRepository struct {
	mu       sync.RWMutex
	stations map[string]masterdata.Station
}

// NewStationRepository constructs an empty repository.
func NewStationRepository() *StationRepository {
	return &StationRepository{stations: make(map[string]masterdata.Station)}
}

// Get loads a station by id.
func (r *StationRepository) Get(ctx context.Context, id string) (*masterdata.Station, error) {
	if id == "" {
		return nil, errors.New("station repo: empty id")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	station, ok := r.stations[id]
	if !ok {
		return nil, nil
	}
	clone := station
	return &clone, nil
}

// Save upserts a station.
func (r *StationRepository) Save(ctx context.Context, station *masterdata.Station) error {
	if station == nil {
		return errors.New("station repo: nil station")
	}
	if err := station.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	stored := *station
	if existing, ok := r.stations[station.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	r.stations[station.ID] = stored
	return nil
}
