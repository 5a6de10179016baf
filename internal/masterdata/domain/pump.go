package masterdata

import (
	"errors"
	"time"
)

// Pump represents a dispenser unit at a station.
type Pump struct {
	ID        string
	StationID string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks pump invariants.
func (p Pump) Validate() error {
	if p.ID == "" {
		return errors.New("pump: empty id")
	}
	if p.StationID == "" {
		return errors.New("pump: empty station id")
	}
	if p.Name == "" {
		return errors.New("pump: empty name")
	}
	return nil
}

// Nozzle represents a single dispensing nozzle on a pump. Meter readings
// are recorded per nozzle; the fuel type determines the applicable price.
type Nozzle struct {
	ID        string
	PumpID    string
	StationID string
	FuelType  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks nozzle invariants.
func (n Nozzle) Validate() error {
	if n.ID == "" {
		return errors.New("nozzle: empty id")
	}
	if n.PumpID == "" {
		return errors.New("nozzle: empty pump id")
	}
	if n.StationID == "" {
		return errors.New("nozzle: empty station id")
	}
	if n.FuelType == "" {
		return errors.New("nozzle: empty fuel type")
	}
	return nil
}
