package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	masterdata "forecourt-cloud/internal/masterdata/domain"
)

const (
	defaultPumpsTable   = "pumps"
	defaultNozzlesTable = "nozzles"
)

// NozzleRepository is a Postgres implementation for pumps and nozzles.
type NozzleRepository struct {
	db          DBTX
	pumpsTable  string
	nozzleTable string
}

// NewNozzleRepository constructs a repository.
func NewNozzleRepository(db DBTX) *NozzleRepository {
	return &NozzleRepository{
		db:          db,
		pumpsTable:  defaultPumpsTable,
		nozzleTable: defaultNozzlesTable,
	}
}

// GetNozzle loads a nozzle by id.
func (r *NozzleRepository) GetNozzle(ctx context.Context, id string) (*masterdata.Nozzle, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("nozzle repo: nil db")
	}
	if id == "" {
		return nil, errors.New("nozzle repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, pump_id, station_id, fuel_type, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.nozzleTable)

	var nozzle masterdata.Nozzle
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&nozzle.ID,
		&nozzle.PumpID,
		&nozzle.StationID,
		&nozzle.FuelType,
		&nozzle.CreatedAt,
		&nozzle.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &nozzle, nil
}

// ListNozzles returns all nozzles for a station.
func (r *NozzleRepository) ListNozzles(ctx context.Context, stationID string) ([]masterdata.Nozzle, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("nozzle repo: nil db")
	}
	if stationID == "" {
		return nil, errors.New("nozzle repo: empty station id")
	}

	query := fmt.Sprintf(`
SELECT id, pump_id, station_id, fuel_type, created_at, updated_at
FROM %s
WHERE station_id = $1
ORDER BY id`, r.nozzleTable)

	rows, err := r.db.QueryContext(ctx, query, stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []masterdata.Nozzle
	for rows.Next() {
		var nozzle masterdata.Nozzle
		if err := rows.Scan(
			&nozzle.ID,
			&nozzle.PumpID,
			&nozzle.StationID,
			&nozzle.FuelType,
			&nozzle.CreatedAt,
			&nozzle.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, nozzle)
	}
	return out, rows.Err()
}

// SavePump upserts a pump.
func (r *NozzleRepository) SavePump(ctx context.Context, pump *masterdata.Pump) error {
	if r == nil || r.db == nil {
		return errors.New("nozzle repo: nil db")
	}
	if pump == nil {
		return errors.New("nozzle repo: nil pump")
	}
	if err := pump.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, station_id, name)
VALUES ($1, $2, $3)
ON CONFLICT (id)
DO UPDATE SET
	station_id = EXCLUDED.station_id,
	name = EXCLUDED.name,
	updated_at = NOW()`, r.pumpsTable)

	_, err := r.db.ExecContext(ctx, query, pump.ID, pump.StationID, pump.Name)
	return err
}

// SaveNozzle upserts a nozzle.
func (r *NozzleRepository) SaveNozzle(ctx context.Context, nozzle *masterdata.Nozzle) error {
	if r == nil || r.db == nil {
		return errors.New("nozzle repo: nil db")
	}
	if nozzle == nil {
		return errors.New("nozzle repo: nil nozzle")
	}
	if err := nozzle.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, pump_id, station_id, fuel_type)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id)
DO UPDATE SET
	pump_id = EXCLUDED.pump_id,
	station_id = EXCLUDED.station_id,
	fuel_type = EXCLUDED.fuel_type,
	updated_at = NOW()`, r.nozzleTable)

	_, err := r.db.ExecContext(ctx, query, nozzle.ID, nozzle.PumpID, nozzle.StationID, nozzle.FuelType)
	return err
}
