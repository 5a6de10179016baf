package readings

import (
	"context"
	"time"
)

// Repository manages reading persistence. Readings are append-only;
// the only mutation ever applied is stamping the settlement id.
type Repository interface {
	Insert(ctx context.Context, reading *Reading) error
	Get(ctx context.Context, id string) (*Reading, error)
	GetByIDs(ctx context.Context, ids []string) ([]Reading, error)
	LatestForNozzle(ctx context.Context, nozzleID string, before time.Time) (*Reading, error)
	ListUnlinked(ctx context.Context, stationID string, date time.Time) ([]Reading, error)
	ListLinked(ctx context.Context, stationID string, date time.Time) ([]LinkedReading, error)
}
