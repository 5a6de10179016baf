package settlement

import (
	"context"
	"time"
)

// Repository manages settlement persistence.
//
// CreateAndClaim atomically verifies the claimed readings are still
// unlinked, stamps them with the settlement id, and inserts the
// settlement. When the settlement is final it demotes any previous
// final settlement of the same station and date in the same step. A
// lost race surfaces as AlreadyLinkedError.
type Repository interface {
	CreateAndClaim(ctx context.Context, s *Settlement) error
	Get(ctx context.Context, id string) (*Settlement, error)
	ListByStationDate(ctx context.Context, tenantID, stationID string, date time.Time) ([]Settlement, error)
	FindFinal(ctx context.Context, stationID string, date time.Time) (*Settlement, error)
}
