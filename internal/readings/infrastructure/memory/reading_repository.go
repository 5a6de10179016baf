package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	readings "forecourt-cloud/internal/readings/domain"
)

// ReadingRepository is an in-memory reading ledger for tests and local
// runs. Settlement linkage is annotated through NoteSettlement so that
// ListLinked can report the owning settlement without a database join.
type ReadingRepository struct {
	mu          sync.RWMutex
	byID        map[string]readings.Reading
	settlements map[string]settlementInfo
}

type settlementInfo struct {
	date    time.Time
	isFinal bool
}

// NewReadingRepository constructs an empty repository.
func NewReadingRepository() *ReadingRepository {
	return &ReadingRepository{
		byID:        make(map[string]readings.Reading),
		settlements: make(map[string]settlementInfo),
	}
}

// Insert appends a reading.
func (r *ReadingRepository) Insert(ctx context.Context, reading *readings.Reading) error {
	if reading == nil {
		return readings.ErrEmptyID
	}
	if err := reading.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[reading.ID] = *reading
	return nil
}

// Get loads a reading by id.
func (r *ReadingRepository) Get(ctx context.Context, id string) (*readings.Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reading, ok := r.byID[id]
	if !ok {
		return nil, readings.ErrNotFound
	}
	clone := reading
	return &clone, nil
}

// GetByIDs loads readings by id set; missing ids are skipped.
func (r *ReadingRepository) GetByIDs(ctx context.Context, ids []string) ([]readings.Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []readings.Reading
	for _, id := range ids {
		if reading, ok := r.byID[id]; ok {
			out = append(out, reading)
		}
	}
	return out, nil
}

// LatestForNozzle returns the most recent reading for a nozzle created
// before the given instant, or nil when the nozzle has no history.
func (r *ReadingRepository) LatestForNozzle(ctx context.Context, nozzleID string, before time.Time) (*readings.Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *readings.Reading
	for _, reading := range r.byID {
		if reading.NozzleID != nozzleID || !reading.CreatedAt.Before(before) {
			continue
		}
		if latest == nil || reading.CreatedAt.After(latest.CreatedAt) {
			clone := reading
			latest = &clone
		}
	}
	return latest, nil
}

// ListUnlinked returns unclaimed readings for a station and date.
func (r *ReadingRepository) ListUnlinked(ctx context.Context, stationID string, date time.Time) ([]readings.Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []readings.Reading
	for _, reading := range r.byID {
		if reading.StationID == stationID && reading.ReadingDate.Equal(date) && !reading.Linked() {
			out = append(out, reading)
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

// ListLinked returns claimed readings for a station and date.
func (r *ReadingRepository) ListLinked(ctx context.Context, stationID string, date time.Time) ([]readings.LinkedReading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var plain []readings.Reading
	for _, reading := range r.byID {
		if reading.StationID == stationID && reading.ReadingDate.Equal(date) && reading.Linked() {
			plain = append(plain, reading)
		}
	}
	sortByCreatedAt(plain)
	out := make([]readings.LinkedReading, 0, len(plain))
	for _, reading := range plain {
		lr := readings.LinkedReading{Reading: reading}
		if info, ok := r.settlements[reading.SettlementID]; ok {
			lr.SettlementDate = info.date
			lr.SettlementFinal = info.isFinal
		}
		out = append(out, lr)
	}
	return out, nil
}

// ClaimForSettlement atomically stamps the settlement id on the given
// readings. When any reading is already linked, nothing is stamped and
// the ids of the conflicting readings are returned.
func (r *ReadingRepository) ClaimForSettlement(ctx context.Context, ids []string, settlementID string) ([]readings.Reading, []string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var conflicts []string
	var missing []string
	for _, id := range ids {
		reading, ok := r.byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		if reading.Linked() {
			conflicts = append(conflicts, id)
		}
	}
	if len(missing) > 0 {
		return nil, missing, readings.ErrNotFound
	}
	if len(conflicts) > 0 {
		return nil, conflicts, nil
	}

	claimed := make([]readings.Reading, 0, len(ids))
	for _, id := range ids {
		reading := r.byID[id]
		reading.SettlementID = settlementID
		r.byID[id] = reading
		claimed = append(claimed, reading)
	}
	return claimed, nil, nil
}

// NoteSettlement records settlement metadata for linked-view lookups.
func (r *ReadingRepository) NoteSettlement(settlementID string, date time.Time, isFinal bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settlements[settlementID] = settlementInfo{date: date, isFinal: isFinal}
}

func sortByCreatedAt(list []readings.Reading) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}
