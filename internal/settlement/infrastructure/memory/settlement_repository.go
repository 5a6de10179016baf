package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	readingsmem "forecourt-cloud/internal/readings/infrastructure/memory"
	settlement "forecourt-cloud/internal/settlement/domain"
)

// SettlementRepository is an in-memory settlement store. It claims
// readings through the in-memory reading ledger so the unlinked set and
// the settlements stay consistent under one lock ordering.
type SettlementRepository struct {
	mu       sync.RWMutex
	byID     map[string]settlement.Settlement
	readings *readingsmem.ReadingRepository
}

// NewSettlementRepository constructs a repository backed by the given
// reading ledger.
func NewSettlementRepository(readings *readingsmem.ReadingRepository) *SettlementRepository {
	return &SettlementRepository{
		byID:     make(map[string]settlement.Settlement),
		readings: readings,
	}
}

// CreateAndClaim claims the readings and stores the settlement.
func (r *SettlementRepository) CreateAndClaim(ctx context.Context, s *settlement.Settlement) error {
	if s == nil {
		return settlement.ErrNilSettlement
	}
	if err := s.Validate(); err != nil {
		return err
	}
	if r.readings == nil {
		return errors.New("settlement repo: nil reading ledger")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, conflicts, err := r.readings.ClaimForSettlement(ctx, s.ReadingIDs, s.ID)
	if err != nil {
		return &settlement.ReadingMismatchError{ReadingIDs: conflicts}
	}
	if len(conflicts) > 0 {
		return &settlement.AlreadyLinkedError{ReadingIDs: conflicts}
	}

	if s.IsFinal {
		for id, existing := range r.byID {
			if existing.StationID == s.StationID && existing.BusinessDate.Equal(s.BusinessDate) && existing.IsFinal {
				existing.IsFinal = false
				existing.UpdatedAt = s.UpdatedAt
				r.byID[id] = existing
				r.readings.NoteSettlement(existing.ID, existing.BusinessDate, false)
			}
		}
	}

	r.byID[s.ID] = *s
	r.readings.NoteSettlement(s.ID, s.BusinessDate, s.IsFinal)
	return nil
}

// Get loads a settlement by id.
func (r *SettlementRepository) Get(ctx context.Context, id string) (*settlement.Settlement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, settlement.ErrNotFound
	}
	clone := s
	clone.ReadingIDs = append([]string(nil), s.ReadingIDs...)
	return &clone, nil
}

// ListByStationDate returns settlements for a station and date, newest
// first.
func (r *SettlementRepository) ListByStationDate(ctx context.Context, tenantID, stationID string, date time.Time) ([]settlement.Settlement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []settlement.Settlement
	for _, s := range r.byID {
		if s.TenantID == tenantID && s.StationID == stationID && s.BusinessDate.Equal(date) {
			clone := s
			clone.ReadingIDs = append([]string(nil), s.ReadingIDs...)
			out = append(out, clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// FindFinal returns the final settlement for a station and date, or nil.
func (r *SettlementRepository) FindFinal(ctx context.Context, stationID string, date time.Time) (*settlement.Settlement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.byID {
		if s.StationID == stationID && s.BusinessDate.Equal(date) && s.IsFinal {
			clone := s
			clone.ReadingIDs = append([]string(nil), s.ReadingIDs...)
			return &clone, nil
		}
	}
	return nil, nil
}
