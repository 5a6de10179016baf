package memory

import (
	"context"
	"sort"
	"sync"

	handover "forecourt-cloud/internal/handover/domain"
)

// HandoverRepository is an in-memory handover store for tests and local
// runs. One mutex covers both the rows and predecessor consumption so
// concurrent chain steps serialize the same way the database does.
type HandoverRepository struct {
	mu   sync.RWMutex
	byID map[string]handover.CashHandover
}

// NewHandoverRepository constructs an empty repository.
func NewHandoverRepository() *HandoverRepository {
	return &HandoverRepository{byID: make(map[string]handover.CashHandover)}
}

// Create inserts a handover.
func (r *HandoverRepository) Create(ctx context.Context, h *handover.CashHandover) error {
	if h == nil {
		return handover.ErrNilHandover
	}
	if err := h.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h.PreviousHandoverID != "" {
		for _, existing := range r.byID {
			if existing.PreviousHandoverID == h.PreviousHandoverID {
				prev, _ := h.Type.Previous()
				return &handover.SequenceViolationError{Missing: prev}
			}
		}
	}
	r.byID[h.ID] = cloneHandover(*h)
	return nil
}

// Get loads a handover by id.
func (r *HandoverRepository) Get(ctx context.Context, id string) (*handover.CashHandover, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byID[id]
	if !ok {
		return nil, handover.ErrNotFound
	}
	clone := cloneHandover(h)
	return &clone, nil
}

// UpdateConfirmation applies a terminal status to a pending handover.
func (r *HandoverRepository) UpdateConfirmation(ctx context.Context, h *handover.CashHandover) error {
	if h == nil || h.ID == "" {
		return handover.ErrEmptyID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[h.ID]
	if !ok {
		return handover.ErrNotFound
	}
	switch current.Status {
	case handover.StatusConfirmed:
		return handover.ErrAlreadyConfirmed
	case handover.StatusDisputed:
		return handover.ErrAlreadyDisputed
	}
	r.byID[h.ID] = cloneHandover(*h)
	return nil
}

// FindUnconsumedConfirmed returns the latest confirmed handover of the
// given type at the station that no later step has consumed, or nil.
func (r *HandoverRepository) FindUnconsumedConfirmed(ctx context.Context, stationID string, t handover.Type) (*handover.CashHandover, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	consumed := make(map[string]bool)
	for _, h := range r.byID {
		if h.PreviousHandoverID != "" {
			consumed[h.PreviousHandoverID] = true
		}
	}

	var best *handover.CashHandover
	for _, h := range r.byID {
		if h.StationID != stationID || h.Type != t || h.Status != handover.StatusConfirmed {
			continue
		}
		if consumed[h.ID] {
			continue
		}
		if best == nil || h.ConfirmedAt.After(best.ConfirmedAt) {
			clone := cloneHandover(h)
			best = &clone
		}
	}
	return best, nil
}

// ListByStation returns a station's handovers, newest first, optionally
// filtered by status.
func (r *HandoverRepository) ListByStation(ctx context.Context, tenantID, stationID, status string) ([]handover.CashHandover, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []handover.CashHandover
	for _, h := range r.byID {
		if h.TenantID != tenantID || h.StationID != stationID {
			continue
		}
		if status != "" && h.Status != status {
			continue
		}
		out = append(out, cloneHandover(h))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func cloneHandover(h handover.CashHandover) handover.CashHandover {
	if h.ActualAmount != nil {
		value := *h.ActualAmount
		h.ActualAmount = &value
	}
	return h
}
