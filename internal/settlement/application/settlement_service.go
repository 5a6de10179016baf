package application

import (
	"context"
	"errors"
	"time"

	readings "forecourt-cloud/internal/readings/domain"
	settlement "forecourt-cloud/internal/settlement/domain"
	"forecourt-cloud/internal/variance"
)

// SettlementCreated is emitted when a settlement is created.
type SettlementCreated struct {
	SettlementID string    `json:"settlement_id"`
	TenantID     string    `json:"tenant_id"`
	StationID    string    `json:"station_id"`
	BusinessDate time.Time `json:"business_date"`
	ExpectedCash float64   `json:"expected_cash"`
	ActualCash   float64   `json:"actual_cash"`
	VarianceCash float64   `json:"variance_cash"`
	Status       string    `json:"status"`
	IsFinal      bool      `json:"is_final"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// SettlementPublisher emits settlement created events.
type SettlementPublisher interface {
	PublishSettlementCreated(ctx context.Context, event SettlementCreated) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// CreateSettlementRequest carries a settlement submission. Any variance
// or status supplied by the client is ignored; the verdict is always
// recomputed here from the claimed readings.
type CreateSettlementRequest struct {
	TenantID     string   `json:"tenant_id"`
	StationID    string   `json:"station_id"`
	BusinessDate string   `json:"business_date"`
	ReadingIDs   []string `json:"reading_ids"`
	ActualCash   float64  `json:"actual_cash"`
	ActualOnline float64  `json:"actual_online"`
	ActualCredit float64  `json:"actual_credit"`
	IsFinal      bool     `json:"is_final"`
	Notes        string   `json:"notes"`
	CreatedBy    string   `json:"created_by"`
}

// SettlementService handles settlement use cases.
type SettlementService struct {
	repo      settlement.Repository
	readings  readings.Repository
	policy    variance.Policy
	publisher SettlementPublisher
	clock     Clock
}

// NewSettlementService constructs the service.
func NewSettlementService(
	repo settlement.Repository,
	readingRepo readings.Repository,
	policy variance.Policy,
	publisher SettlementPublisher,
	clock Clock,
) (*SettlementService, error) {
	if repo == nil {
		return nil, errors.New("settlement service: nil repository")
	}
	if readingRepo == nil {
		return nil, errors.New("settlement service: nil reading repository")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &SettlementService{
		repo:      repo,
		readings:  readingRepo,
		policy:    policy,
		publisher: publisher,
		clock:     clock,
	}, nil
}

// CreateSettlement claims the given readings, recomputes expected
// amounts and variance, and stores the settlement.
func (s *SettlementService) CreateSettlement(ctx context.Context, req CreateSettlementRequest) (*settlement.Settlement, error) {
	if req.StationID == "" {
		return nil, settlement.ErrEmptyStationID
	}
	if len(req.ReadingIDs) == 0 {
		return nil, settlement.ErrEmptyReadingSet
	}
	date, err := parseBusinessDate(req.BusinessDate)
	if err != nil {
		return nil, err
	}
	actual := settlement.ChannelAmounts{Cash: req.ActualCash, Online: req.ActualOnline, Credit: req.ActualCredit}
	if actual.Negative() {
		return nil, settlement.ErrNegativeActual
	}

	claimed, err := s.readings.GetByIDs(ctx, req.ReadingIDs)
	if err != nil {
		return nil, err
	}
	if err := checkReadingScope(req, date, claimed); err != nil {
		return nil, err
	}

	totals := readings.Aggregate(claimed)
	// Cash is the residual of metered sales value after the traceable
	// channels; online and credit expectations are what the readings
	// reported for those channels.
	expected := settlement.ChannelAmounts{
		Cash:   totals.Value - totals.Online - totals.Credit,
		Online: totals.Online,
		Credit: totals.Credit,
	}

	th := s.policy.ForStation(req.StationID)
	cash := variance.Evaluate(expected.Cash, actual.Cash, th)
	online := variance.Evaluate(expected.Online, actual.Online, th)
	credit := variance.Evaluate(expected.Credit, actual.Credit, th)

	status := settlement.StatusMatched
	if cash.Status == variance.StatusDisputed ||
		online.Status == variance.StatusDisputed ||
		credit.Status == variance.StatusDisputed {
		status = settlement.StatusDisputed
	}

	now := s.clock.Now().UTC()
	record := &settlement.Settlement{
		ID:           settlement.NewID(),
		TenantID:     req.TenantID,
		StationID:    req.StationID,
		BusinessDate: date,
		Expected:     expected,
		Actual:       actual,
		Variance:     settlement.ChannelAmounts{Cash: cash.Variance, Online: online.Variance, Credit: credit.Variance},
		LitresTotal:  totals.Litres,
		Status:       status,
		IsFinal:      req.IsFinal,
		Notes:        req.Notes,
		CreatedBy:    req.CreatedBy,
		ReadingIDs:   append([]string(nil), req.ReadingIDs...),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.CreateAndClaim(ctx, record); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		_ = s.publisher.PublishSettlementCreated(ctx, SettlementCreated{
			SettlementID: record.ID,
			TenantID:     record.TenantID,
			StationID:    record.StationID,
			BusinessDate: record.BusinessDate,
			ExpectedCash: record.Expected.Cash,
			ActualCash:   record.Actual.Cash,
			VarianceCash: record.Variance.Cash,
			Status:       record.Status,
			IsFinal:      record.IsFinal,
			OccurredAt:   now,
		})
	}

	return record, nil
}

// GetSettlement loads a settlement by id.
func (s *SettlementService) GetSettlement(ctx context.Context, id string) (*settlement.Settlement, error) {
	if id == "" {
		return nil, settlement.ErrEmptyID
	}
	return s.repo.Get(ctx, id)
}

// ListSettlements returns settlements for a station and date.
func (s *SettlementService) ListSettlements(ctx context.Context, tenantID, stationID string, date time.Time) ([]settlement.Settlement, error) {
	if stationID == "" {
		return nil, settlement.ErrEmptyStationID
	}
	return s.repo.ListByStationDate(ctx, tenantID, stationID, normalizeDate(date))
}

func checkReadingScope(req CreateSettlementRequest, date time.Time, claimed []readings.Reading) error {
	byID := make(map[string]readings.Reading, len(claimed))
	for _, r := range claimed {
		byID[r.ID] = r
	}

	var mismatched []string
	var linked []string
	for _, id := range req.ReadingIDs {
		r, ok := byID[id]
		if !ok || r.StationID != req.StationID || !r.ReadingDate.Equal(date) {
			mismatched = append(mismatched, id)
			continue
		}
		if r.Linked() {
			linked = append(linked, id)
		}
	}
	if len(mismatched) > 0 {
		return &settlement.ReadingMismatchError{ReadingIDs: mismatched}
	}
	if len(linked) > 0 {
		return &settlement.AlreadyLinkedError{ReadingIDs: linked}
	}
	return nil
}

const businessDateLayout = "2006-01-02"

func parseBusinessDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, settlement.ErrInvalidBusinessDate
	}
	date, err := time.Parse(businessDateLayout, value)
	if err != nil {
		return time.Time{}, settlement.ErrInvalidBusinessDate
	}
	return normalizeDate(date), nil
}

func normalizeDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
