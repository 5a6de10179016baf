package application

import (
	"context"
	"errors"
	"time"

	readings "forecourt-cloud/internal/readings/domain"
)

// PriceProvider returns the unit price applicable to a nozzle on a
// business date.
type PriceProvider interface {
	PriceOn(ctx context.Context, stationID, nozzleID string, date time.Time) (float64, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// RecordReadingRequest carries a reading submission.
type RecordReadingRequest struct {
	TenantID     string  `json:"tenant_id"`
	StationID    string  `json:"station_id"`
	NozzleID     string  `json:"nozzle_id"`
	ReadingDate  string  `json:"reading_date"`
	MeterValue   float64 `json:"meter_value"`
	CashAmount   float64 `json:"cash_amount"`
	OnlineAmount float64 `json:"online_amount"`
	CreditAmount float64 `json:"credit_amount"`
	RecordedBy   string  `json:"recorded_by"`
}

// RecordReadingResponse returns the stored reading with derived values.
type RecordReadingResponse struct {
	ReadingID   string  `json:"reading_id"`
	StationID   string  `json:"station_id"`
	NozzleID    string  `json:"nozzle_id"`
	ReadingDate string  `json:"reading_date"`
	MeterValue  float64 `json:"meter_value"`
	LitresSold  float64 `json:"litres_sold"`
	UnitPrice   float64 `json:"unit_price"`
	Value       float64 `json:"value"`
}

// LedgerView is a list of readings with their aggregate totals.
type LedgerView struct {
	Readings []readings.Reading `json:"readings"`
	Totals   readings.Totals    `json:"totals"`
}

// LinkedView is a list of linked readings with their aggregate totals.
type LinkedView struct {
	Readings []readings.LinkedReading `json:"readings"`
	Totals   readings.Totals          `json:"totals"`
}

// LedgerService handles the append-only reading ledger use cases.
type LedgerService struct {
	repo   readings.Repository
	prices PriceProvider
	clock  Clock
}

// NewLedgerService constructs the service.
func NewLedgerService(repo readings.Repository, prices PriceProvider, clock Clock) (*LedgerService, error) {
	if repo == nil {
		return nil, errors.New("ledger service: nil repository")
	}
	if prices == nil {
		return nil, errors.New("ledger service: nil price provider")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &LedgerService{repo: repo, prices: prices, clock: clock}, nil
}

// RecordReading appends a meter reading. Litres sold are derived from
// the previous reading of the same nozzle; the first reading of a
// nozzle establishes the meter baseline and sells zero litres.
func (s *LedgerService) RecordReading(ctx context.Context, req RecordReadingRequest) (*RecordReadingResponse, error) {
	date, err := ParseBusinessDate(req.ReadingDate)
	if err != nil {
		return nil, err
	}

	reading := readings.Reading{
		ID:           readings.NewID(),
		TenantID:     req.TenantID,
		StationID:    req.StationID,
		NozzleID:     req.NozzleID,
		ReadingDate:  date,
		MeterValue:   req.MeterValue,
		CashAmount:   req.CashAmount,
		OnlineAmount: req.OnlineAmount,
		CreditAmount: req.CreditAmount,
		RecordedBy:   req.RecordedBy,
		CreatedAt:    s.clock.Now().UTC(),
	}
	if err := reading.Validate(); err != nil {
		return nil, err
	}

	previous, err := s.repo.LatestForNozzle(ctx, req.NozzleID, reading.CreatedAt)
	if err != nil {
		return nil, err
	}
	if previous != nil {
		if req.MeterValue < previous.MeterValue {
			return nil, readings.ErrMeterRegression
		}
		reading.LitresSold = req.MeterValue - previous.MeterValue
	}

	price, err := s.prices.PriceOn(ctx, req.StationID, req.NozzleID, date)
	if err != nil {
		return nil, err
	}
	reading.Value = reading.LitresSold * price

	if err := s.repo.Insert(ctx, &reading); err != nil {
		return nil, err
	}

	return &RecordReadingResponse{
		ReadingID:   reading.ID,
		StationID:   reading.StationID,
		NozzleID:    reading.NozzleID,
		ReadingDate: date.Format(BusinessDateLayout),
		MeterValue:  reading.MeterValue,
		LitresSold:  reading.LitresSold,
		UnitPrice:   price,
		Value:       reading.Value,
	}, nil
}

// ListUnlinked returns readings not yet claimed by any settlement.
func (s *LedgerService) ListUnlinked(ctx context.Context, stationID string, date time.Time) (*LedgerView, error) {
	if stationID == "" {
		return nil, readings.ErrEmptyStationID
	}
	list, err := s.repo.ListUnlinked(ctx, stationID, readings.NormalizeDate(date))
	if err != nil {
		return nil, err
	}
	return &LedgerView{Readings: list, Totals: readings.Aggregate(list)}, nil
}

// ListLinked returns readings already claimed by a settlement,
// annotated with the owning settlement.
func (s *LedgerService) ListLinked(ctx context.Context, stationID string, date time.Time) (*LinkedView, error) {
	if stationID == "" {
		return nil, readings.ErrEmptyStationID
	}
	list, err := s.repo.ListLinked(ctx, stationID, readings.NormalizeDate(date))
	if err != nil {
		return nil, err
	}
	plain := make([]readings.Reading, 0, len(list))
	for _, lr := range list {
		plain = append(plain, lr.Reading)
	}
	return &LinkedView{Readings: list, Totals: readings.Aggregate(plain)}, nil
}

// BusinessDateLayout is the wire format for business dates.
const BusinessDateLayout = "2006-01-02"

// ParseBusinessDate parses a YYYY-MM-DD business date into UTC midnight.
func ParseBusinessDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, readings.ErrInvalidDate
	}
	date, err := time.Parse(BusinessDateLayout, value)
	if err != nil {
		return time.Time{}, readings.ErrInvalidDate
	}
	return readings.NormalizeDate(date), nil
}
