package application

import (
	"context"
	"errors"
	"testing"
	"time"

	readings "forecourt-cloud/internal/readings/domain"
	readingsmem "forecourt-cloud/internal/readings/infrastructure/memory"
	"forecourt-cloud/internal/readings/infrastructure/pricing"
)

type stubClock struct {
	now time.Time
}

func (c *stubClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestService(t *testing.T, price float64) (*LedgerService, *readingsmem.ReadingRepository) {
	t.Helper()
	repo := readingsmem.NewReadingRepository()
	clock := &stubClock{now: time.Date(2026, time.March, 10, 6, 0, 0, 0, time.UTC)}
	service, err := NewLedgerService(repo, pricing.FixedPriceProvider{Price: price}, clock)
	if err != nil {
		t.Fatalf("new ledger service: %v", err)
	}
	return service, repo
}

func TestRecordReading_FirstReadingEstablishesBaseline(t *testing.T) {
	service, _ := newTestService(t, 100)

	resp, err := service.RecordReading(context.Background(), RecordReadingRequest{
		TenantID:    "tenant-1",
		StationID:   "station-1",
		NozzleID:    "nozzle-1",
		ReadingDate: "2026-03-10",
		MeterValue:  5000,
		CashAmount:  0,
		RecordedBy:  "user-emp",
	})
	if err != nil {
		t.Fatalf("record first reading: %v", err)
	}
	if resp.LitresSold != 0 {
		t.Fatalf("expected zero litres on baseline, got %v", resp.LitresSold)
	}
	if resp.Value != 0 {
		t.Fatalf("expected zero value on baseline, got %v", resp.Value)
	}
}

func TestRecordReading_DerivesLitresAndValue(t *testing.T) {
	service, _ := newTestService(t, 100)
	ctx := context.Background()

	if _, err := service.RecordReading(ctx, RecordReadingRequest{
		TenantID:    "tenant-1",
		StationID:   "station-1",
		NozzleID:    "nozzle-1",
		ReadingDate: "2026-03-10",
		MeterValue:  5000,
		RecordedBy:  "user-emp",
	}); err != nil {
		t.Fatalf("record baseline: %v", err)
	}

	resp, err := service.RecordReading(ctx, RecordReadingRequest{
		TenantID:     "tenant-1",
		StationID:    "station-1",
		NozzleID:     "nozzle-1",
		ReadingDate:  "2026-03-10",
		MeterValue:   5040,
		CashAmount:   3900,
		OnlineAmount: 100,
		RecordedBy:   "user-emp",
	})
	if err != nil {
		t.Fatalf("record second reading: %v", err)
	}
	if resp.LitresSold != 40 {
		t.Fatalf("expected 40 litres, got %v", resp.LitresSold)
	}
	if resp.Value != 4000 {
		t.Fatalf("expected value 4000, got %v", resp.Value)
	}
}

func TestRecordReading_MeterRegressionRejected(t *testing.T) {
	service, _ := newTestService(t, 100)
	ctx := context.Background()

	if _, err := service.RecordReading(ctx, RecordReadingRequest{
		TenantID:    "tenant-1",
		StationID:   "station-1",
		NozzleID:    "nozzle-1",
		ReadingDate: "2026-03-10",
		MeterValue:  5000,
		RecordedBy:  "user-emp",
	}); err != nil {
		t.Fatalf("record baseline: %v", err)
	}

	_, err := service.RecordReading(ctx, RecordReadingRequest{
		TenantID:    "tenant-1",
		StationID:   "station-1",
		NozzleID:    "nozzle-1",
		ReadingDate: "2026-03-10",
		MeterValue:  4990,
		RecordedBy:  "user-emp",
	})
	if !errors.Is(err, readings.ErrMeterRegression) {
		t.Fatalf("expected meter regression error, got %v", err)
	}
}

func TestRecordReading_RejectsNegativeAmounts(t *testing.T) {
	service, _ := newTestService(t, 100)

	_, err := service.RecordReading(context.Background(), RecordReadingRequest{
		TenantID:    "tenant-1",
		StationID:   "station-1",
		NozzleID:    "nozzle-1",
		ReadingDate: "2026-03-10",
		MeterValue:  5000,
		CashAmount:  -1,
		RecordedBy:  "user-emp",
	})
	if !errors.Is(err, readings.ErrNegativeAmount) {
		t.Fatalf("expected negative amount error, got %v", err)
	}
}

func TestListUnlinked_AggregatesTotals(t *testing.T) {
	service, _ := newTestService(t, 100)
	ctx := context.Background()

	base := []RecordReadingRequest{
		{TenantID: "tenant-1", StationID: "station-1", NozzleID: "nozzle-1", ReadingDate: "2026-03-10", MeterValue: 5000, RecordedBy: "user-emp"},
		{TenantID: "tenant-1", StationID: "station-1", NozzleID: "nozzle-2", ReadingDate: "2026-03-10", MeterValue: 8000, RecordedBy: "user-emp"},
		{TenantID: "tenant-1", StationID: "station-1", NozzleID: "nozzle-1", ReadingDate: "2026-03-10", MeterValue: 5040, CashAmount: 3900, OnlineAmount: 100, RecordedBy: "user-emp"},
		{TenantID: "tenant-1", StationID: "station-1", NozzleID: "nozzle-2", ReadingDate: "2026-03-10", MeterValue: 8020, CashAmount: 1800, CreditAmount: 200, RecordedBy: "user-emp"},
	}
	for _, req := range base {
		if _, err := service.RecordReading(ctx, req); err != nil {
			t.Fatalf("record %s: %v", req.NozzleID, err)
		}
	}

	date, _ := ParseBusinessDate("2026-03-10")
	view, err := service.ListUnlinked(ctx, "station-1", date)
	if err != nil {
		t.Fatalf("list unlinked: %v", err)
	}
	if len(view.Readings) != 4 {
		t.Fatalf("expected 4 readings, got %d", len(view.Readings))
	}
	if view.Totals.Litres != 60 {
		t.Fatalf("expected 60 litres total, got %v", view.Totals.Litres)
	}
	if view.Totals.Value != 6000 {
		t.Fatalf("expected value total 6000, got %v", view.Totals.Value)
	}
	if view.Totals.Cash != 5700 {
		t.Fatalf("expected cash total 5700, got %v", view.Totals.Cash)
	}
	if view.Totals.Online != 100 || view.Totals.Credit != 200 {
		t.Fatalf("unexpected channel totals: %+v", view.Totals)
	}
}

func TestParseBusinessDate(t *testing.T) {
	date, err := ParseBusinessDate("2026-03-10")
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	if !date.Equal(time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date: %v", date)
	}
	if _, err := ParseBusinessDate("10-03-2026"); err == nil {
		t.Fatalf("expected error for bad layout")
	}
}
