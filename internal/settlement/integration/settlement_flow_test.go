package integration_test

import (
	"context"
	"testing"

	readingsapp "forecourt-cloud/internal/readings/application"
	readingsmem "forecourt-cloud/internal/readings/infrastructure/memory"
	"forecourt-cloud/internal/readings/infrastructure/pricing"
	settlementapp "forecourt-cloud/internal/settlement/application"
	settlement "forecourt-cloud/internal/settlement/domain"
	settlementmem "forecourt-cloud/internal/settlement/infrastructure/memory"
	"forecourt-cloud/internal/variance"
)

// Covers a full station day on the in-memory stack: meter readings are
// appended to the ledger, claimed by a final settlement, and the ledger
// views flip from unlinked to linked.
func TestDailySettlementFlow(t *testing.T) {
	ctx := context.Background()

	readingRepo := readingsmem.NewReadingRepository()
	ledger, err := readingsapp.NewLedgerService(readingRepo, pricing.FixedPriceProvider{Price: 100}, nil)
	if err != nil {
		t.Fatalf("new ledger service: %v", err)
	}

	settlementRepo := settlementmem.NewSettlementRepository(readingRepo)
	policy := variance.Policy{Defaults: variance.Thresholds{AbsoluteFloor: 100, PercentOfExpected: 0.02}}
	settlements, err := settlementapp.NewSettlementService(settlementRepo, readingRepo, policy, nil, nil)
	if err != nil {
		t.Fatalf("new settlement service: %v", err)
	}

	baseline, err := ledger.RecordReading(ctx, readingsapp.RecordReadingRequest{
		TenantID: "tenant-1", StationID: "station-1", NozzleID: "nozzle-1",
		ReadingDate: "2026-08-25", MeterValue: 1000, RecordedBy: "user-emp",
	})
	if err != nil {
		t.Fatalf("record baseline: %v", err)
	}
	if baseline.LitresSold != 0 || baseline.Value != 0 {
		t.Fatalf("expected zero-sale baseline, got %+v", baseline)
	}

	sale, err := ledger.RecordReading(ctx, readingsapp.RecordReadingRequest{
		TenantID: "tenant-1", StationID: "station-1", NozzleID: "nozzle-1",
		ReadingDate: "2026-08-25", MeterValue: 1040, RecordedBy: "user-emp",
	})
	if err != nil {
		t.Fatalf("record sale: %v", err)
	}
	if sale.LitresSold != 40 || sale.Value != 4000 {
		t.Fatalf("expected 40 litres worth 4000, got %+v", sale)
	}

	date, err := readingsapp.ParseBusinessDate("2026-08-25")
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}

	unlinked, err := ledger.ListUnlinked(ctx, "station-1", date)
	if err != nil {
		t.Fatalf("list unlinked: %v", err)
	}
	if len(unlinked.Readings) != 2 || unlinked.Totals.Value != 4000 {
		t.Fatalf("expected 2 unlinked readings totalling 4000, got %d / %v", len(unlinked.Readings), unlinked.Totals.Value)
	}

	record, err := settlements.CreateSettlement(ctx, settlementapp.CreateSettlementRequest{
		TenantID:     "tenant-1",
		StationID:    "station-1",
		BusinessDate: "2026-08-25",
		ReadingIDs:   []string{baseline.ReadingID, sale.ReadingID},
		ActualCash:   3900,
		IsFinal:      true,
		CreatedBy:    "user-mgr",
	})
	if err != nil {
		t.Fatalf("create settlement: %v", err)
	}
	if record.Expected.Cash != 4000 {
		t.Fatalf("expected cash 4000, got %v", record.Expected.Cash)
	}
	if record.Variance.Cash != 100 {
		t.Fatalf("expected variance 100, got %v", record.Variance.Cash)
	}
	// tolerance max(100, 80) = 100, so a 100 shortfall still matches
	if record.Status != settlement.StatusMatched {
		t.Fatalf("expected matched, got %s", record.Status)
	}

	unlinked, err = ledger.ListUnlinked(ctx, "station-1", date)
	if err != nil {
		t.Fatalf("list unlinked after claim: %v", err)
	}
	if len(unlinked.Readings) != 0 {
		t.Fatalf("expected empty unlinked set, got %d", len(unlinked.Readings))
	}

	linked, err := ledger.ListLinked(ctx, "station-1", date)
	if err != nil {
		t.Fatalf("list linked: %v", err)
	}
	if len(linked.Readings) != 2 {
		t.Fatalf("expected 2 linked readings, got %d", len(linked.Readings))
	}
	for _, lr := range linked.Readings {
		if lr.SettlementID != record.ID {
			t.Fatalf("expected link to %s, got %s", record.ID, lr.SettlementID)
		}
		if !lr.SettlementFinal {
			t.Fatal("expected linked readings to carry the final flag")
		}
	}

	final, err := settlementRepo.FindFinal(ctx, "station-1", date)
	if err != nil {
		t.Fatalf("find final: %v", err)
	}
	if final == nil || final.ID != record.ID {
		t.Fatalf("expected final settlement %s, got %+v", record.ID, final)
	}
}
