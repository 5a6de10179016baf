package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	readings "forecourt-cloud/internal/readings/domain"
	readingsmem "forecourt-cloud/internal/readings/infrastructure/memory"
	settlement "forecourt-cloud/internal/settlement/domain"
	settlementmem "forecourt-cloud/internal/settlement/infrastructure/memory"
	"forecourt-cloud/internal/variance"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []SettlementCreated
}

func (p *capturePublisher) PublishSettlementCreated(ctx context.Context, event SettlementCreated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func defaultPolicy() variance.Policy {
	return variance.Policy{Defaults: variance.Thresholds{AbsoluteFloor: 100, PercentOfExpected: 0.02}}
}

func seedReading(t *testing.T, repo *readingsmem.ReadingRepository, id string, value, cash, online, credit float64) {
	t.Helper()
	err := repo.Insert(context.Background(), &readings.Reading{
		ID:           id,
		TenantID:     "tenant-1",
		StationID:    "station-1",
		NozzleID:     "nozzle-1",
		ReadingDate:  time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
		MeterValue:   5040,
		LitresSold:   40,
		Value:        value,
		CashAmount:   cash,
		OnlineAmount: online,
		CreditAmount: credit,
		RecordedBy:   "user-emp",
		CreatedAt:    time.Date(2026, time.March, 10, 6, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("seed reading %s: %v", id, err)
	}
}

func newSettlementFixture(t *testing.T) (*SettlementService, *readingsmem.ReadingRepository, *settlementmem.SettlementRepository, *capturePublisher) {
	t.Helper()
	readingRepo := readingsmem.NewReadingRepository()
	repo := settlementmem.NewSettlementRepository(readingRepo)
	pub := &capturePublisher{}
	service, err := NewSettlementService(repo, readingRepo, defaultPolicy(), pub, SystemClock{})
	if err != nil {
		t.Fatalf("new settlement service: %v", err)
	}
	return service, readingRepo, repo, pub
}

func TestCreateSettlement_MatchedWithinTolerance(t *testing.T) {
	service, readingRepo, _, pub := newSettlementFixture(t)
	seedReading(t, readingRepo, "rdg-1", 4000, 0, 0, 0)

	record, err := service.CreateSettlement(context.Background(), CreateSettlementRequest{
		TenantID:     "tenant-1",
		StationID:    "station-1",
		BusinessDate: "2026-03-10",
		ReadingIDs:   []string{"rdg-1"},
		ActualCash:   3900,
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
	if record.Status != settlement.StatusMatched {
		t.Fatalf("expected matched, got %s", record.Status)
	}
	if len(pub.events) != 1 || pub.events[0].SettlementID != record.ID {
		t.Fatalf("expected one published event for %s", record.ID)
	}

	stored, err := readingRepo.Get(context.Background(), "rdg-1")
	if err != nil {
		t.Fatalf("get reading: %v", err)
	}
	if stored.SettlementID != record.ID {
		t.Fatalf("expected reading linked to %s, got %q", record.ID, stored.SettlementID)
	}
}

func TestCreateSettlement_DisputedBeyondTolerance(t *testing.T) {
	service, readingRepo, _, _ := newSettlementFixture(t)
	seedReading(t, readingRepo, "rdg-1", 10000, 0, 0, 0)

	record, err := service.CreateSettlement(context.Background(), CreateSettlementRequest{
		TenantID:     "tenant-1",
		StationID:    "station-1",
		BusinessDate: "2026-03-10",
		ReadingIDs:   []string{"rdg-1"},
		ActualCash:   9500,
		CreatedBy:    "user-mgr",
	})
	if err != nil {
		t.Fatalf("create settlement: %v", err)
	}
	// tolerance max(100, 200) = 200, variance 500
	if record.Status != settlement.StatusDisputed {
		t.Fatalf("expected disputed, got %s", record.Status)
	}
}

func TestCreateSettlement_ExpectedCashIsResidual(t *testing.T) {
	service, readingRepo, _, _ := newSettlementFixture(t)
	seedReading(t, readingRepo, "rdg-1", 4000, 3700, 200, 100)

	record, err := service.CreateSettlement(context.Background(), CreateSettlementRequest{
		TenantID:     "tenant-1",
		StationID:    "station-1",
		BusinessDate: "2026-03-10",
		ReadingIDs:   []string{"rdg-1"},
		ActualCash:   3700,
		ActualOnline: 200,
		ActualCredit: 100,
		CreatedBy:    "user-mgr",
	})
	if err != nil {
		t.Fatalf("create settlement: %v", err)
	}
	if record.Expected.Cash != 3700 {
		t.Fatalf("expected residual cash 3700, got %v", record.Expected.Cash)
	}
	if record.Status != settlement.StatusMatched {
		t.Fatalf("expected matched, got %s", record.Status)
	}
}

func TestCreateSettlement_AlreadyLinkedNamesReadings(t *testing.T) {
	service, readingRepo, _, _ := newSettlementFixture(t)
	seedReading(t, readingRepo, "rdg-1", 4000, 0, 0, 0)

	req := CreateSettlementRequest{
		TenantID:     "tenant-1",
		StationID:    "station-1",
		BusinessDate: "2026-03-10",
		ReadingIDs:   []string{"rdg-1"},
		ActualCash:   4000,
		CreatedBy:    "user-mgr",
	}
	if _, err := service.CreateSettlement(context.Background(), req); err != nil {
		t.Fatalf("first settlement: %v", err)
	}

	_, err := service.CreateSettlement(context.Background(), req)
	var linked *settlement.AlreadyLinkedError
	if !errors.As(err, &linked) {
		t.Fatalf("expected AlreadyLinkedError, got %v", err)
	}
	if len(linked.ReadingIDs) != 1 || linked.ReadingIDs[0] != "rdg-1" {
		t.Fatalf("expected conflict on rdg-1, got %v", linked.ReadingIDs)
	}
}

func TestCreateSettlement_ReadingMismatch(t *testing.T) {
	service, readingRepo, _, _ := newSettlementFixture(t)
	seedReading(t, readingRepo, "rdg-1", 4000, 0, 0, 0)

	_, err := service.CreateSettlement(context.Background(), CreateSettlementRequest{
		TenantID:     "tenant-1",
		StationID:    "station-1",
		BusinessDate: "2026-03-10",
		ReadingIDs:   []string{"rdg-1", "rdg-ghost"},
		ActualCash:   4000,
		CreatedBy:    "user-mgr",
	})
	var mismatch *settlement.ReadingMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected ReadingMismatchError, got %v", err)
	}
	if len(mismatch.ReadingIDs) != 1 || mismatch.ReadingIDs[0] != "rdg-ghost" {
		t.Fatalf("expected mismatch on rdg-ghost, got %v", mismatch.ReadingIDs)
	}

	// And a reading from another station is out of scope too.
	_ = readingRepo.Insert(context.Background(), &readings.Reading{
		ID:          "rdg-other",
		TenantID:    "tenant-1",
		StationID:   "station-2",
		NozzleID:    "nozzle-9",
		ReadingDate: time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
		MeterValue:  100,
		RecordedBy:  "user-emp",
		CreatedAt:   time.Now().UTC(),
	})
	_, err = service.CreateSettlement(context.Background(), CreateSettlementRequest{
		TenantID:     "tenant-1",
		StationID:    "station-1",
		BusinessDate: "2026-03-10",
		ReadingIDs:   []string{"rdg-other"},
		ActualCash:   0,
		CreatedBy:    "user-mgr",
	})
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected ReadingMismatchError for foreign station, got %v", err)
	}
}

func TestCreateSettlement_EmptyReadingSet(t *testing.T) {
	service, _, _, _ := newSettlementFixture(t)
	_, err := service.CreateSettlement(context.Background(), CreateSettlementRequest{
		TenantID:     "tenant-1",
		StationID:    "station-1",
		BusinessDate: "2026-03-10",
		ActualCash:   0,
	})
	if !errors.Is(err, settlement.ErrEmptyReadingSet) {
		t.Fatalf("expected empty reading set error, got %v", err)
	}
}

func TestCreateSettlement_LastFinalWins(t *testing.T) {
	service, readingRepo, repo, _ := newSettlementFixture(t)
	seedReading(t, readingRepo, "rdg-1", 4000, 0, 0, 0)
	seedReading(t, readingRepo, "rdg-2", 2000, 0, 0, 0)

	first, err := service.CreateSettlement(context.Background(), CreateSettlementRequest{
		TenantID:     "tenant-1",
		StationID:    "station-1",
		BusinessDate: "2026-03-10",
		ReadingIDs:   []string{"rdg-1"},
		ActualCash:   4000,
		IsFinal:      true,
		CreatedBy:    "user-mgr",
	})
	if err != nil {
		t.Fatalf("first final: %v", err)
	}

	second, err := service.CreateSettlement(context.Background(), CreateSettlementRequest{
		TenantID:     "tenant-1",
		StationID:    "station-1",
		BusinessDate: "2026-03-10",
		ReadingIDs:   []string{"rdg-2"},
		ActualCash:   2000,
		IsFinal:      true,
		CreatedBy:    "user-mgr",
	})
	if err != nil {
		t.Fatalf("second final: %v", err)
	}

	date := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	final, err := repo.FindFinal(context.Background(), "station-1", date)
	if err != nil {
		t.Fatalf("find final: %v", err)
	}
	if final == nil || final.ID != second.ID {
		t.Fatalf("expected %s final, got %+v", second.ID, final)
	}

	demoted, err := repo.Get(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("get demoted: %v", err)
	}
	if demoted.IsFinal {
		t.Fatalf("expected first settlement demoted")
	}
}

func TestCreateSettlement_ConcurrentClaimExactlyOneWins(t *testing.T) {
	service, readingRepo, _, _ := newSettlementFixture(t)
	seedReading(t, readingRepo, "rdg-1", 4000, 0, 0, 0)

	req := CreateSettlementRequest{
		TenantID:     "tenant-1",
		StationID:    "station-1",
		BusinessDate: "2026-03-10",
		ReadingIDs:   []string{"rdg-1"},
		ActualCash:   4000,
		CreatedBy:    "user-mgr",
	}

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.CreateSettlement(context.Background(), req)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		var linked *settlement.AlreadyLinkedError
		if !errors.As(err, &linked) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}
