package application

import (
	"context"
	"errors"
	"testing"

	handover "forecourt-cloud/internal/handover/domain"
	handovermem "forecourt-cloud/internal/handover/infrastructure/memory"
	"forecourt-cloud/internal/variance"
)

type stubResolver struct{}

func (stubResolver) Resolve(ctx context.Context, stationID string, t handover.Type) (string, error) {
	switch t {
	case handover.TypeShiftCollection, handover.TypeEmployeeToManager:
		return "user-mgr", nil
	case handover.TypeManagerToOwner, handover.TypeBankDeposit:
		return "user-owner", nil
	}
	return "", handover.ErrInvalidType
}

func newChainFixture(t *testing.T) (*ChainService, *handovermem.HandoverRepository) {
	t.Helper()
	repo := handovermem.NewHandoverRepository()
	policy := variance.Policy{Defaults: variance.Thresholds{AbsoluteFloor: 100, PercentOfExpected: 0.02}}
	service, err := NewChainService(repo, stubResolver{}, policy, nil, SystemClock{})
	if err != nil {
		t.Fatalf("new chain service: %v", err)
	}
	return service, repo
}

func floatPtr(v float64) *float64 { return &v }

func openAndConfirm(t *testing.T, service *ChainService, req CreateHandoverRequest, confirm ConfirmHandoverRequest) *handover.CashHandover {
	t.Helper()
	created, err := service.CreateHandover(context.Background(), req)
	if err != nil {
		t.Fatalf("create %s: %v", req.Type, err)
	}
	confirmed, err := service.ConfirmHandover(context.Background(), created.ID, confirm)
	if err != nil {
		t.Fatalf("confirm %s: %v", req.Type, err)
	}
	return confirmed
}

func TestChain_FullCustodyPath(t *testing.T) {
	service, _ := newChainFixture(t)
	ctx := context.Background()

	collection := openAndConfirm(t, service,
		CreateHandoverRequest{TenantID: "tenant-1", StationID: "station-1", Type: "shift_collection", FromUserID: "user-emp", ExpectedAmount: 3900},
		ConfirmHandoverRequest{AcceptAsIs: true, ConfirmedBy: "user-mgr"})
	if collection.Status != handover.StatusConfirmed {
		t.Fatalf("expected confirmed collection, got %s", collection.Status)
	}
	if collection.ToUserID != "user-mgr" {
		t.Fatalf("expected manager recipient, got %s", collection.ToUserID)
	}

	toManager := openAndConfirm(t, service,
		CreateHandoverRequest{TenantID: "tenant-1", StationID: "station-1", Type: "employee_to_manager"},
		ConfirmHandoverRequest{ActualAmount: floatPtr(3850), ConfirmedBy: "user-mgr"})
	if toManager.ExpectedAmount != 3900 {
		t.Fatalf("expected inherited amount 3900, got %v", toManager.ExpectedAmount)
	}
	if toManager.PreviousHandoverID != collection.ID {
		t.Fatalf("expected predecessor %s, got %s", collection.ID, toManager.PreviousHandoverID)
	}
	// variance 50 within floor 100
	if toManager.Status != handover.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", toManager.Status)
	}

	toOwner := openAndConfirm(t, service,
		CreateHandoverRequest{TenantID: "tenant-1", StationID: "station-1", Type: "manager_to_owner"},
		ConfirmHandoverRequest{AcceptAsIs: true, ConfirmedBy: "user-owner"})
	if toOwner.ExpectedAmount != 3850 {
		t.Fatalf("expected inherited amount 3850, got %v", toOwner.ExpectedAmount)
	}

	deposit, err := service.RecordBankDeposit(ctx, RecordBankDepositRequest{
		TenantID: "tenant-1", StationID: "station-1", Amount: 3850, Reference: "slip-001", RecordedBy: "user-owner",
	})
	if err != nil {
		t.Fatalf("record bank deposit: %v", err)
	}
	if deposit.Status != handover.StatusConfirmed {
		t.Fatalf("expected auto-confirmed deposit, got %s", deposit.Status)
	}
	if deposit.PreviousHandoverID != toOwner.ID {
		t.Fatalf("expected deposit to consume %s, got %s", toOwner.ID, deposit.PreviousHandoverID)
	}
	if deposit.ConfirmedAt.IsZero() || deposit.ConfirmedBy != "user-owner" {
		t.Fatalf("expected confirmation stamp, got %+v", deposit)
	}
}

func TestCreateHandover_SequenceViolationWithoutPredecessor(t *testing.T) {
	service, _ := newChainFixture(t)

	_, err := service.CreateHandover(context.Background(), CreateHandoverRequest{
		TenantID: "tenant-1", StationID: "station-1", Type: "employee_to_manager",
	})
	var seq *handover.SequenceViolationError
	if !errors.As(err, &seq) {
		t.Fatalf("expected SequenceViolationError, got %v", err)
	}
	if seq.Missing != handover.TypeShiftCollection {
		t.Fatalf("expected missing shift_collection, got %s", seq.Missing)
	}
}

func TestCreateHandover_PendingPredecessorNotConsumable(t *testing.T) {
	service, _ := newChainFixture(t)

	if _, err := service.CreateHandover(context.Background(), CreateHandoverRequest{
		TenantID: "tenant-1", StationID: "station-1", Type: "shift_collection", FromUserID: "user-emp", ExpectedAmount: 3900,
	}); err != nil {
		t.Fatalf("create collection: %v", err)
	}

	_, err := service.CreateHandover(context.Background(), CreateHandoverRequest{
		TenantID: "tenant-1", StationID: "station-1", Type: "employee_to_manager",
	})
	var seq *handover.SequenceViolationError
	if !errors.As(err, &seq) {
		t.Fatalf("expected SequenceViolationError for pending predecessor, got %v", err)
	}
}

func TestCreateHandover_PredecessorConsumedOnce(t *testing.T) {
	service, _ := newChainFixture(t)

	openAndConfirm(t, service,
		CreateHandoverRequest{TenantID: "tenant-1", StationID: "station-1", Type: "shift_collection", FromUserID: "user-emp", ExpectedAmount: 3900},
		ConfirmHandoverRequest{AcceptAsIs: true, ConfirmedBy: "user-mgr"})

	if _, err := service.CreateHandover(context.Background(), CreateHandoverRequest{
		TenantID: "tenant-1", StationID: "station-1", Type: "employee_to_manager",
	}); err != nil {
		t.Fatalf("first consumer: %v", err)
	}

	_, err := service.CreateHandover(context.Background(), CreateHandoverRequest{
		TenantID: "tenant-1", StationID: "station-1", Type: "employee_to_manager",
	})
	var seq *handover.SequenceViolationError
	if !errors.As(err, &seq) {
		t.Fatalf("expected SequenceViolationError after consumption, got %v", err)
	}
}

func TestCreateHandover_ExpectedMismatchRejected(t *testing.T) {
	service, _ := newChainFixture(t)

	openAndConfirm(t, service,
		CreateHandoverRequest{TenantID: "tenant-1", StationID: "station-1", Type: "shift_collection", FromUserID: "user-emp", ExpectedAmount: 3900},
		ConfirmHandoverRequest{AcceptAsIs: true, ConfirmedBy: "user-mgr"})

	_, err := service.CreateHandover(context.Background(), CreateHandoverRequest{
		TenantID: "tenant-1", StationID: "station-1", Type: "employee_to_manager", ExpectedAmount: 4200,
	})
	if !errors.Is(err, handover.ErrExpectedMismatch) {
		t.Fatalf("expected expected-amount mismatch, got %v", err)
	}

	// Restating the inherited amount is fine.
	created, err := service.CreateHandover(context.Background(), CreateHandoverRequest{
		TenantID: "tenant-1", StationID: "station-1", Type: "employee_to_manager", ExpectedAmount: 3900,
	})
	if err != nil {
		t.Fatalf("create with matching amount: %v", err)
	}
	if created.ExpectedAmount != 3900 {
		t.Fatalf("expected inherited 3900, got %v", created.ExpectedAmount)
	}
}

func TestConfirmHandover_Terminal(t *testing.T) {
	service, _ := newChainFixture(t)

	confirmed := openAndConfirm(t, service,
		CreateHandoverRequest{TenantID: "tenant-1", StationID: "station-1", Type: "shift_collection", FromUserID: "user-emp", ExpectedAmount: 3900},
		ConfirmHandoverRequest{AcceptAsIs: true, ConfirmedBy: "user-mgr"})

	_, err := service.ConfirmHandover(context.Background(), confirmed.ID, ConfirmHandoverRequest{AcceptAsIs: true})
	if !errors.Is(err, handover.ErrAlreadyConfirmed) {
		t.Fatalf("expected already confirmed, got %v", err)
	}
}

func TestConfirmHandover_ActualRequired(t *testing.T) {
	service, _ := newChainFixture(t)

	created, err := service.CreateHandover(context.Background(), CreateHandoverRequest{
		TenantID: "tenant-1", StationID: "station-1", Type: "shift_collection", FromUserID: "user-emp", ExpectedAmount: 3900,
	})
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}

	_, err = service.ConfirmHandover(context.Background(), created.ID, ConfirmHandoverRequest{ConfirmedBy: "user-mgr"})
	if !errors.Is(err, handover.ErrActualRequired) {
		t.Fatalf("expected actual required, got %v", err)
	}
}

func TestConfirmHandover_DisputedBlocksChain(t *testing.T) {
	service, _ := newChainFixture(t)

	disputed := openAndConfirm(t, service,
		CreateHandoverRequest{TenantID: "tenant-1", StationID: "station-1", Type: "shift_collection", FromUserID: "user-emp", ExpectedAmount: 3900},
		ConfirmHandoverRequest{ActualAmount: floatPtr(3500), ConfirmedBy: "user-mgr"})
	if disputed.Status != handover.StatusDisputed {
		t.Fatalf("expected disputed, got %s", disputed.Status)
	}

	_, err := service.CreateHandover(context.Background(), CreateHandoverRequest{
		TenantID: "tenant-1", StationID: "station-1", Type: "employee_to_manager",
	})
	var seq *handover.SequenceViolationError
	if !errors.As(err, &seq) {
		t.Fatalf("expected SequenceViolationError behind dispute, got %v", err)
	}

	_, err = service.ConfirmHandover(context.Background(), disputed.ID, ConfirmHandoverRequest{AcceptAsIs: true})
	if !errors.Is(err, handover.ErrAlreadyDisputed) {
		t.Fatalf("expected already disputed, got %v", err)
	}
}

func TestRecordBankDeposit_MismatchRejectedWithoutWrite(t *testing.T) {
	service, repo := newChainFixture(t)

	openAndConfirm(t, service,
		CreateHandoverRequest{TenantID: "tenant-1", StationID: "station-1", Type: "shift_collection", FromUserID: "user-emp", ExpectedAmount: 10000},
		ConfirmHandoverRequest{AcceptAsIs: true, ConfirmedBy: "user-mgr"})
	openAndConfirm(t, service,
		CreateHandoverRequest{TenantID: "tenant-1", StationID: "station-1", Type: "employee_to_manager"},
		ConfirmHandoverRequest{AcceptAsIs: true, ConfirmedBy: "user-mgr"})
	openAndConfirm(t, service,
		CreateHandoverRequest{TenantID: "tenant-1", StationID: "station-1", Type: "manager_to_owner"},
		ConfirmHandoverRequest{AcceptAsIs: true, ConfirmedBy: "user-owner"})

	// tolerance max(100, 200) = 200; short by 500
	_, err := service.RecordBankDeposit(context.Background(), RecordBankDepositRequest{
		TenantID: "tenant-1", StationID: "station-1", Amount: 9500, RecordedBy: "user-owner",
	})
	var mismatch *handover.AmountMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected AmountMismatchError, got %v", err)
	}
	if mismatch.Expected != 10000 || mismatch.Actual != 9500 {
		t.Fatalf("unexpected mismatch payload: %+v", mismatch)
	}

	deposits, err := repo.ListByStation(context.Background(), "tenant-1", "station-1", "")
	if err != nil {
		t.Fatalf("list handovers: %v", err)
	}
	for _, h := range deposits {
		if h.Type == handover.TypeBankDeposit {
			t.Fatalf("expected no deposit persisted, found %s", h.ID)
		}
	}

	// A matching retry still succeeds: the predecessor stayed unconsumed.
	if _, err := service.RecordBankDeposit(context.Background(), RecordBankDepositRequest{
		TenantID: "tenant-1", StationID: "station-1", Amount: 9900, RecordedBy: "user-owner",
	}); err != nil {
		t.Fatalf("record matching deposit: %v", err)
	}
}

func TestRecordBankDeposit_RequiresChainHead(t *testing.T) {
	service, _ := newChainFixture(t)

	_, err := service.RecordBankDeposit(context.Background(), RecordBankDepositRequest{
		TenantID: "tenant-1", StationID: "station-1", Amount: 100, RecordedBy: "user-owner",
	})
	var seq *handover.SequenceViolationError
	if !errors.As(err, &seq) {
		t.Fatalf("expected SequenceViolationError, got %v", err)
	}
	if seq.Missing != handover.TypeManagerToOwner {
		t.Fatalf("expected missing manager_to_owner, got %s", seq.Missing)
	}
}
