package directory

import (
	"context"
	"testing"

	handover "forecourt-cloud/internal/handover/domain"
	masterdata "forecourt-cloud/internal/masterdata/domain"
	masterdatamem "forecourt-cloud/internal/masterdata/infrastructure/memory"
)

func newResolverFixture(t *testing.T) *StationResolver {
	t.Helper()
	stations := masterdatamem.NewStationRepository()
	err := stations.Save(context.Background(), &masterdata.Station{
		ID:            "station-1",
		TenantID:      "tenant-1",
		Name:          "North Forecourt",
		Timezone:      "UTC",
		ManagerUserID: "user-mgr",
		OwnerUserID:   "user-owner",
	})
	if err != nil {
		t.Fatalf("save station: %v", err)
	}
	resolver, err := NewStationResolver(stations)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	return resolver
}

func TestResolve_ByChainStep(t *testing.T) {
	resolver := newResolverFixture(t)

	cases := []struct {
		step handover.Type
		want string
	}{
		{handover.TypeShiftCollection, "user-mgr"},
		{handover.TypeEmployeeToManager, "user-mgr"},
		{handover.TypeManagerToOwner, "user-owner"},
		{handover.TypeBankDeposit, "user-owner"},
	}
	for _, tc := range cases {
		got, err := resolver.Resolve(context.Background(), "station-1", tc.step)
		if err != nil {
			t.Fatalf("resolve %s: %v", tc.step, err)
		}
		if got != tc.want {
			t.Fatalf("resolve %s: expected %s, got %s", tc.step, tc.want, got)
		}
	}
}

func TestResolve_UnknownStation(t *testing.T) {
	resolver := newResolverFixture(t)

	if _, err := resolver.Resolve(context.Background(), "station-missing", handover.TypeShiftCollection); err == nil {
		t.Fatal("expected error for unknown station")
	}
}

func TestNewStationResolver_NilRepository(t *testing.T) {
	if _, err := NewStationResolver(nil); err == nil {
		t.Fatal("expected error for nil station repository")
	}
}
