package cache

import (
	"testing"
	"time"

	"github.com/wattbuy/planengine/internal/estimate"
)

func TestMemoryStore_MissIsNeverAnError(t *testing.T) {
	s := NewMemoryStore()
	_, ok := s.Get("home1", "plan1", "deadbeef", 12)
	if ok {
		t.Fatal("expected miss on empty store")
	}
}

func TestMemoryStore_PutThenGetRoundTrips(t *testing.T) {
	s := NewMemoryStore()
	entry := Entry{
		HomeID:       "home1",
		RatePlanID:   "plan1",
		InputsSha256: "deadbeef",
		MonthsCount:  12,
		Estimate:     estimate.Estimate{Status: estimate.StatusOK, AnnualCostDollars: 1234.56},
		ComputedAt:   time.Unix(1000, 0),
	}

	if err := s.Put(entry, time.Unix(2000, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok := s.Get("home1", "plan1", "deadbeef", 12)
	if !ok {
		t.Fatal("expected hit after put")
	}
	if got.Estimate.AnnualCostDollars != 1234.56 {
		t.Fatalf("got %v, want 1234.56", got.Estimate.AnnualCostDollars)
	}
}

func TestMemoryStore_MaterializedViewTracksLatestWrite(t *testing.T) {
	s := NewMemoryStore()
	first := Entry{HomeID: "home1", RatePlanID: "plan1", InputsSha256: "aaa", MonthsCount: 12,
		Estimate: estimate.Estimate{AnnualCostDollars: 100}, ComputedAt: time.Unix(1000, 0)}
	second := Entry{HomeID: "home1", RatePlanID: "plan1", InputsSha256: "bbb", MonthsCount: 12,
		Estimate: estimate.Estimate{AnnualCostDollars: 200}, ComputedAt: time.Unix(2000, 0)}

	s.Put(first, time.Unix(1500, 0))
	s.Put(second, time.Unix(2500, 0))

	m, ok := s.GetMaterialized("home1", "plan1")
	if !ok {
		t.Fatal("expected materialized hit")
	}
	if m.Entry.InputsSha256 != "bbb" {
		t.Fatalf("got materialized inputsSha256 %q, want bbb", m.Entry.InputsSha256)
	}

	// The prior content-addressed entry is still independently retrievable.
	old, ok := s.Get("home1", "plan1", "aaa", 12)
	if !ok || old.Estimate.AnnualCostDollars != 100 {
		t.Fatalf("expected original content-addressed entry to remain, got %+v ok=%v", old, ok)
	}
}
