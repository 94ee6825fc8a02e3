package computability

import (
	"testing"

	"github.com/wattbuy/planengine/internal/rates"
)

func TestAnalyze_FixedRateIsComputable(t *testing.T) {
	rate := 12.0
	structure := rates.RateStructure{Type: rates.RateFixed, EnergyRateCents: &rate}

	got := Analyze(structure, Options{})

	if got.Status != StatusComputable {
		t.Fatalf("got status %v, want COMPUTABLE: %+v", got.Status, got.Notes)
	}
	if len(got.RequiredBucketKeys) != 1 || got.RequiredBucketKeys[0] != AllBucketKey {
		t.Fatalf("got bucket keys %v, want [%s]", got.RequiredBucketKeys, AllBucketKey)
	}
}

func TestAnalyze_FixedWithNoAnchorIsNotComputable(t *testing.T) {
	got := Analyze(rates.RateStructure{Type: rates.RateFixed}, Options{})
	if got.Status != StatusNotComputable {
		t.Fatalf("got status %v, want NOT_COMPUTABLE", got.Status)
	}
}

func TestAnalyze_ContiguousTiersAreComputable(t *testing.T) {
	max1000 := 1000.0
	structure := rates.RateStructure{
		Type: rates.RateFixed,
		UsageTiers: []rates.UsageTier{
			{MinKwh: 0, MaxKwh: &max1000, RateCentsPerKwh: 10},
			{MinKwh: 1000, MaxKwh: nil, RateCentsPerKwh: 12},
		},
	}

	got := Analyze(structure, Options{})

	if got.Status != StatusComputable {
		t.Fatalf("got status %v, want COMPUTABLE: %+v", got.Status, got.Notes)
	}
}

func TestAnalyze_NonContiguousTiersAreNotComputable(t *testing.T) {
	max1000 := 1000.0
	max1500 := 1500.0
	structure := rates.RateStructure{
		Type: rates.RateFixed,
		UsageTiers: []rates.UsageTier{
			{MinKwh: 0, MaxKwh: &max1000, RateCentsPerKwh: 10},
			{MinKwh: 1200, MaxKwh: &max1500, RateCentsPerKwh: 12}, // gap 1000-1200
		},
	}

	got := Analyze(structure, Options{})

	if got.Status != StatusNotComputable || got.ReasonCode != ReasonUnsupportedTierVariation {
		t.Fatalf("got %+v, want NOT_COMPUTABLE/UNSUPPORTED_TIER_VARIATION", got)
	}
}

func TestAnalyze_NonOverlappingCreditsInTieredAreComputable(t *testing.T) {
	max1000 := 1000.0
	min2000 := 2000.0
	min1000 := 1000.0
	structure := rates.RateStructure{
		Type: rates.RateFixed,
		UsageTiers: []rates.UsageTier{
			{MinKwh: 0, MaxKwh: &max1000, RateCentsPerKwh: 10},
			{MinKwh: 1000, RateCentsPerKwh: 12},
		},
		BillCredits: rates.RateStructureBillCredits{
			HasBillCredit: true,
			Rules: []rates.BillCreditPersistedRule{
				{CreditAmountCents: 3500, MinUsageKWh: &min1000, MaxUsageKWh: &min2000},
				{CreditAmountCents: 5000, MinUsageKWh: &min2000},
			},
		},
	}

	got := Analyze(structure, Options{})

	if got.Status != StatusComputable {
		t.Fatalf("got status %v, want COMPUTABLE (non-overlapping segments are fine): %+v", got.Status, got)
	}
}

func TestAnalyze_IntraDayTOUIsNotComputableByDefault(t *testing.T) {
	structure := rates.RateStructure{
		Type: rates.RateTimeOfUse,
		TimeOfUsePeriods: []rates.TimeOfUsePeriod{
			{StartHour: 21, EndHour: 6, RateCentsPerKwh: 6},
			{StartHour: 6, EndHour: 21, RateCentsPerKwh: 14},
		},
	}

	got := Analyze(structure, Options{})

	if got.Status != StatusNotComputable || got.ReasonCode != ReasonNeedsHourlyIntervals {
		t.Fatalf("got %+v, want NOT_COMPUTABLE/NEEDS_HOURLY_INTERVALS", got)
	}
}

func TestAnalyze_IntraDayTOUComputableWithOverride(t *testing.T) {
	structure := rates.RateStructure{
		Type: rates.RateTimeOfUse,
		TimeOfUsePeriods: []rates.TimeOfUsePeriod{
			{StartHour: 21, EndHour: 6, RateCentsPerKwh: 6},
			{StartHour: 6, EndHour: 21, RateCentsPerKwh: 14},
		},
	}

	got := Analyze(structure, Options{AllowIntraDayTOU: true})

	if got.Status != StatusComputable {
		t.Fatalf("got status %v, want COMPUTABLE with override set", got.Status)
	}
}

func TestAnalyze_AllDayTOUIsComputableWithMonthKeys(t *testing.T) {
	structure := rates.RateStructure{
		Type: rates.RateTimeOfUse,
		TimeOfUsePeriods: []rates.TimeOfUsePeriod{
			{StartHour: 0, EndHour: 24, RateCentsPerKwh: 6, Months: []int{6, 7, 8, 9}},
			{StartHour: 0, EndHour: 24, RateCentsPerKwh: 12, Months: []int{1, 2, 3, 4, 5, 10, 11, 12}},
		},
	}

	got := Analyze(structure, Options{})

	if got.Status != StatusComputable {
		t.Fatalf("got status %v, want COMPUTABLE: %+v", got.Status, got.Notes)
	}
	if len(got.RequiredBucketKeys) != 12 {
		t.Fatalf("got %d bucket keys, want 12: %v", len(got.RequiredBucketKeys), got.RequiredBucketKeys)
	}
}

func TestAnalyze_VariableWithNoAnchorIsNonDeterministic(t *testing.T) {
	got := Analyze(rates.RateStructure{Type: rates.RateVariable}, Options{})

	if got.Status != StatusNotComputable || got.ReasonCode != ReasonNonDeterministicPricing {
		t.Fatalf("got %+v, want NOT_COMPUTABLE/NON_DETERMINISTIC_PRICING", got)
	}
}

func TestAnalyze_IndexedWithAnchorIsApproximateOK(t *testing.T) {
	rate := 10.0
	got := Analyze(rates.RateStructure{Type: rates.RateIndexed, EnergyRateCents: &rate}, Options{})

	if got.Status != StatusComputable || got.ReasonCode != ReasonIndexedApproximateOK {
		t.Fatalf("got %+v, want COMPUTABLE/INDEXED_APPROXIMATE_OK", got)
	}
}

func TestIsQuarantineWorthy(t *testing.T) {
	if !IsQuarantineWorthy(ReasonUnsupportedTierVariation) {
		t.Fatal("expected UNSUPPORTED_TIER_VARIATION to be quarantine-worthy")
	}
	if IsQuarantineWorthy("") {
		t.Fatal("expected empty reason to not be quarantine-worthy")
	}
}
