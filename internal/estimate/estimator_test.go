package estimate

import (
	"math"
	"testing"

	"github.com/wattbuy/planengine/internal/rates"
)

func monthsUniform(monthlyKwh float64) ([]string, map[string]map[string]float64) {
	yms := []string{"2026-01", "2026-02", "2026-03", "2026-04", "2026-05", "2026-06",
		"2026-07", "2026-08", "2026-09", "2026-10", "2026-11", "2026-12"}
	buckets := make(map[string]map[string]float64, 12)
	for _, ym := range yms {
		buckets[ym] = map[string]float64{allBucketKey: monthlyKwh}
	}
	return yms, buckets
}

// Scenario 1 from the worked examples: fixed 12.5c + $9.95 base, TDSP
// 3.87c/kWh + $4.39/month, annualKwh=12000 -> $2136.48.
func TestRun_FixedPlanWithBaseAndTdsp(t *testing.T) {
	rate := 12.5
	baseCents := int64(995)
	structure := rates.RateStructure{
		Type:                rates.RateFixed,
		EnergyRateCents:     &rate,
		BaseMonthlyFeeCents: baseCents,
	}
	yms, buckets := monthsUniform(1000)

	in := Inputs{
		AnnualKwh:           12000,
		MonthsCount:         12,
		RateStructure:       structure,
		YearMonths:          yms,
		UsageBucketsByMonth: buckets,
		TdspRates: TdspRates{
			PerKwhDeliveryChargeCents:   3.87,
			MonthlyCustomerChargeDollars: 4.39,
		},
	}

	got := Run(in)

	if got.Status != StatusOK {
		t.Fatalf("got status %v, want OK", got.Status)
	}
	want := 2136.48
	if math.Abs(got.AnnualCostDollars-want) > 0.01 {
		t.Fatalf("got annual cost %.2f, want %.2f", got.AnnualCostDollars, want)
	}
}

// Scenario 2: tiered [0-1000)@10.9852c, [1000,inf)@12.9852c, annualKwh=15000
// at 1250 kWh/month -> REP energy $1707.78.
func TestRun_TieredPlanREPEnergy(t *testing.T) {
	max1000 := 1000.0
	structure := rates.RateStructure{
		Type: rates.RateFixed,
		UsageTiers: []rates.UsageTier{
			{MinKwh: 0, MaxKwh: &max1000, RateCentsPerKwh: 10.9852},
			{MinKwh: 1000, MaxKwh: nil, RateCentsPerKwh: 12.9852},
		},
	}
	yms, buckets := monthsUniform(1250)

	in := Inputs{
		AnnualKwh:           15000,
		MonthsCount:         12,
		RateStructure:       structure,
		YearMonths:          yms,
		UsageBucketsByMonth: buckets,
	}

	got := Run(in)

	want := 1707.78
	if math.Abs(got.Components.RepEnergyDollars-want) > 0.01 {
		t.Fatalf("got REP energy %.2f, want %.2f", got.Components.RepEnergyDollars, want)
	}
}

// Scenario 3: seasonal 50% off 20c -> 10c June-September, uniform 1000
// kWh/month -> REP energy $2000.
func TestRun_SeasonalAllDayTOU(t *testing.T) {
	structure := rates.RateStructure{
		Type: rates.RateTimeOfUse,
		TimeOfUsePeriods: []rates.TimeOfUsePeriod{
			{StartHour: 0, EndHour: 24, RateCentsPerKwh: 10, Months: []int{6, 7, 8, 9}},
			{StartHour: 0, EndHour: 24, RateCentsPerKwh: 20, Months: []int{1, 2, 3, 4, 5, 10, 11, 12}},
		},
	}
	yms, buckets := monthsUniform(1000)

	got := Run(Inputs{
		AnnualKwh:           12000,
		MonthsCount:         12,
		RateStructure:       structure,
		YearMonths:          yms,
		UsageBucketsByMonth: buckets,
	})

	if got.Status != StatusOK {
		t.Fatalf("got status %v, want OK: %s", got.Status, got.Reason)
	}
	want := 2000.0
	if math.Abs(got.Components.RepEnergyDollars-want) > 0.01 {
		t.Fatalf("got REP energy %.2f, want %.2f", got.Components.RepEnergyDollars, want)
	}
}

// Scenario 4: intra-day TOU with no hourly buckets -> NOT_COMPUTABLE.
func TestRun_IntraDayTOUWithoutHourlyBucketsIsNotComputable(t *testing.T) {
	structure := rates.RateStructure{
		Type: rates.RateTimeOfUse,
		TimeOfUsePeriods: []rates.TimeOfUsePeriod{
			{StartHour: 21, EndHour: 5, RateCentsPerKwh: 5.92},
			{StartHour: 5, EndHour: 21, RateCentsPerKwh: 11.84},
		},
	}
	yms, buckets := monthsUniform(1000)

	got := Run(Inputs{
		AnnualKwh:           12000,
		RateStructure:       structure,
		YearMonths:          yms,
		UsageBucketsByMonth: buckets,
		HasHourlyBuckets:    false,
	})

	if got.Status != StatusNotComputable {
		t.Fatalf("got status %v, want NOT_COMPUTABLE", got.Status)
	}
}

// Scenario 6: additive credits $35@>=1000, +$15@>=2000 normalized to
// segments; at month=2500 kWh credit applied should be $50, not $85.
func TestRun_AdditiveCreditSegmentsApplyCumulativeAmount(t *testing.T) {
	min1000, min2000 := 1000.0, 2000.0
	structure := rates.RateStructure{
		Type:            rates.RateFixed,
		EnergyRateCents: floatPtr(10),
		BillCredits: rates.RateStructureBillCredits{
			HasBillCredit: true,
			Rules: []rates.BillCreditPersistedRule{
				{CreditAmountCents: 3500, MinUsageKWh: &min1000, MaxUsageKWh: &min2000},
				{CreditAmountCents: 5000, MinUsageKWh: &min2000},
			},
		},
	}

	got := evaluateSegmentCredits(structure.BillCredits.Rules, 2500)
	if got != 50.0 {
		t.Fatalf("got credit %.2f at 2500 kWh, want 50.00", got)
	}
	got = evaluateSegmentCredits(structure.BillCredits.Rules, 1500)
	if got != 35.0 {
		t.Fatalf("got credit %.2f at 1500 kWh, want 35.00", got)
	}
}

func TestEffectiveCentsPerKwhMatchesAnnualOverAnnualKwh(t *testing.T) {
	rate := 12.0
	structure := rates.RateStructure{Type: rates.RateFixed, EnergyRateCents: &rate}
	yms, buckets := monthsUniform(1000)

	got := Run(Inputs{
		AnnualKwh:           12000,
		RateStructure:       structure,
		YearMonths:          yms,
		UsageBucketsByMonth: buckets,
	})

	want := got.AnnualCostDollars / 12000 * 100
	if math.Abs(got.EffectiveCentsPerKwh-want) > 1e-9 {
		t.Fatalf("got %.12f, want %.12f", got.EffectiveCentsPerKwh, want)
	}
}

func floatPtr(v float64) *float64 { return &v }
