package rates

import "testing"

func TestSolveGaps_FixedRateFallbackWhenNoStructure(t *testing.T) {
	text := "Energy Charge 12.0¢ per kWh"
	disclosed := map[float64]float64{500: 12.0, 1000: 12.0, 2000: 12.0}

	result := SolveGaps(text, PlanRules{}, RateStructure{}, disclosed, Validation{})

	if result.DerivedPlanRules.DefaultRateCentsPerKwh == nil {
		t.Fatal("expected fixed_rate_fallback to populate DefaultRateCentsPerKwh")
	}
	found := false
	for _, s := range result.SolverApplied {
		if s == "fixed_rate_fallback" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected fixed_rate_fallback in applied steps, got %v", result.SolverApplied)
	}
	if result.SolveMode != SolvePassWithAssumptions {
		t.Fatalf("got solve mode %v, want PASS_WITH_ASSUMPTIONS", result.SolveMode)
	}
}

func TestSolveGaps_NoStepsAppliedWhenAlreadyComplete(t *testing.T) {
	rate := 12.0
	plan := PlanRules{RateType: RateFixed, DefaultRateCentsPerKwh: &rate}
	text := "Energy Charge 12.0¢ per kWh"
	disclosed := map[float64]float64{500: 12.0, 1000: 12.0, 2000: 12.0}

	result := SolveGaps(text, plan, RateStructure{}, disclosed, Validation{})

	if len(result.SolverApplied) != 0 {
		t.Fatalf("expected no repairs, got %v", result.SolverApplied)
	}
	if result.SolveMode != SolveNone {
		t.Fatalf("got solve mode %v, want NONE", result.SolveMode)
	}
}

func TestSolveGaps_SeasonalDiscountBecomesAllDayTOU(t *testing.T) {
	rate := 12.0
	plan := PlanRules{RateType: RateFixed, DefaultRateCentsPerKwh: &rate}
	text := "50 percent discount off the Energy Charge from June 1 through September 30."

	result := SolveGaps(text, plan, RateStructure{}, map[float64]float64{1000: 12.0}, Validation{})

	if len(result.DerivedPlanRules.TimeOfUsePeriods) != 2 {
		t.Fatalf("expected two all-day TOU periods, got %d", len(result.DerivedPlanRules.TimeOfUsePeriods))
	}
	for _, p := range result.DerivedPlanRules.TimeOfUsePeriods {
		if !p.IsAllDay() {
			t.Fatalf("expected all-day period, got %+v", p)
		}
	}
}

func TestSolveGaps_IsIdempotent(t *testing.T) {
	text := "Energy Charge 12.0¢ per kWh"
	disclosed := map[float64]float64{500: 12.0, 1000: 12.0, 2000: 12.0}

	first := SolveGaps(text, PlanRules{}, RateStructure{}, disclosed, Validation{})
	second := SolveGaps(text, first.DerivedPlanRules, first.DerivedRateStructure, disclosed, first.ValidationAfter)

	if len(second.SolverApplied) != 0 {
		t.Fatalf("expected re-running the solver on its own output to be a no-op, got %v", second.SolverApplied)
	}
}
