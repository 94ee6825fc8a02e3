package rates

import "testing"

func TestScorePassStrength_StrongForConstantRate(t *testing.T) {
	rate := 12.0
	pr := PlanRules{RateType: RateFixed, DefaultRateCentsPerKwh: &rate}
	disclosed := map[float64]float64{500: 12.0, 1000: 12.0, 2000: 12.0}
	validation := Validation{Status: ValidationPass}

	strength := ScorePassStrength("no TDU section here", pr, disclosed, validation)

	if strength.Class != PassStrong {
		t.Fatalf("got class %v, want STRONG: %+v", strength.Class, strength.OffPointDiffs)
	}
}

func TestScorePassStrength_InvalidWhenNotPassed(t *testing.T) {
	strength := ScorePassStrength("", PlanRules{}, nil, Validation{Status: ValidationFail})
	if strength.Class != PassInvalid {
		t.Fatalf("got class %v, want INVALID", strength.Class)
	}
}

func TestScorePassStrength_CatchesTierBoundaryCoincidence(t *testing.T) {
	max1000 := 1000.0
	tiers := []UsageTier{
		{MinKwh: 0, MaxKwh: &max1000, RateCentsPerKwh: 8},
		{MinKwh: 1000, MaxKwh: nil, RateCentsPerKwh: 20},
	}
	pr := PlanRules{RateType: RateFixed, UsageTiers: tiers}
	// The disclosed points (500, 1000, 2000) match the structure exactly, and
	// so does the interpolated 750 point, but at 1500 the structure models
	// 12¢/kWh against an interpolated 11¢/kWh.
	disclosed := map[float64]float64{
		500:  8.0,
		1000: 8.0,
		2000: 14.0,
	}
	validation := Validation{Status: ValidationPass}

	strength := ScorePassStrength("no TDU section here", pr, disclosed, validation)

	if strength.Class == PassStrong {
		t.Fatalf("expected tier-boundary coincidence to be caught, got STRONG: %+v", strength.OffPointDiffs)
	}
}
