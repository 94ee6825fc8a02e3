package rates

import "testing"

func TestValidateAgainstDisclosedTable_FixedRatePasses(t *testing.T) {
	rate := 12.0
	pr := PlanRules{RateType: RateFixed, DefaultRateCentsPerKwh: &rate}
	disclosed := map[float64]float64{500: 12.0, 1000: 12.0, 2000: 12.0}

	v := ValidateAgainstDisclosedTable("no TDU delivery charges section here", pr, disclosed, 0)

	if v.Status != ValidationPass {
		t.Fatalf("got status %v, want PASS: %+v", v.Status, v.Points)
	}
}

func TestValidateAgainstDisclosedTable_FailsBeyondTolerance(t *testing.T) {
	rate := 12.0
	pr := PlanRules{RateType: RateFixed, DefaultRateCentsPerKwh: &rate}
	disclosed := map[float64]float64{500: 20.0, 1000: 20.0, 2000: 20.0}

	v := ValidateAgainstDisclosedTable("no TDU delivery charges section here", pr, disclosed, 0)

	if v.Status != ValidationFail {
		t.Fatalf("got status %v, want FAIL", v.Status)
	}
	if v.QueueReason == nil {
		t.Fatal("expected a queue reason on FAIL")
	}
}

func TestValidateAgainstDisclosedTable_DetectsFlatTdspPassthrough(t *testing.T) {
	rate := 8.0
	pr := PlanRules{RateType: RateFixed, DefaultRateCentsPerKwh: &rate}
	text := "TDU Delivery Charges\n$0.040000 per kWh applies to all usage."
	disclosed := map[float64]float64{1000: 12.0}

	v := ValidateAgainstDisclosedTable(text, pr, disclosed, 0)

	if v.AssumptionsUsed.TdspAppliedMode != TdspFlat {
		t.Fatalf("got tdsp mode %v, want FLAT", v.AssumptionsUsed.TdspAppliedMode)
	}
	if v.Status != ValidationPass {
		t.Fatalf("got status %v, want PASS (8 + 4 = 12 cents/kWh): %+v", v.Status, v.Points)
	}
}

func TestValidateAgainstDisclosedTable_MaskedTdspSectionMeansNone(t *testing.T) {
	rate := 12.0
	pr := PlanRules{RateType: RateFixed, DefaultRateCentsPerKwh: &rate}
	text := "TDU Delivery Charges\nVaries by utility, see your utility for details."
	disclosed := map[float64]float64{1000: 12.0}

	v := ValidateAgainstDisclosedTable(text, pr, disclosed, 0)

	if v.AssumptionsUsed.TdspAppliedMode != TdspNone {
		t.Fatalf("got tdsp mode %v, want NONE", v.AssumptionsUsed.TdspAppliedMode)
	}
}

func TestTieredEnergyCents(t *testing.T) {
	max1000 := 1000.0
	tiers := []UsageTier{
		{MinKwh: 0, MaxKwh: &max1000, RateCentsPerKwh: 10},
		{MinKwh: 1000, MaxKwh: nil, RateCentsPerKwh: 12},
	}
	got := tieredEnergyCents(tiers, 1500)
	want := 1000*10.0 + 500*12.0
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}
