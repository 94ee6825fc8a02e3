package rates

import "testing"

func TestExtractThresholdCredits(t *testing.T) {
	text := "Residential Usage Credit $35.00 applied when usage >= 1000 kWh. " +
		"Additional Bill Credit $15.00 applied when usage >= 2000 kWh."
	credits := ExtractThresholdCredits(text)
	if len(credits) != 2 {
		t.Fatalf("got %d credits, want 2: %+v", len(credits), credits)
	}
}

func TestNormalizeAdditiveCreditsToSegments(t *testing.T) {
	events := []BillCreditRule{
		{CreditDollars: 35, ThresholdKwh: 1000, Type: CreditThresholdMin},
		{CreditDollars: 15, ThresholdKwh: 2000, Type: CreditThresholdMin},
	}
	segments := NormalizeAdditiveCreditsToSegments(events)
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if segments[0].CreditAmountCents != 3500 || *segments[0].MinUsageKWh != 1000 || *segments[0].MaxUsageKWh != 2000 {
		t.Fatalf("got segment 0 %+v", segments[0])
	}
	if segments[1].CreditAmountCents != 5000 || *segments[1].MinUsageKWh != 2000 || segments[1].MaxUsageKWh != nil {
		t.Fatalf("got segment 1 %+v", segments[1])
	}
}

func TestEvaluateAdditiveCredits(t *testing.T) {
	events := []BillCreditRule{
		{CreditDollars: 35, ThresholdKwh: 1000, Type: CreditThresholdMin},
		{CreditDollars: 15, ThresholdKwh: 2000, Type: CreditThresholdMin},
	}
	if got := EvaluateAdditiveCredits(events, 500); got != 0 {
		t.Errorf("at 500 kWh got %v, want 0", got)
	}
	if got := EvaluateAdditiveCredits(events, 1500); got != 35 {
		t.Errorf("at 1500 kWh got %v, want 35", got)
	}
	if got := EvaluateAdditiveCredits(events, 2500); got != 50 {
		t.Errorf("at 2500 kWh got %v, want 50", got)
	}
}
