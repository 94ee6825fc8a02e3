package rates

import "testing"

func TestExtractBaseChargePerMonthCents(t *testing.T) {
	cents, ok := ExtractBaseChargePerMonthCents("Base Charge $9.95 per month")
	if !ok {
		t.Fatal("expected match")
	}
	if cents != 995 {
		t.Fatalf("got %d cents, want 995", cents)
	}

	if _, ok := ExtractBaseChargePerMonthCents("no base charge disclosed"); ok {
		t.Fatal("expected no match")
	}
}

func TestDailyChargeToMonthlyCents(t *testing.T) {
	cases := []struct {
		daily int64
		want  int64
	}{
		{daily: 100, want: 3000},  // $1.00/day -> $30.00/month
		{daily: 333, want: 9990},  // $3.33/day -> $99.90/month
		{daily: 0, want: 0},
	}
	for _, tc := range cases {
		got := DailyChargeToMonthlyCents(tc.daily)
		if got != tc.want {
			t.Errorf("DailyChargeToMonthlyCents(%d) = %d, want %d", tc.daily, got, tc.want)
		}
	}
}

func TestExtractServiceFeeCutoff(t *testing.T) {
	cutoff, ok := ExtractServiceFeeCutoff("Monthly Service Fee $8.00 applies for usage (<=1999 kWh)")
	if !ok {
		t.Fatal("expected match")
	}
	if cutoff.FeeCents != 800 || cutoff.CutoffKwh != 1999 || !cutoff.Inclusive {
		t.Fatalf("got %+v", cutoff)
	}
}

func TestExtractPrepaidRules(t *testing.T) {
	text := "Daily Charge $1.50 per day. Monthly Credit -$10.00 Applies: 1000 kWh usage or less"
	rules := ExtractPrepaidRules(text)
	if !rules.HasDailyCharge || rules.DailyChargeCents != 150 {
		t.Fatalf("got daily charge %+v", rules)
	}
	if !rules.HasMonthlyCredit || rules.MonthlyCreditCents != 1000 || rules.MaxUsageKwh != 1000 {
		t.Fatalf("got credit %+v", rules)
	}
}
