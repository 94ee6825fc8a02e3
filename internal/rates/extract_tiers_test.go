package rates

import "testing"

func TestExtractUsageTiers(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		wantLen  int
		wantLast bool // last tier should be open-ended
	}{
		{
			name:     "range and open tail",
			text:     "0 - 1000 kWh 10.9852¢\n> 1000 kWh 12.9852¢",
			wantLen:  2,
			wantLast: true,
		},
		{
			name:     "parenthesized form",
			text:     "(0 to 1000 kWh) 10.9852 cents per kWh",
			wantLen:  1,
			wantLast: false,
		},
		{
			name:    "no tiers",
			text:    "Fixed rate 11.2 cents per kWh",
			wantLen: 0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tiers := ExtractUsageTiers(tc.text)
			if len(tiers) != tc.wantLen {
				t.Fatalf("got %d tiers, want %d: %+v", len(tiers), tc.wantLen, tiers)
			}
			if tc.wantLen == 0 {
				return
			}
			last := tiers[len(tiers)-1]
			if tc.wantLast && last.MaxKwh != nil {
				t.Fatalf("expected open-ended last tier, got MaxKwh=%v", *last.MaxKwh)
			}
		})
	}
}

func TestExtractUsageTiers_OpenTierMinIsBoundaryPlusOne(t *testing.T) {
	tiers := ExtractUsageTiers("> 1200 kWh 9.5¢")
	if len(tiers) != 1 {
		t.Fatalf("expected 1 tier, got %d", len(tiers))
	}
	if tiers[0].MinKwh != 1201 {
		t.Fatalf("expected open tier MinKwh=1201, got %v", tiers[0].MinKwh)
	}
}

func TestExtractUsageTiers_DedupesIdenticalMatches(t *testing.T) {
	text := "0 - 1000 kWh 10.9852¢ described again as 0 - 1000 kWh 10.9852¢"
	tiers := ExtractUsageTiers(text)
	if len(tiers) != 1 {
		t.Fatalf("expected duplicate tier collapsed to 1, got %d", len(tiers))
	}
}
