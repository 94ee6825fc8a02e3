package rates

import "testing"

func TestExtractTOUPeakOffPeakRates(t *testing.T) {
	text := "Energy Charge Peak 18.5¢ per kWh. Off-Peak 6.5¢ per kWh."
	peak, offPeak := ExtractTOUPeakOffPeakRates(text)
	if peak == nil || *peak != 18.5 {
		t.Fatalf("got peak %v, want 18.5", peak)
	}
	if offPeak == nil || *offPeak != 6.5 {
		t.Fatalf("got offPeak %v, want 6.5", offPeak)
	}
}

func TestExtractTOUWindow(t *testing.T) {
	text := "Off-Peak hours are 9:00 PM - 6:00 AM. 40% of Off-Peak consumption is typical."
	w, ok := ExtractTOUWindow(text)
	if !ok {
		t.Fatal("expected match")
	}
	if w.StartHour != 21 {
		t.Fatalf("got start hour %d, want 21", w.StartHour)
	}
	if w.EndHour != 6 {
		t.Fatalf("got end hour %d, want 6", w.EndHour)
	}
	if w.OffPeakUsagePercent == nil || *w.OffPeakUsagePercent != 0.4 {
		t.Fatalf("got off-peak usage percent %v, want 0.4", w.OffPeakUsagePercent)
	}
}

func TestClockToHour24(t *testing.T) {
	cases := []struct {
		hh, mm     int
		ampm       string
		roundUp    bool
		wantHour   int
	}{
		{12, 0, "AM", false, 0},
		{12, 0, "PM", false, 12},
		{6, 0, "AM", false, 6},
		{6, 30, "AM", true, 7},
		{6, 0, "AM", true, 6},
	}
	for _, tc := range cases {
		got := clockToHour24(tc.hh, tc.mm, tc.ampm, tc.roundUp)
		if got != tc.wantHour {
			t.Errorf("clockToHour24(%d,%d,%s,%v) = %d, want %d", tc.hh, tc.mm, tc.ampm, tc.roundUp, got, tc.wantHour)
		}
	}
}
