package rates

import "testing"

func TestExtractREPEnergyRate_FiltersTdspLines(t *testing.T) {
	text := "Energy Charge 11.5¢ per kWh\nTDU Delivery Energy Charge 4.2¢ per kWh"
	rate, ok := ExtractREPEnergyRate(text, nil)
	if !ok {
		t.Fatal("expected match")
	}
	if rate != 11.5 {
		t.Fatalf("got %v, want 11.5", rate)
	}
}

func TestExtractREPEnergyRate_FiltersNearTdspRate(t *testing.T) {
	tdsp := 4.2
	text := "Energy Charge 4.21¢ per kWh\nEnergy Charge 12.0¢ per kWh"
	rate, ok := ExtractREPEnergyRate(text, &tdsp)
	if !ok {
		t.Fatal("expected match")
	}
	if rate != 12.0 {
		t.Fatalf("got %v, want 12.0", rate)
	}
}

func TestExtractREPEnergyRate_NoCandidates(t *testing.T) {
	if _, ok := ExtractREPEnergyRate("no rate information here", nil); ok {
		t.Fatal("expected no match")
	}
}
