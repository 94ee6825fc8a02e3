package rates

import (
	"strings"
	"testing"
)

func TestNormalizeText_StripsAvgPriceAndTduBlocks(t *testing.T) {
	raw := strings.Repeat("Energy Charge 12.5 cents per kWh. ", 10) +
		"\n\nAverage Monthly Use / Average Price per kWh\n500 kWh: 13.9c\n1000 kWh: 12.5c\n2000 kWh: 11.9c\n\n" +
		"TDU Delivery Charges\n$0.041950 per kWh\n\n" +
		"This facts label is not a bill.\n"

	result := NormalizeText(raw)

	if strings.Contains(result.NormalizedText, "Average Monthly Use") {
		t.Fatalf("expected avg price block stripped, got: %s", result.NormalizedText)
	}
	if strings.Contains(result.NormalizedText, "TDU Delivery Charges") {
		t.Fatalf("expected TDU block stripped, got: %s", result.NormalizedText)
	}
	if strings.Contains(strings.ToLower(result.NormalizedText), "this facts label is not a bill") {
		t.Fatalf("expected boilerplate line stripped, got: %s", result.NormalizedText)
	}
	if len(result.Notes) == 0 {
		t.Fatal("expected notes describing what was stripped")
	}
}

func TestNormalizeText_FallsOpenWhenResidueTooShort(t *testing.T) {
	raw := "Average Monthly Use / Average Price per kWh\nthis facts label is not a bill\n"

	result := NormalizeText(raw)

	if result.NormalizedText != raw {
		t.Fatalf("expected fallback to raw text, got: %s", result.NormalizedText)
	}
	found := false
	for _, n := range result.Notes {
		if strings.Contains(n, "fallback") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a fallback note")
	}
}

func TestNormalizeText_EmptyInput(t *testing.T) {
	result := NormalizeText("")
	if result.NormalizedText != "" {
		t.Fatalf("expected empty output for empty input, got: %q", result.NormalizedText)
	}
}
