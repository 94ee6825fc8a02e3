package rates

import (
	"context"
	"testing"
)

func TestFilterParseWarnings(t *testing.T) {
	in := []string{
		"TDU delivery section was ambiguous",
		"could not locate a base charge",
		"municipal franchise fee line unparsed",
	}
	got := FilterParseWarnings(in)
	want := []string{"could not locate a base charge"}
	if len(got) != len(want) || got[0] != want[0] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNullAIDraftParser_NeverErrors(t *testing.T) {
	var parser AIDraftParser = NullAIDraftParser{}
	result, err := parser.ParseDraft(context.Background(), "any text", "deadbeef")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.PlanRules != nil || result.RateStructure != nil {
		t.Fatalf("expected nil plan rules/structure, got %+v", result)
	}
}
