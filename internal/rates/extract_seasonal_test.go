package rates

import (
	"reflect"
	"testing"
)

func TestExtractSeasonalDiscount(t *testing.T) {
	text := "Customers will receive a 50 percent discount off the Energy Charge from June 1 through September 30."
	d, ok := ExtractSeasonalDiscount(text)
	if !ok {
		t.Fatal("expected match")
	}
	if d.DiscountFraction != 0.5 {
		t.Fatalf("got discount fraction %v, want 0.5", d.DiscountFraction)
	}
	want := []int{6, 7, 8, 9}
	if !reflect.DeepEqual(d.Months, want) {
		t.Fatalf("got months %v, want %v", d.Months, want)
	}
}

func TestExtractSeasonalDiscount_NoMatch(t *testing.T) {
	if _, ok := ExtractSeasonalDiscount("fixed rate plan, no seasonal pricing"); ok {
		t.Fatal("expected no match")
	}
}

func TestMonthRangeInclusive_WrapsYearBoundary(t *testing.T) {
	got := monthRangeInclusive(11, 2)
	want := []int{11, 12, 1, 2}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
