package estimate

import (
	"math"
	"testing"
)

func baseInputs() EstimateInputs {
	return EstimateInputs{
		EngineVersion:    EngineVersion,
		MonthsCount:      12,
		AnnualKwh:        12000,
		Tdsp:             "oncor",
		RateStructureSha: "abc123",
		YearMonths:       []string{"2026-01", "2026-02"},
		BucketKeys:       []string{allBucketKey},
		UsageBucketsByMonth: map[string]map[string]float64{
			"2026-01": {allBucketKey: 1000},
			"2026-02": {allBucketKey: 900},
		},
	}
}

func TestInputsSha256_StableUnderMapKeyReordering(t *testing.T) {
	a := baseInputs()
	b := baseInputs()
	// Build b's inner map by inserting keys in a different order; Go map
	// iteration order is randomized regardless, but this asserts the
	// encoder itself sorts rather than relying on insertion order.
	b.UsageBucketsByMonth = map[string]map[string]float64{
		"2026-02": {allBucketKey: 900},
		"2026-01": {allBucketKey: 1000},
	}

	if InputsSha256(a) != InputsSha256(b) {
		t.Fatal("expected hash to be invariant under map key reordering")
	}
}

func TestInputsSha256_NegativeZeroNormalizesToZero(t *testing.T) {
	a := baseInputs()
	b := baseInputs()
	a.UsageBucketsByMonth["2026-01"] = map[string]float64{allBucketKey: 0.0}
	b.UsageBucketsByMonth["2026-01"] = map[string]float64{allBucketKey: math.Copysign(0, -1)}

	if InputsSha256(a) != InputsSha256(b) {
		t.Fatal("expected hash to be invariant under -0.0 vs 0.0")
	}
}

func TestInputsSha256_DifferentInputsProduceDifferentHashes(t *testing.T) {
	a := baseInputs()
	b := baseInputs()
	b.AnnualKwh = 13000

	if InputsSha256(a) == InputsSha256(b) {
		t.Fatal("expected different annualKwh to produce different hashes")
	}
}

func TestInputsSha256_IsDeterministic(t *testing.T) {
	a := baseInputs()
	if InputsSha256(a) != InputsSha256(a) {
		t.Fatal("expected repeated calls on the same input to match")
	}
}
