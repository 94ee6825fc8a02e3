// Package computability decides whether a validated RateStructure can be
// priced deterministically against monthly usage buckets, the gate between
// the rates package and the True-Cost Estimator. Grounded on the teacher's
// internal/rates provider-registry pattern (bher20-eratemanager): a fixed,
// ordered list of named rule checks, each contributing at most one reason
// code, rather than a single monolithic boolean.
package computability

import (
	"fmt"
	"sort"

	"github.com/wattbuy/planengine/internal/rates"
)

// ReasonCode enumerates why a structure was found computable or not, per
// spec §3/§4.7.
type ReasonCode string

const (
	ReasonUnsupportedRateStructure       ReasonCode = "UNSUPPORTED_RATE_STRUCTURE"
	ReasonIndexedApproximateOK           ReasonCode = "INDEXED_APPROXIMATE_OK"
	ReasonNeedsHourlyIntervals           ReasonCode = "NEEDS_HOURLY_INTERVALS"
	ReasonSuspectTOUEvidenceInValidation ReasonCode = "SUSPECT_TOU_EVIDENCE_IN_VALIDATION"
	ReasonUnsupportedCombinedStructures  ReasonCode = "UNSUPPORTED_COMBINED_STRUCTURES"
	ReasonUnsupportedCreditsInTiered     ReasonCode = "UNSUPPORTED_CREDITS_IN_TIERED"
	ReasonNonDeterministicPricing        ReasonCode = "NON_DETERMINISTIC_PRICING"
	ReasonUnsupportedTierVariation       ReasonCode = "UNSUPPORTED_TIER_VARIATION"
)

// Status is the binary computability verdict (spec §3: Computability.status
// ∈ {COMPUTABLE, NOT_COMPUTABLE}). A COMPUTABLE verdict may still carry a
// reason code such as INDEXED_APPROXIMATE_OK that tells the estimator to
// mark its own output APPROXIMATE rather than OK.
type Status string

const (
	StatusComputable    Status = "COMPUTABLE"
	StatusNotComputable Status = "NOT_COMPUTABLE"
)

// AllBucketKey is the universal monthly-total bucket required by every
// computable fixed, tiered, variable or indexed structure.
const AllBucketKey = "kwh.m.all.total"

// Options tunes analysis with orchestrator-supplied overrides.
type Options struct {
	// AllowIntraDayTOU lets an intra-day TOU structure be treated as
	// COMPUTABLE when the caller has hourly usage buckets available (spec
	// §4.7: "NOT_COMPUTABLE ... unless an override is set").
	AllowIntraDayTOU bool
}

// Computability is the Computability Analyzer's output (spec §3/§4.7).
type Computability struct {
	Status             Status
	ReasonCode         ReasonCode // empty when COMPUTABLE with no caveat
	RequiredBucketKeys []string
	SupportedFeatures  map[string]bool
	Notes              []string
}

// quarantineWorthyReasons mirrors spec §7: structurally defective templates
// are quarantine-worthy; bucket-availability and transient input gaps are
// not (those aren't expressed as ReasonCodes here at all).
var quarantineWorthyReasons = map[ReasonCode]bool{
	ReasonUnsupportedRateStructure:       true,
	ReasonUnsupportedCombinedStructures:  true,
	ReasonUnsupportedCreditsInTiered:     true,
	ReasonUnsupportedTierVariation:       true,
	ReasonNonDeterministicPricing:        true,
	ReasonSuspectTOUEvidenceInValidation: true,
}

// IsQuarantineWorthy reports whether reason should cause the orchestrator to
// auto-enqueue a PLAN_CALC_QUARANTINE review item, per spec §7.
func IsQuarantineWorthy(reason ReasonCode) bool {
	return quarantineWorthyReasons[reason]
}

// Analyze runs the rule ladder from spec §4.7 against structure in order.
func Analyze(structure rates.RateStructure, opts Options) Computability {
	if len(structure.UsageTiers) > 0 && len(structure.TimeOfUsePeriods) > 0 {
		return Computability{Status: StatusNotComputable, ReasonCode: ReasonUnsupportedCombinedStructures}
	}

	switch structure.Type {
	case rates.RateFixed:
		return analyzeFixedOrTiered(structure)
	case rates.RateVariable, rates.RateIndexed:
		return analyzeVariableOrIndexed(structure)
	case rates.RateTimeOfUse:
		return analyzeTimeOfUse(structure, opts)
	default:
		return Computability{
			Status:     StatusNotComputable,
			ReasonCode: ReasonUnsupportedRateStructure,
			Notes:      []string{fmt.Sprintf("unrecognized rate type %q", structure.Type)},
		}
	}
}

func analyzeFixedOrTiered(s rates.RateStructure) Computability {
	if len(s.UsageTiers) > 0 {
		if reason, ok := tierShapeProblem(s); ok {
			return Computability{Status: StatusNotComputable, ReasonCode: reason}
		}
		if s.BillCredits.HasBillCredit && !additiveCreditsAreDeterministic(s) {
			return Computability{Status: StatusNotComputable, ReasonCode: ReasonUnsupportedCreditsInTiered}
		}
		return Computability{
			Status:             StatusComputable,
			RequiredBucketKeys: []string{AllBucketKey},
			SupportedFeatures:  map[string]bool{"tiered": true, "credits": s.BillCredits.HasBillCredit},
		}
	}

	if s.EnergyRateCents == nil {
		return Computability{Status: StatusNotComputable, ReasonCode: ReasonUnsupportedRateStructure, Notes: []string{"FIXED structure has neither tiers nor energyRateCents"}}
	}
	return Computability{
		Status:             StatusComputable,
		RequiredBucketKeys: []string{AllBucketKey},
		SupportedFeatures:  map[string]bool{"fixed": true, "credits": s.BillCredits.HasBillCredit},
	}
}

// tierShapeProblem enforces spec §8's tier contiguity invariant: first tier
// starts at 0, each subsequent MinKwh equals the prior MaxKwh, at most one
// (necessarily last) tier is open-ended, and rates move monotonically.
func tierShapeProblem(s rates.RateStructure) (ReasonCode, bool) {
	tiers := append([]rates.UsageTier(nil), s.UsageTiers...)
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].MinKwh < tiers[j].MinKwh })

	if tiers[0].MinKwh != 0 {
		return ReasonUnsupportedTierVariation, true
	}
	for i := 1; i < len(tiers); i++ {
		prevMax := tiers[i-1].MaxKwh
		if prevMax == nil || tiers[i].MinKwh != *prevMax {
			return ReasonUnsupportedTierVariation, true
		}
	}
	openCount := 0
	for i, t := range tiers {
		if t.MaxKwh == nil {
			openCount++
			if i != len(tiers)-1 {
				return ReasonUnsupportedTierVariation, true
			}
		}
	}
	if openCount > 1 {
		return ReasonUnsupportedTierVariation, true
	}

	increasing, decreasing := true, true
	for i := 1; i < len(tiers); i++ {
		if tiers[i].RateCentsPerKwh < tiers[i-1].RateCentsPerKwh {
			increasing = false
		}
		if tiers[i].RateCentsPerKwh > tiers[i-1].RateCentsPerKwh {
			decreasing = false
		}
	}
	if len(tiers) > 1 && !increasing && !decreasing {
		return ReasonUnsupportedTierVariation, true
	}
	return "", false
}

// additiveCreditsAreDeterministic rejects bill credits stacked on a tiered
// structure unless they resolve to non-overlapping persisted segments (spec
// §4.5 step 8's normalization already guarantees this for solver output, so
// this is a defense against a hand-built RateStructure with overlaps).
func additiveCreditsAreDeterministic(s rates.RateStructure) bool {
	segments := s.BillCredits.Rules
	sorted := append([]rates.BillCreditPersistedRule(nil), segments...)
	sort.SliceStable(sorted, func(i, j int) bool {
		iMin, jMin := 0.0, 0.0
		if sorted[i].MinUsageKWh != nil {
			iMin = *sorted[i].MinUsageKWh
		}
		if sorted[j].MinUsageKWh != nil {
			jMin = *sorted[j].MinUsageKWh
		}
		return iMin < jMin
	})
	for i := 1; i < len(sorted); i++ {
		prevMax := sorted[i-1].MaxUsageKWh
		curMin := 0.0
		if sorted[i].MinUsageKWh != nil {
			curMin = *sorted[i].MinUsageKWh
		}
		if prevMax != nil && curMin < *prevMax {
			return false
		}
	}
	return true
}

func analyzeVariableOrIndexed(s rates.RateStructure) Computability {
	hasAnchor := s.EnergyRateCents != nil || len(s.UsageTiers) > 0
	if !hasAnchor {
		return Computability{Status: StatusNotComputable, ReasonCode: ReasonNonDeterministicPricing}
	}
	return Computability{
		Status:             StatusComputable,
		ReasonCode:         ReasonIndexedApproximateOK,
		RequiredBucketKeys: []string{AllBucketKey},
		SupportedFeatures:  map[string]bool{"indexed_anchor_approx": true},
	}
}

func analyzeTimeOfUse(s rates.RateStructure, opts Options) Computability {
	allDay := true
	for _, p := range s.TimeOfUsePeriods {
		if !p.IsAllDay() {
			allDay = false
			break
		}
	}

	if !allDay {
		if !opts.AllowIntraDayTOU {
			return Computability{Status: StatusNotComputable, ReasonCode: ReasonNeedsHourlyIntervals}
		}
		if s.Evidence.AssumptionsUsed.NightUsagePercent != nil {
			return Computability{
				Status:             StatusComputable,
				ReasonCode:         ReasonSuspectTOUEvidenceInValidation,
				RequiredBucketKeys: []string{"kwh.h.all.total"},
				SupportedFeatures:  map[string]bool{"intraday_tou": true},
			}
		}
		return Computability{
			Status:             StatusComputable,
			RequiredBucketKeys: []string{"kwh.h.all.total"},
			SupportedFeatures:  map[string]bool{"intraday_tou": true},
		}
	}

	months := monthsCoveredByPeriods(s.TimeOfUsePeriods)
	keys := make([]string, 0, len(months))
	for _, m := range months {
		keys = append(keys, fmt.Sprintf("kwh.m.%02d.total", m))
	}
	return Computability{
		Status:             StatusComputable,
		RequiredBucketKeys: keys,
		SupportedFeatures:  map[string]bool{"seasonal_tou": true},
	}
}

// monthsCoveredByPeriods returns the sorted set of months referenced by any
// period; a period with no explicit Months applies to all 12.
func monthsCoveredByPeriods(periods []rates.TimeOfUsePeriod) []int {
	seen := map[int]bool{}
	for _, p := range periods {
		if len(p.Months) == 0 {
			for m := 1; m <= 12; m++ {
				seen[m] = true
			}
			continue
		}
		for _, m := range p.Months {
			seen[m] = true
		}
	}
	months := make([]int, 0, len(seen))
	for m := range seen {
		months = append(months, m)
	}
	sort.Ints(months)
	return months
}
