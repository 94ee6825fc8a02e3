package rates

import (
	"regexp"
	"sort"

	"github.com/wattbuy/planengine/pkg/textextract"
)

// DefaultToleranceCentsPerKwh is the validator's contract tolerance,
// per spec §4.4.
const DefaultToleranceCentsPerKwh = 0.25

var tduDeliverySectionRe = regexp.MustCompile(`(?is)TDU?\s+Delivery\s+Charges(.{0,600})`)
var tduPerKwhRe = regexp.MustCompile(`(?i)\$([0-9]+\.[0-9]{3,6})\s*per\s*kWh`)
var tduMaskedRe = regexp.MustCompile(`(?i)\b(varies|n/?a|see\s+your\s+utility|pass[- ]?through)\b`)
var tduTieredRe = regexp.MustCompile(`(?i)\btier\s*[0-9]\b`)

// detectTdspAssumption inspects the raw EFL text for a TDU Delivery Charges
// section and decides which passthrough assumption to use, per spec §4.4:
// FLAT by default when a concrete per-kWh rate is disclosed, TIERED_BY_UTILITY_TABLE
// when the section itself shows a tiered utility tariff table, and NONE when
// the TDSP section is masked (no usable numeric rate).
func detectTdspAssumption(rawText string) (TdspAppliedMode, float64) {
	m := tduDeliverySectionRe.FindStringSubmatch(rawText)
	if m == nil {
		return TdspNone, 0
	}
	section := m[1]
	if tduMaskedRe.MatchString(section) {
		return TdspNone, 0
	}
	rate, ok := textextract.ParseFirstFloatOK(tduPerKwhRe, section)
	if !ok {
		return TdspNone, 0
	}
	centsPerKwh := rate * 100
	if tduTieredRe.MatchString(section) {
		return TdspTieredByUtilityTable, centsPerKwh
	}
	return TdspFlat, centsPerKwh
}

// modeledCentsPerKwhAtUsage computes the structure's modeled ¢/kWh at a
// single synthetic monthly usage level, matching spec §4.4's "model a total
// monthly bill from the structure, add TDSP passthrough, divide by usage".
func modeledCentsPerKwhAtUsage(pr PlanRules, usageKwh float64, tdspCentsPerKwh float64, tdspMode TdspAppliedMode) float64 {
	var billCents float64

	rateType := pr.RateType
	if rateType == "" {
		if len(pr.TimeOfUsePeriods) > 0 {
			rateType = RateTimeOfUse
		} else {
			rateType = RateFixed
		}
	}
	switch rateType {
	case RateFixed, RateVariable, RateIndexed:
		rate := 0.0
		if len(pr.UsageTiers) > 0 {
			billCents += tieredEnergyCents(pr.UsageTiers, usageKwh)
		} else if pr.DefaultRateCentsPerKwh != nil {
			rate = *pr.DefaultRateCentsPerKwh
			billCents += rate * usageKwh
		}
	case RateTimeOfUse:
		billCents += touEnergyCentsAllDay(pr.TimeOfUsePeriods, usageKwh)
	}

	if pr.BaseChargePerMonthCents != nil {
		billCents += *pr.BaseChargePerMonthCents
	}

	if tdspMode != TdspNone {
		billCents += tdspCentsPerKwh * usageKwh
	}

	billCents -= EvaluateAdditiveCredits(pr.BillCredits, usageKwh) * 100

	if usageKwh == 0 {
		return 0
	}
	return billCents / usageKwh
}

// tieredEnergyCents steps through contiguous usage tiers and sums the
// energy charge (in cents) for usageKwh of consumption.
func tieredEnergyCents(tiers []UsageTier, usageKwh float64) float64 {
	sorted := append([]UsageTier(nil), tiers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MinKwh < sorted[j].MinKwh })

	var total float64
	remaining := usageKwh
	for _, t := range sorted {
		if remaining <= 0 {
			break
		}
		var tierSpan float64
		if t.MaxKwh != nil {
			tierSpan = *t.MaxKwh - t.MinKwh
		} else {
			tierSpan = remaining
		}
		used := remaining
		if used > tierSpan {
			used = tierSpan
		}
		total += used * t.RateCentsPerKwh
		remaining -= used
	}
	return total
}

// touEnergyCentsAllDay prices usageKwh against all-day TOU periods assuming
// usage is spread evenly across the periods' included months (used by the
// validator, which works with a single synthetic monthly usage rather than
// real monthly buckets).
func touEnergyCentsAllDay(periods []TimeOfUsePeriod, usageKwh float64) float64 {
	if len(periods) == 0 {
		return 0
	}
	var total, weight float64
	for _, p := range periods {
		n := len(p.Months)
		if n == 0 {
			n = 12
		}
		total += p.RateCentsPerKwh * float64(n)
		weight += float64(n)
	}
	return usageKwh * total / weight
}

// ValidateAgainstDisclosedTable is the Avg-Price Validator (spec §4.4). It
// models ¢/kWh at each disclosed usage point and compares against the
// EFL-disclosed value, PASSing only if every point is within tolerance.
func ValidateAgainstDisclosedTable(rawText string, pr PlanRules, disclosed map[float64]float64, tolerance float64) Validation {
	if tolerance <= 0 {
		tolerance = DefaultToleranceCentsPerKwh
	}

	tdspMode, tdspCents := detectTdspAssumption(rawText)

	usages := make([]float64, 0, len(disclosed))
	for u := range disclosed {
		usages = append(usages, u)
	}
	sort.Float64s(usages)

	points := make([]ValidationPoint, 0, len(usages))
	allPass := true
	for _, u := range usages {
		expected := disclosed[u]
		modeled := modeledCentsPerKwhAtUsage(pr, u, tdspCents, tdspMode)
		diff := modeled - expected
		points = append(points, ValidationPoint{
			UsageKwh:            u,
			ExpectedCentsPerKwh: expected,
			ModeledCentsPerKwh:  textextract.RoundCents(modeled),
			DiffCentsPerKwh:     textextract.RoundCents(diff),
		})
		if absf(diff) > tolerance {
			allPass = false
		}
	}

	status := ValidationFail
	var reason *QueueReason
	if allPass {
		status = ValidationPass
	} else {
		reason = &QueueReason{
			Code:    "AVG_PRICE_TOLERANCE_EXCEEDED",
			Message: "modeled cents/kWh deviates from disclosed average-price table beyond tolerance",
		}
	}

	return Validation{
		Status:               status,
		ToleranceCentsPerKwh: tolerance,
		Points:               points,
		AssumptionsUsed: AssumptionsUsed{
			TdspAppliedMode: tdspMode,
		},
		QueueReason: reason,
	}
}
