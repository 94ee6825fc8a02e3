package rates

import (
	"regexp"
	"strconv"

	"github.com/wattbuy/planengine/pkg/textextract"
)

var (
	usageCreditRe    = regexp.MustCompile(`(?i)Residential\s+Usage\s+Credit\s*\$([0-9]+(?:\.[0-9]+)?).{0,60}?usage\s*>=\s*([0-9,]+)\s*kWh`)
	additionalCreditRe = regexp.MustCompile(`(?i)Additional.{0,40}?\$([0-9]+(?:\.[0-9]+)?).{0,60}?>=\s*([0-9,]+)\s*kWh`)
)

// ExtractThresholdCredits finds additive "usage >= N kWh" bill-credit
// disclosures (the primary "Residential Usage Credit" plus any
// "Additional ..." stacked credit), per spec §4.3. These are returned as
// raw THRESHOLD_MIN events; normalizing them into non-overlapping persisted
// segments is the Gap Solver's job (step 8).
func ExtractThresholdCredits(rawText string) []BillCreditRule {
	var out []BillCreditRule
	if m := usageCreditRe.FindStringSubmatch(rawText); m != nil {
		dollars, _ := strconv.ParseFloat(m[1], 64)
		out = append(out, BillCreditRule{
			CreditDollars: dollars,
			ThresholdKwh:  parseKwhToken(m[2]),
			Type:          CreditThresholdMin,
		})
	}
	if m := additionalCreditRe.FindStringSubmatch(rawText); m != nil {
		dollars, _ := strconv.ParseFloat(m[1], 64)
		out = append(out, BillCreditRule{
			CreditDollars: dollars,
			ThresholdKwh:  parseKwhToken(m[2]),
			Type:          CreditThresholdMin,
		})
	}
	return out
}

// NormalizeAdditiveCreditsToSegments turns a set of raw additive
// THRESHOLD_MIN credit events into non-overlapping persisted segments, per
// spec §4.5 step 8 and the §8 worked example: "$35 @ >=1000", "+$15 @
// >=2000" becomes segments [1000,2000): $35 and [2000, inf): $50 (credits
// from all thresholds at or below the segment's start stack additively).
func NormalizeAdditiveCreditsToSegments(events []BillCreditRule) []BillCreditPersistedRule {
	if len(events) == 0 {
		return nil
	}
	// Collect distinct thresholds in ascending order.
	thresholds := make([]float64, 0, len(events))
	seen := map[float64]bool{}
	for _, e := range events {
		if !seen[e.ThresholdKwh] {
			seen[e.ThresholdKwh] = true
			thresholds = append(thresholds, e.ThresholdKwh)
		}
	}
	for i := 1; i < len(thresholds); i++ {
		for j := i; j > 0 && thresholds[j] < thresholds[j-1]; j-- {
			thresholds[j], thresholds[j-1] = thresholds[j-1], thresholds[j]
		}
	}

	segments := make([]BillCreditPersistedRule, 0, len(thresholds))
	for i, t := range thresholds {
		var cumulative float64
		for _, e := range events {
			if e.ThresholdKwh <= t {
				cumulative += e.CreditDollars
			}
		}
		min := t
		var maxPtr *float64
		if i+1 < len(thresholds) {
			m := thresholds[i+1]
			maxPtr = &m
		}
		segments = append(segments, BillCreditPersistedRule{
			CreditAmountCents: textextract.RoundDollarsToCents(cumulative),
			MinUsageKWh:       &min,
			MaxUsageKWh:       maxPtr,
			Label:             "additive usage credit",
		})
	}
	return segments
}

// EvaluateAdditiveCredits sums the raw additive events (not segments)
// against a given monthly usage -- this is the math the validator and
// estimator actually run, per spec §4.5 step 8 ("keep raw additive events
// for validator math").
func EvaluateAdditiveCredits(events []BillCreditRule, usageKwh float64) float64 {
	var total float64
	for _, e := range events {
		switch e.Type {
		case CreditThresholdMin:
			if usageKwh >= e.ThresholdKwh {
				total += e.CreditDollars
			}
		case CreditThresholdMax:
			if usageKwh <= e.ThresholdKwh {
				total += e.CreditDollars
			}
		}
	}
	return total
}
