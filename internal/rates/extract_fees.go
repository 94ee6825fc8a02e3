package rates

import (
	"regexp"
	"strconv"

	"github.com/wattbuy/planengine/pkg/textextract"
)

var (
	baseChargeCycleRe = regexp.MustCompile(`(?i)\$([0-9]+(?:\.[0-9]+)?)\s*per\s*(?:billing\s*cycle|month)`)
	dailyChargeRe     = regexp.MustCompile(`(?i)\$([0-9]+(?:\.[0-9]+)?)\s*per\s*day`)
)

// ExtractBaseChargePerMonthCents finds a "$X per billing cycle/month" base
// charge and returns it in cents. Returns (0, false) if absent.
func ExtractBaseChargePerMonthCents(rawText string) (int64, bool) {
	v, ok := textextract.ParseFirstFloatOK(baseChargeCycleRe, rawText)
	if !ok {
		return 0, false
	}
	return textextract.RoundDollarsToCents(v), true
}

// ExtractDailyChargeCents finds a "$D per day" charge and returns it in
// cents (still per-day; converting to a monthly base charge -- 30*D rounded
// to cents -- is the Gap Solver's job, per spec §4.5 step 3/7).
func ExtractDailyChargeCents(rawText string) (int64, bool) {
	v, ok := textextract.ParseFirstFloatOK(dailyChargeRe, rawText)
	if !ok {
		return 0, false
	}
	return textextract.RoundDollarsToCents(v), true
}

// DailyChargeToMonthlyCents applies the solver's day->month conversion:
// 30 * dailyCents, rounded to the nearest cent.
func DailyChargeToMonthlyCents(dailyCents int64) int64 {
	return roundHalfUp(float64(dailyCents) * 30.0)
}

func roundHalfUp(v float64) int64 {
	if v < 0 {
		return -int64(-v + 0.5)
	}
	return int64(v + 0.5)
}

var serviceFeeCutoffRe = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Monthly\s+Service\s+Fee\s*\$([0-9]+(?:\.[0-9]+)?).{0,60}?<=\s*([0-9,]+)\s*kWh`),
	regexp.MustCompile(`(?i)Usage\s+Charge\s*\$([0-9]+(?:\.[0-9]+)?).{0,60}?<\s*([0-9,]+)\s*kWh`),
}

// ServiceFeeCutoff is a flat fee that applies only up to a usage cutoff,
// e.g. "$8.00 per billing cycle for usage (<=1999 kWh)".
type ServiceFeeCutoff struct {
	FeeCents  int64
	CutoffKwh float64
	Inclusive bool // true for "<=", false for strict "<"
}

// ExtractServiceFeeCutoff finds a service-fee-with-usage-cutoff disclosure.
func ExtractServiceFeeCutoff(rawText string) (ServiceFeeCutoff, bool) {
	for i, re := range serviceFeeCutoffRe {
		m := re.FindStringSubmatch(rawText)
		if m == nil {
			continue
		}
		var fee float64
		fee, _ = strconv.ParseFloat(m[1], 64)
		cutoff := parseKwhToken(m[2])
		return ServiceFeeCutoff{
			FeeCents:  textextract.RoundDollarsToCents(fee),
			CutoffKwh: cutoff,
			Inclusive: i == 0, // first pattern is the "<=" form
		}, true
	}
	return ServiceFeeCutoff{}, false
}

var (
	prepaidDailyRe  = regexp.MustCompile(`(?i)\$([0-9]+(?:\.[0-9]+)?)\s*per\s*day`)
	prepaidCreditRe = regexp.MustCompile(`(?i)Monthly\s+Credit\s*-?\$([0-9]+(?:\.[0-9]+)?)\s*Applies:?\s*([0-9,]+)\s*kWh\s*usage\s*or\s*less`)
)

// PrepaidRules holds the deterministic extraction of a prepaid plan's daily
// charge plus monthly max-usage credit.
type PrepaidRules struct {
	DailyChargeCents   int64
	HasDailyCharge     bool
	MonthlyCreditCents int64
	MaxUsageKwh        float64
	HasMonthlyCredit   bool
}

// ExtractPrepaidRules finds a prepaid daily charge and/or monthly credit.
func ExtractPrepaidRules(rawText string) PrepaidRules {
	var out PrepaidRules
	if v, ok := textextract.ParseFirstFloatOK(prepaidDailyRe, rawText); ok {
		out.DailyChargeCents = textextract.RoundDollarsToCents(v)
		out.HasDailyCharge = true
	}
	if m := prepaidCreditRe.FindStringSubmatch(rawText); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		out.MonthlyCreditCents = textextract.RoundDollarsToCents(v)
		out.MaxUsageKwh = parseKwhToken(m[2])
		out.HasMonthlyCredit = true
	}
	return out
}
