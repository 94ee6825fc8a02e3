package rates

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/wattbuy/planengine/pkg/textextract"
)

// Tier text forms recognized, per spec §4.3:
//   "0 – 1000 kWh 10.9852¢"          (bracketed range form)
//   "> 1000 kWh 12.9852¢"            (open-ended form; min becomes N+1)
//   "(0 to 1000 kWh) 10.9852 cents per kWh" (parenthesized line form)
var (
	tierRangeRe = regexp.MustCompile(`(?i)([0-9,]+(?:\.[0-9]+)?)\s*[-–]\s*([0-9,]+(?:\.[0-9]+)?)\s*kWh[^0-9¢]{0,20}([0-9]+(?:\.[0-9]+)?)\s*[¢c]`)
	tierOpenRe  = regexp.MustCompile(`(?i)>\s*([0-9,]+(?:\.[0-9]+)?)\s*kWh[^0-9¢]{0,20}([0-9]+(?:\.[0-9]+)?)\s*[¢c]`)
	tierParenRe = regexp.MustCompile(`(?i)\(\s*([0-9,]+(?:\.[0-9]+)?)\s*to\s*([0-9,]+(?:\.[0-9]+)?)\s*kWh\s*\)[^0-9]{0,20}([0-9]+(?:\.[0-9]+)?)\s*cents?\s*per\s*kWh`)
)

func parseKwhToken(s string) float64 {
	s = strings.ReplaceAll(s, ",", "")
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// ExtractUsageTiers scans raw EFL text for tiered usage-charge disclosures
// and returns the raw, possibly-gapped tiers found (min/max/rate in the
// order they appeared). Contiguity (min==prev max, at most one open-ended
// tail tier) is NOT enforced here, and the Gap Solver does not enforce it
// either; computability.Analyze rejects a non-contiguous tier list.
func ExtractUsageTiers(rawText string) []UsageTier {
	var tiers []UsageTier
	seen := map[string]bool{}

	add := func(min, max float64, open bool, rate float64) {
		key := strconv.FormatFloat(min, 'f', 2, 64) + "|" + strconv.FormatFloat(max, 'f', 2, 64) + "|" + strconv.FormatFloat(rate, 'f', 4, 64)
		if seen[key] {
			return
		}
		seen[key] = true
		var maxPtr *float64
		if !open {
			m := max
			maxPtr = &m
		}
		tiers = append(tiers, UsageTier{MinKwh: min, MaxKwh: maxPtr, RateCentsPerKwh: textextract.RoundCents(rate)})
	}

	for _, m := range tierRangeRe.FindAllStringSubmatch(rawText, -1) {
		lo := parseKwhToken(m[1])
		hi := parseKwhToken(m[2])
		rate, _ := strconv.ParseFloat(m[3], 64)
		add(lo, hi, false, rate)
	}
	for _, m := range tierParenRe.FindAllStringSubmatch(rawText, -1) {
		lo := parseKwhToken(m[1])
		hi := parseKwhToken(m[2])
		rate, _ := strconv.ParseFloat(m[3], 64)
		add(lo, hi, false, rate)
	}
	for _, m := range tierOpenRe.FindAllStringSubmatch(rawText, -1) {
		// "> N kWh" means the open tier's MinKwh is N+1, per spec §8's
		// boundary example ("> 1200 kWh X¢" models as [1201, infinity) @ X¢).
		n := parseKwhToken(m[1])
		rate, _ := strconv.ParseFloat(m[2], 64)
		add(n+1, 0, true, rate)
	}

	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].MinKwh < tiers[j].MinKwh })
	return tiers
}
