// Package textextract holds small regex/line-scan helpers shared by the
// deterministic EFL extractors in internal/rates. It mirrors the shape of a
// provider-agnostic parsing toolkit: no extractor owns these helpers, they're
// reused across tiers, fees, seasonal discounts, TOU windows, and credits.
package textextract

import (
	"fmt"
	"regexp"
	"strings"
)

// ParseFirstFloat finds the first float match in s using re. The regex must
// have at least one capture group. Returns 0 if there's no match.
func ParseFirstFloat(re *regexp.Regexp, s string) float64 {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0
	}
	var v float64
	fmt.Sscanf(m[1], "%f", &v)
	return v
}

// ParseFirstFloatOK is ParseFirstFloat plus a found flag, for callers that
// need to distinguish "matched zero" from "did not match".
func ParseFirstFloatOK(re *regexp.Regexp, s string) (float64, bool) {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0, false
	}
	var v float64
	fmt.Sscanf(m[1], "%f", &v)
	return v, true
}

// Lines splits text into trimmed, non-empty lines, preserving order.
func Lines(text string) []string {
	raw := strings.Split(text, "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}

// RoundCents rounds a cents-per-kWh value to 2 decimal places (hundredths of
// a cent), matching the "hundredths" precision contract for ¢/kWh values.
func RoundCents(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

// RoundDollarsToCents rounds a dollar amount to the nearest integer cent and
// returns it as integer cents.
func RoundDollarsToCents(dollars float64) int64 {
	if dollars < 0 {
		return -int64(-dollars*100 + 0.5)
	}
	return int64(dollars*100 + 0.5)
}

// ContainsAny reports whether s contains any of the given substrings,
// case-insensitively.
func ContainsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
