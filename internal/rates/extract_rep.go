package rates

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/wattbuy/planengine/pkg/textextract"
)

var energyChargeCandidateRe = regexp.MustCompile(`(?i).{0,60}Energy\s+Charge.{0,10}?([0-9]+(?:\.[0-9]+)?)\s*[¢c].{0,60}`)

// repVsTdspLineMarkers flags a candidate's containing line as TDSP
// delivery, not REP energy, per spec §4.3.
var repVsTdspLineMarkers = []string{"delivery", "tdsp", "tdu"}

// repCandidate is one "Energy Charge"-adjacent ¢/kWh token found in the raw
// text, with enough context to disambiguate it from a TDSP delivery rate.
type repCandidate struct {
	RateCentsPerKwh float64
	Line            string
}

// ExtractREPEnergyRate disambiguates the REP's own energy rate from the
// TDSP's passthrough delivery rate, per spec §4.3: reject any candidate
// whose line mentions Delivery/TDSP/TDU, and reject any candidate within
// ±0.02¢ of the known TDSP delivery rate (when available); among the
// survivors prefer the one that isn't a TDSP match, otherwise the larger of
// the remaining candidates.
func ExtractREPEnergyRate(rawText string, tdspDeliveryCentsPerKwh *float64) (float64, bool) {
	candidates := findREPCandidates(rawText)
	if len(candidates) == 0 {
		return 0, false
	}

	var survivors []repCandidate
	for _, c := range candidates {
		lowerLine := strings.ToLower(c.Line)
		isTdspLine := false
		for _, marker := range repVsTdspLineMarkers {
			if strings.Contains(lowerLine, marker) {
				isTdspLine = true
				break
			}
		}
		if isTdspLine {
			continue
		}
		if tdspDeliveryCentsPerKwh != nil {
			if absf(c.RateCentsPerKwh-*tdspDeliveryCentsPerKwh) <= 0.02 {
				continue
			}
		}
		survivors = append(survivors, c)
	}

	if len(survivors) == 0 {
		// Every candidate looked like a TDSP rate or matched its line
		// marker; fall back to the largest raw candidate rather than
		// reporting nothing, since an EFL with exactly one energy-charge
		// disclosure may legitimately sit near the TDSP rate by coincidence.
		best := candidates[0]
		for _, c := range candidates[1:] {
			if c.RateCentsPerKwh > best.RateCentsPerKwh {
				best = c
			}
		}
		return textextract.RoundCents(best.RateCentsPerKwh), true
	}

	best := survivors[0]
	for _, c := range survivors[1:] {
		if c.RateCentsPerKwh > best.RateCentsPerKwh {
			best = c
		}
	}
	return textextract.RoundCents(best.RateCentsPerKwh), true
}

func findREPCandidates(rawText string) []repCandidate {
	var out []repCandidate
	for _, line := range textextract.Lines(rawText) {
		if !strings.Contains(strings.ToLower(line), "energy charge") {
			continue
		}
		m := regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)\s*[¢c]`).FindStringSubmatch(line)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		out = append(out, repCandidate{RateCentsPerKwh: v, Line: line})
	}
	return out
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
