package rates

import "sort"

// StrictToleranceCentsPerKwh and WeakToleranceCentsPerKwh resolve Open
// Question 3 (spec §9): a PASS is STRONG when interior points also fall
// within the validator's normal ±0.25¢ tolerance, WEAK when they only clear
// a looser ±1.0¢ band, and INVALID otherwise.
const (
	StrictToleranceCentsPerKwh = 0.25
	WeakToleranceCentsPerKwh   = 1.0
)

// interiorUsagePoints are synthetic usage levels between the EFL's
// disclosed 500/1000/2000 kWh anchors, used to catch structures that only
// happen to match at the disclosed points (e.g. a tier boundary placed
// exactly on 1000 kWh that diverges everywhere else).
var interiorUsagePoints = []float64{750, 1500}

// ScorePassStrength is the Pass-Strength Scorer (spec §4.6). It only applies
// to a Validation already at ValidationPass; callers should not call it on
// a FAIL.
func ScorePassStrength(rawText string, pr PlanRules, disclosed map[float64]float64, validation Validation) PassStrength {
	if validation.Status != ValidationPass {
		return PassStrength{Class: PassInvalid, Reasons: []string{"underlying validation did not PASS"}}
	}

	anchors := make([]float64, 0, len(disclosed))
	for u := range disclosed {
		anchors = append(anchors, u)
	}
	sort.Float64s(anchors)
	if len(anchors) < 2 {
		return PassStrength{Class: PassWeak, Reasons: []string{"fewer than two disclosed anchors; interior interpolation unavailable"}}
	}

	tdspMode, tdspCents := detectTdspAssumption(rawText)

	var diffs []OffPointDiff
	worst := 0.0
	for _, u := range interiorUsagePoints {
		if u <= anchors[0] || u >= anchors[len(anchors)-1] {
			continue
		}
		expected := interpolate(anchors, disclosed, u)
		modeled := modeledCentsPerKwhAtUsage(pr, u, tdspCents, tdspMode)
		diff := modeled - expected
		diffs = append(diffs, OffPointDiff{
			UsageKwh:            u,
			ExpectedCentsPerKwh: expected,
			ModeledCentsPerKwh:  modeled,
			DiffCentsPerKwh:     diff,
		})
		if absf(diff) > worst {
			worst = absf(diff)
		}
	}

	if len(diffs) == 0 {
		return PassStrength{Class: PassWeak, Reasons: []string{"no interior points fall strictly between disclosed anchors"}}
	}

	switch {
	case worst <= StrictToleranceCentsPerKwh:
		return PassStrength{Class: PassStrong, OffPointDiffs: diffs}
	case worst <= WeakToleranceCentsPerKwh:
		return PassStrength{Class: PassWeak, Reasons: []string{"interior points exceed strict tolerance but hold within the weak band"}, OffPointDiffs: diffs}
	default:
		return PassStrength{Class: PassInvalid, Reasons: []string{"interior points diverge beyond the weak tolerance band; PASS likely coincidental at disclosed anchors only"}, OffPointDiffs: diffs}
	}
}

// interpolate linearly interpolates the disclosed ¢/kWh table at usage u,
// which must lie strictly between the first and last sorted anchor.
func interpolate(sortedAnchors []float64, disclosed map[float64]float64, u float64) float64 {
	for i := 0; i < len(sortedAnchors)-1; i++ {
		lo, hi := sortedAnchors[i], sortedAnchors[i+1]
		if u >= lo && u <= hi {
			loVal, hiVal := disclosed[lo], disclosed[hi]
			if hi == lo {
				return loVal
			}
			frac := (u - lo) / (hi - lo)
			return loVal + frac*(hiVal-loVal)
		}
	}
	return disclosed[sortedAnchors[len(sortedAnchors)-1]]
}
