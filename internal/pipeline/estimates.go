package pipeline

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/wattbuy/planengine/internal/cache"
	"github.com/wattbuy/planengine/internal/computability"
	"github.com/wattbuy/planengine/internal/estimate"
)

// unionRequiredBucketKeys is spec §4.10 step 4: "building union of required
// buckets across candidate templates".
func unionRequiredBucketKeys(plans []RatePlan) []string {
	seen := make(map[string]bool)
	for _, p := range plans {
		for _, k := range p.RequiredBucketKeys {
			seen[k] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// estimateInputsFor builds the canonical hash-source bundle for one
// (home, template) pair, per spec §3/§6's EstimateInputs.
func estimateInputsFor(homeID string, tdspSlug string, plan RatePlan, buckets BucketsResult) estimate.EstimateInputs {
	rsJSON, _ := json.Marshal(plan.RateStructure)
	return estimate.EstimateInputs{
		EngineVersion:       estimate.EngineVersion,
		MonthsCount:         len(buckets.YearMonths),
		AnnualKwh:           buckets.AnnualKwh,
		Tdsp:                tdspSlug,
		RateStructureSha:    estimate.RateStructureSha(string(rsJSON)),
		YearMonths:          append([]string(nil), buckets.YearMonths...),
		BucketKeys:          plan.RequiredBucketKeys,
		UsageBucketsByMonth: buckets.UsageBucketsByMonth,
	}
}

// fillEstimateOutcome is one (offer, template) pair's outcome from spec
// §4.10 step 5.
type fillEstimateOutcome struct {
	RatePlanID   string
	OfferID      string
	Skipped      bool
	SkipReason   string
	Quarantined  bool
	QueueReason  string
	CacheHit     bool
	Estimate     estimate.Estimate
	InputsSha256 string
}

// fillEstimateForPlan implements spec §4.10 step 5 for a single mapped
// template: re-derive computability, honor the cache, and run the
// estimator on a miss.
func fillEstimateForPlan(
	homeID string,
	offerID string,
	plan RatePlan,
	tdspSlug string,
	tdsp estimate.TdspRates,
	disclosedAvgPrice1000 float64,
	buckets BucketsResult,
	cacheStore cache.Store,
	opts computability.Options,
	expiresAfter time.Duration,
	now time.Time,
) fillEstimateOutcome {
	out := fillEstimateOutcome{RatePlanID: plan.ID, OfferID: offerID}

	computed := computability.Analyze(plan.RateStructure, opts)
	if computed.Status == computability.StatusNotComputable {
		out.Skipped = true
		out.SkipReason = string(computed.ReasonCode)
		if computability.IsQuarantineWorthy(computed.ReasonCode) {
			out.Quarantined = true
			out.QueueReason = string(computed.ReasonCode)
		}
		return out
	}

	in := estimateInputsFor(homeID, tdspSlug, plan, buckets)
	inputsSha := estimate.InputsSha256(in)
	out.InputsSha256 = inputsSha

	if entry, ok := cacheStore.Get(homeID, plan.ID, inputsSha, in.MonthsCount); ok {
		out.CacheHit = true
		out.Estimate = entry.Estimate
		return out
	}

	mode := estimate.ModeDefault
	anchor := disclosedAvgPrice1000
	if computed.ReasonCode == computability.ReasonIndexedApproximateOK {
		mode = estimate.ModeIndexedEFLAnchorApprox
	}

	result := estimate.Run(estimate.Inputs{
		AnnualKwh:                        buckets.AnnualKwh,
		MonthsCount:                      in.MonthsCount,
		TdspRates:                        tdsp,
		RateStructure:                    plan.RateStructure,
		YearMonths:                       buckets.YearMonths,
		UsageBucketsByMonth:              buckets.UsageBucketsByMonth,
		Mode:                             mode,
		DisclosedAvgPrice1000CentsPerKwh: anchor,
		HasHourlyBuckets:                 opts.AllowIntraDayTOU,
	})
	out.Estimate = result

	if result.Status == estimate.StatusNotComputable {
		out.Skipped = true
		out.SkipReason = result.Reason
		return out
	}

	_ = cacheStore.Put(cache.Entry{
		HomeID:       homeID,
		RatePlanID:   plan.ID,
		InputsSha256: inputsSha,
		MonthsCount:  in.MonthsCount,
		Estimate:     result,
		ComputedAt:   now,
	}, now.Add(expiresAfter))

	return out
}
