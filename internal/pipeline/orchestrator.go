package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/wattbuy/planengine/internal/cache"
	"github.com/wattbuy/planengine/internal/computability"
	"github.com/wattbuy/planengine/internal/queue"
	"github.com/wattbuy/planengine/internal/rates"
)

// monthlyCadenceDays, maxRunningMinutes, and the cooldown windows below are
// spec §5's cadence/cooldown contract.
const (
	monthlyCadenceDays = 30
	maxRunningMinutes  = 3
	// shortCooldownOnPartial and normalCooldown are spec §5's "cooldown is
	// shortened (<=15s)" rule versus the steady-state cooldown between
	// full runs for a home.
	shortCooldownOnPartial = 15 * time.Second
	normalCooldown         = 6 * time.Hour
	materializedTTL        = 24 * time.Hour
)

// Orchestrator runs spec §4.10's per-home pipeline. It holds every
// collaborator boundary spec §6 names; callers wire concrete
// implementations (live HTTP clients, GORM-backed repos, or in-memory test
// doubles) through these fields.
type Orchestrator struct {
	CalcVersion string
	EngineVersion string

	Offers        OfferSource
	EFL           EFLFetcher
	AIParser      AIDraftParser
	TdspRates     TdspRatesSource
	Buckets       UsageBucketsSource
	HouseAddresses HouseAddressRepo

	RatePlans         RatePlanRepo
	OfferMap          OfferIdRatePlanMapRepo
	Jobs              PipelineJobRepo
	ReviewQueue       ReviewQueueRepo
	EstimateCache     cache.Store

	ComputabilityOptions computability.Options

	// Now lets tests substitute a fixed clock; defaults to time.Now.
	Now func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Run executes spec §4.10's six steps for one home, honoring §5's gating,
// ordering, and cooldown rules. It never panics. A missing house address,
// an offers-fetch failure, or missing TDSP rates end the run in an ERROR
// snapshot and a returned error; no usage yet ends it DONE with a nil
// error. In every case the snapshot, with its LastError, is saved.
func (o *Orchestrator) Run(ctx context.Context, in RunInput) (PipelineJob, error) {
	now := o.now()
	budgets := in.Budgets
	if budgets.MaxTemplateOffers == 0 && budgets.MaxEstimatePlans == 0 && budgets.TimeBudgetMs == 0 {
		budgets = DefaultBudgets()
	}
	budgets.TimeBudgetMs = ClampTimeBudget(budgets.TimeBudgetMs)
	deadline := now.Add(time.Duration(budgets.TimeBudgetMs) * time.Millisecond)

	// --- Step 1: gating against the prior job (spec §5: at most one
	// RUNNING job per home; monthly_refresh honors the cadence). ---
	if prior, ok, err := o.Jobs.Latest(ctx, in.HomeID); err == nil && ok {
		if prior.Status == JobRunning && now.Sub(prior.StartedAt) < maxRunningMinutes*time.Minute {
			return prior, fmt.Errorf("pipeline: home %s already has a running job (started %s)", in.HomeID, prior.StartedAt)
		}
		if now.Before(prior.CooldownUntil) {
			return prior, fmt.Errorf("pipeline: home %s is in cooldown until %s", in.HomeID, prior.CooldownUntil)
		}
		if in.Reason == ReasonMonthlyRefresh && prior.LastCalcWindowEnd != nil {
			if now.Sub(*prior.LastCalcWindowEnd) < monthlyCadenceDays*24*time.Hour {
				return prior, nil
			}
		}
	}

	job := PipelineJob{
		HomeID:      in.HomeID,
		RunID:       uuid.New().String(),
		Status:      JobRunning,
		Reason:      in.Reason,
		CalcVersion: o.CalcVersion,
		StartedAt:   now,
	}
	if err := o.Jobs.Save(ctx, job); err != nil {
		log.Printf("pipeline: save initial job snapshot for home %s failed: %v", in.HomeID, err)
	}

	addr, addrOK, addrErr := o.HouseAddresses.Get(ctx, in.HomeID)
	if addrErr != nil || !addrOK {
		job.Status = JobError
		job.LastError = "missing or unresolved house address"
		return o.finish(ctx, job, now, shortCooldownOnPartial)
	}

	offers, err := o.Offers.FetchOffers(ctx, in.HomeID)
	if err != nil {
		job.Status = JobError
		job.LastError = fmt.Sprintf("offers fetch failed: %v", err)
		return o.finish(ctx, job, now, shortCooldownOnPartial)
	}
	job.Counts.OffersSeen = len(offers)

	offersByID := make(map[string]rates.Offer, len(offers))
	for _, offer := range offers {
		offersByID[offer.ID] = offer
	}

	// --- Step 3: template mapping, bounded. ---
	var mappedPlans []RatePlan
	mappedOffers := make([]string, 0, len(offers))
	processed := 0
	for _, offer := range offers {
		if processed >= budgets.MaxTemplateOffers || o.now().After(deadline) {
			break
		}
		if offer.EflURL == "" {
			continue
		}
		if existing, ok, _ := o.OfferMap.Get(ctx, offer.ID); ok && existing.RatePlanID != "" {
			if plan, ok2, _ := o.RatePlans.Get(ctx, existing.RatePlanID); ok2 {
				mappedPlans = append(mappedPlans, plan)
				mappedOffers = append(mappedOffers, offer.ID)
				continue
			}
		}
		processed++

		plan, queueReason, mapErr := o.mapOffer(ctx, offer)
		if mapErr != nil {
			_ = queue.EnqueueEFLParse(o.ReviewQueue, offer.ID, "", rates.QueueReason{Code: "FETCH_OR_PARSE_ERROR", Message: mapErr.Error()}, now)
			job.Counts.TemplatesQueued++
			continue
		}
		if plan == nil {
			if queueReason != nil {
				_ = queue.EnqueueEFLParse(o.ReviewQueue, offer.ID, "", *queueReason, now)
			}
			job.Counts.TemplatesQueued++
			continue
		}

		if err := o.OfferMap.Upsert(ctx, OfferIdRatePlanMap{OfferID: offer.ID, RatePlanID: plan.ID, LastLinkedAt: now, LinkedBy: "pipeline"}); err != nil {
			log.Printf("pipeline: offer map upsert failed for offer %s: %v", offer.ID, err)
		}
		mappedPlans = append(mappedPlans, *plan)
		mappedOffers = append(mappedOffers, offer.ID)
		job.Counts.TemplatesMapped++
	}

	// --- Step 4: usage bucket build (union of required keys). ---
	requiredKeys := unionRequiredBucketKeys(mappedPlans)
	buckets, bucketsErr := o.Buckets.BuildBuckets(ctx, BucketsRequest{
		HomeID:             in.HomeID,
		Source:             "pipeline",
		WindowEnd:          now,
		RequiredBucketKeys: requiredKeys,
		MonthsCount:        12,
	})
	if bucketsErr != nil || len(buckets.YearMonths) == 0 {
		// No usage yet is a soft reason (spec §7): finish DONE, don't
		// advance lastCalcWindowEnd.
		job.Status = JobDone
		job.LastError = "no usage data available yet"
		return o.finish(ctx, job, now, shortCooldownOnPartial)
	}

	tdsp, tdspOK, tdspErr := o.TdspRates.GetTdspRates(ctx, addr.TdspSlug, now)
	if tdspErr != nil || !tdspOK {
		job.Status = JobError
		job.LastError = "tdsp rates unavailable for " + addr.TdspSlug
		return o.finish(ctx, job, now, shortCooldownOnPartial)
	}

	// --- Step 5: estimate fill, bounded. ---
	filled := 0
	anyComputed := false
	for i, plan := range mappedPlans {
		if filled >= budgets.MaxEstimatePlans || o.now().After(deadline) {
			job.Counts.EstimatesSkipped += len(mappedPlans) - i
			break
		}
		filled++
		offerID := mappedOffers[i]

		disclosed1000 := offersByID[offerID].DisclosedAvgPrice1000
		outcome := fillEstimateForPlan(in.HomeID, offerID, plan, addr.TdspSlug, tdsp, disclosed1000, buckets, o.EstimateCache, o.ComputabilityOptions, materializedTTL, now)

		switch {
		case outcome.CacheHit:
			job.Counts.EstimatesAlreadyCached++
			queue.AutoResolveQuarantine(o.ReviewQueue, offerID, now)
		case outcome.Quarantined:
			job.Counts.EstimatesQuarantined++
			_ = queue.EnqueuePlanCalcQuarantine(o.ReviewQueue, offerID, plan.ID, rates.QueueReason{Code: outcome.QueueReason, Message: "plan structurally not computable"}, now)
		case outcome.Skipped:
			job.Counts.EstimatesSkipped++
		default:
			job.Counts.EstimatesComputed++
			anyComputed = true
			queue.AutoResolveQuarantine(o.ReviewQueue, offerID, now)
		}
	}

	job.Status = JobDone
	if anyComputed || job.Counts.EstimatesAlreadyCached > 0 {
		windowEnd := now
		job.LastCalcWindowEnd = &windowEnd
	}

	cooldown := normalCooldown
	if job.Counts.EstimatesSkipped > 0 && processed >= budgets.MaxTemplateOffers {
		// Bounded run left work undone: shorten cooldown for follow-on
		// batches, per spec §5.
		cooldown = shortCooldownOnPartial
	}
	return o.finish(ctx, job, now, cooldown)
}

func (o *Orchestrator) finish(ctx context.Context, job PipelineJob, startedAt time.Time, cooldown time.Duration) (PipelineJob, error) {
	finished := o.now()
	job.FinishedAt = &finished
	job.CooldownUntil = finished.Add(cooldown)
	if err := o.Jobs.Save(ctx, job); err != nil {
		log.Printf("pipeline: save final job snapshot for home %s failed: %v", job.HomeID, err)
	}
	if job.Status == JobError {
		return job, fmt.Errorf("pipeline: home %s run %s ended in error: %s", job.HomeID, job.RunID, job.LastError)
	}
	return job, nil
}

// mapOffer executes spec §4.10 step 3 for a single offer: fetch the EFL,
// run it through the full parse/validate/solve/score pipeline, and either
// return a persisted template or a review-queue reason. A nil plan with a
// nil error means "queued, nothing more to do here".
func (o *Orchestrator) mapOffer(ctx context.Context, offer rates.Offer) (*RatePlan, *rates.QueueReason, error) {
	fetched, err := o.EFL.FetchEFL(ctx, offer.EflURL)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch efl: %w", err)
	}

	rawText := fetched.RawText
	if rawText == "" && len(fetched.PDFBytes) > 0 {
		rawText, err = rates.ExtractPDFText(fetched.PDFBytes)
		if err != nil {
			return nil, nil, fmt.Errorf("extract pdf text: %w", err)
		}
	}

	if existing, ok, _ := o.RatePlans.GetByEflSha256(ctx, rates.Sha256Hex([]byte(rawText))); ok {
		return &existing, nil, nil
	}

	result, err := runEFLPipeline(ctx, o.AIParser, offer, rawText, fetched.PDFBytes, o.ComputabilityOptions)
	if err != nil {
		return nil, nil, err
	}

	if !result.ShouldPersist {
		return nil, result.QueueReason, nil
	}

	plan := RatePlan{
		ID:                 result.EflDocument.Sha256,
		EflPdfSha256:       result.EflDocument.Sha256,
		EflURL:             offer.EflURL,
		RateStructure:      result.RateStructure,
		PlanCalcVersion:    o.CalcVersion,
		PlanCalcStatus:     result.Computed.Status,
		PlanCalcReasonCode: result.Computed.ReasonCode,
		RequiredBucketKeys: result.Computed.RequiredBucketKeys,
		SupportedFeatures:  result.Computed.SupportedFeatures,
		PlanCalcDerivedAt:  o.now(),
	}
	saved, err := o.RatePlans.Upsert(ctx, plan)
	if err != nil {
		return nil, nil, fmt.Errorf("persist rate plan: %w", err)
	}
	return &saved, nil, nil
}
