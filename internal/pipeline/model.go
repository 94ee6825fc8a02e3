// Package pipeline implements the Per-Home Pipeline Orchestrator (spec
// §4.10) and the persisted-state shapes it reads and writes (spec §6): the
// bounded, idempotent per-home job that maps offers to rate templates,
// builds usage buckets, and fills the estimate cache. Grounded on the
// teacher's internal/cron/batch.go (a fixed step sequence over a collection
// of items, each step bounded and individually resumable) generalized from
// "one batch run over all providers" to "one run over one home's offers".
package pipeline

import (
	"time"

	"github.com/wattbuy/planengine/internal/computability"
	"github.com/wattbuy/planengine/internal/rates"
)

// Reason is why a pipeline run was triggered (spec §4.10 Inputs).
type Reason string

const (
	ReasonMonthlyRefresh    Reason = "monthly_refresh"
	ReasonPlansFallback     Reason = "plans_fallback"
	ReasonDashboardBootstrap Reason = "dashboard_bootstrap"
)

// JobStatus is a PipelineJob's lifecycle state (spec §3).
type JobStatus string

const (
	JobRunning JobStatus = "RUNNING"
	JobDone    JobStatus = "DONE"
	JobError   JobStatus = "ERROR"
)

// Budgets bounds a single run, per spec §5's cancellation/timeout and
// §4.10's "bounded by maxTemplateOffers/maxEstimatePlans/timeBudgetMs"
// language.
type Budgets struct {
	MaxTemplateOffers int
	MaxEstimatePlans  int
	TimeBudgetMs      int
}

// DefaultBudgets returns the spec's defaults, with TimeBudgetMs already
// clamped to spec §5's [1500, 25000] contract.
func DefaultBudgets() Budgets {
	return Budgets{
		MaxTemplateOffers: 8,
		MaxEstimatePlans:  8,
		TimeBudgetMs:      12000,
	}
}

// ClampTimeBudget enforces spec §5's timeBudgetMs bounds.
func ClampTimeBudget(ms int) int {
	if ms < 1500 {
		return 1500
	}
	if ms > 25000 {
		return 25000
	}
	return ms
}

// Counts tallies what a run actually did, per spec §8's idempotence
// invariant ("the second run reports estimatesAlreadyCached == candidate
// count and estimatesComputed == 0").
type Counts struct {
	OffersSeen             int
	TemplatesMapped        int
	TemplatesQueued        int
	EstimatesComputed      int
	EstimatesAlreadyCached int
	EstimatesQuarantined   int
	EstimatesSkipped       int
}

// PipelineJob is spec §3/§6's PipelineJobSnapshot.
type PipelineJob struct {
	HomeID            string
	RunID             string
	Status            JobStatus
	Reason            Reason
	CalcVersion       string
	StartedAt         time.Time
	FinishedAt        *time.Time
	CooldownUntil     time.Time
	LastCalcWindowEnd *time.Time
	Counts            Counts
	LastError         string
}

// RatePlan is spec §3/§6's persisted RatePlan record: a RateStructure plus
// the computability verdict derived from it and bookkeeping for when that
// verdict was last derived.
type RatePlan struct {
	ID                 string
	EflPdfSha256       string
	EflURL             string
	RateStructure      rates.RateStructure
	PlanCalcVersion    string
	PlanCalcStatus     computability.Status
	PlanCalcReasonCode computability.ReasonCode
	RequiredBucketKeys []string
	SupportedFeatures  map[string]bool
	PlanCalcDerivedAt  time.Time
}

// OfferIdRatePlanMap is spec §3/§6's offerId -> ratePlanId link.
type OfferIdRatePlanMap struct {
	OfferID      string
	RatePlanID   string
	LastLinkedAt time.Time
	LinkedBy     string
}

// HouseAddress is the minimal slice of HouseAddressRepo (spec §6) the
// orchestrator needs: enough to drive TDSP lookup and usage bucketing.
type HouseAddress struct {
	HomeID   string
	TdspSlug string
	IsRenter bool
}

// RunInput is the Per-Home Pipeline Orchestrator's input bundle (spec
// §4.10).
type RunInput struct {
	HomeID   string
	Reason   Reason
	IsRenter bool
	Budgets  Budgets
}
