// Package rates implements the deterministic Electricity Facts Label (EFL)
// pricing pipeline: text normalization, an advisory AI draft parse, regex/
// line-scan extractors, the disclosed-average-price validator, the gap
// solver, and the pass-strength scorer. Everything in this package is pure
// and synchronous; the only I/O boundary is the AI draft parser, which is
// expressed as an interface so transport failures never propagate past it.
package rates

import "time"

// RateType enumerates the shapes a plan's pricing can take.
type RateType string

const (
	RateFixed      RateType = "FIXED"
	RateVariable   RateType = "VARIABLE"
	RateIndexed    RateType = "INDEXED"
	RateTimeOfUse  RateType = "TIME_OF_USE"
)

// CreditType enumerates the two additive bill-credit shapes this engine
// understands.
type CreditType string

const (
	CreditThresholdMin CreditType = "THRESHOLD_MIN" // applies when usage >= threshold
	CreditThresholdMax CreditType = "THRESHOLD_MAX" // applies when usage <= threshold
)

// UsageTier is one step of a tiered energy charge. Tiers are contiguous:
// the first tier starts at 0, each subsequent tier's MinKwh equals the prior
// tier's MaxKwh, and at most one tier (necessarily the last) has a nil
// MaxKwh (open-ended).
type UsageTier struct {
	MinKwh        float64
	MaxKwh        *float64 // nil means open-ended
	RateCentsPerKwh float64
}

// TimeOfUsePeriod describes one named pricing window, either all-day
// (seasonal promotion modeling) or intra-day (a true peak/off-peak window).
type TimeOfUsePeriod struct {
	Label           string
	StartHour       int // 0-23, inclusive
	EndHour         int // 0-24, exclusive (24 means "through midnight")
	DaysOfWeek      []int // 0=Sunday .. 6=Saturday; empty means all days
	Months          []int // 1-12; nil/empty means all months
	RateCentsPerKwh float64
	IsFree          bool
}

// IsAllDay reports whether this period spans the full 24 hours, which is
// what the computability analyzer and estimator use to distinguish a
// seasonal TOU promotion (computable from monthly buckets) from a true
// intra-day peak/off-peak window (needs hourly buckets).
func (p TimeOfUsePeriod) IsAllDay() bool {
	return p.StartHour == 0 && p.EndHour >= 24
}

// BillCreditRule is one additive credit rule as recorded on PlanRules (the
// engine's computation-ready, "raw event" view). Multiple rules are
// evaluated additively against the same month's usage -- see
// RateStructureBillCredits for the normalized, non-overlapping persisted
// form.
type BillCreditRule struct {
	CreditDollars float64
	ThresholdKwh  float64
	MonthsOfYear  []int // nil/empty means all months
	Type          CreditType
}

// PlanRules is the engine-level, computation-ready view of a plan's pricing,
// produced by the AI draft parser and/or the deterministic extractors and
// consumed by the validator and solver. Bill credits here are kept as raw,
// possibly-overlapping events; RateStructure normalizes them for
// persistence and for the estimator.
type PlanRules struct {
	RateType                RateType
	PlanTypeHint            string
	DefaultRateCentsPerKwh  *float64
	BaseChargePerMonthCents *float64
	UsageTiers              []UsageTier
	TimeOfUsePeriods        []TimeOfUsePeriod
	BillCredits             []BillCreditRule
}

// BillCreditPersistedRule is one non-overlapping segment of the normalized
// bill-credit schedule stored on a RateStructure. See the Gap Solver (§4.5
// step 8) for how raw additive events become these segments.
type BillCreditPersistedRule struct {
	CreditAmountCents int64
	MinUsageKWh       *float64
	MaxUsageKWh       *float64
	Label             string
}

// RateStructureBillCredits is the persisted, canonical bill-credit shape.
type RateStructureBillCredits struct {
	HasBillCredit bool
	Rules         []BillCreditPersistedRule
}

// Evidence is the opaque envelope RateStructure carries recording how it was
// validated, healed, and when. It replaces the source's cyclic
// RatePlan<->Validation reference (spec §9): the plan doesn't point back at
// its validation, the validation is embedded.
type Evidence struct {
	Validation     Validation
	SolverApplied  []string
	SolveMode      SolveMode
	ComputedAt     time.Time
	AssumptionsUsed AssumptionsUsed
}

// RateStructure is the canonical, persisted pricing template.
type RateStructure struct {
	Type                RateType
	BaseMonthlyFeeCents int64
	EnergyRateCents     *float64 // FIXED only
	UsageTiers          []UsageTier
	TimeOfUsePeriods    []TimeOfUsePeriod
	BillCredits         RateStructureBillCredits
	Evidence            Evidence
}

// ValidationStatus is the outcome of comparing a candidate structure's
// modeled price against the EFL's disclosed average-price table.
type ValidationStatus string

const (
	ValidationPass ValidationStatus = "PASS"
	ValidationFail ValidationStatus = "FAIL"
)

// TdspAppliedMode records which delivery-charge assumption the validator
// used when modeling a point.
type TdspAppliedMode string

const (
	TdspNone               TdspAppliedMode = "NONE"
	TdspFlat               TdspAppliedMode = "FLAT"
	TdspTieredByUtilityTable TdspAppliedMode = "TIERED_BY_UTILITY_TABLE"
)

// AssumptionsUsed records the modeling assumptions a validator run made, so
// later stages (and humans reviewing a FAIL) can see exactly what was
// guessed versus what was disclosed.
type AssumptionsUsed struct {
	TdspAppliedMode    TdspAppliedMode
	NightUsagePercent  *float64
	TouHours           *string
}

// ValidationPoint is one usage-level comparison between the EFL's disclosed
// ¢/kWh and the structure's modeled ¢/kWh at that usage.
type ValidationPoint struct {
	UsageKwh              float64
	ExpectedCentsPerKwh   float64
	ModeledCentsPerKwh    float64
	DiffCentsPerKwh       float64
}

// QueueReason is a structured explanation for why a template needed admin
// review, persisted verbatim into ReviewQueueItem.QueueReason.
type QueueReason struct {
	Code    string
	Message string
	Details map[string]string
}

// Validation is the Avg-Price Validator's output.
type Validation struct {
	Status              ValidationStatus
	ToleranceCentsPerKwh float64
	Points              []ValidationPoint
	AssumptionsUsed     AssumptionsUsed
	QueueReason         *QueueReason
}

// SolveMode records what the Gap Solver accomplished.
type SolveMode string

const (
	SolveNone               SolveMode = "NONE"
	SolvePassWithAssumptions SolveMode = "PASS_WITH_ASSUMPTIONS"
	SolveFail               SolveMode = "FAIL"
)

// SolverResult is the Gap Solver's output: immutable transformations of the
// draft plus the list of repairs actually applied.
type SolverResult struct {
	DerivedPlanRules      PlanRules
	DerivedRateStructure  RateStructure
	SolverApplied         []string
	ValidationAfter       Validation
	SolveMode             SolveMode
	QueueReason           *QueueReason
}

// PassStrengthClass classifies how well a PASS validation matches the
// disclosed table at interior usage points.
type PassStrengthClass string

const (
	PassStrong  PassStrengthClass = "STRONG"
	PassWeak    PassStrengthClass = "WEAK"
	PassInvalid PassStrengthClass = "INVALID"
)

// OffPointDiff is one interior-point modeled-vs-expected comparison used by
// the pass-strength scorer.
type OffPointDiff struct {
	UsageKwh            float64
	ExpectedCentsPerKwh float64
	ModeledCentsPerKwh  float64
	DiffCentsPerKwh     float64
}

// PassStrength is the Pass-Strength Scorer's output.
type PassStrength struct {
	Class         PassStrengthClass
	Reasons       []string
	OffPointDiffs []OffPointDiff
}

// Offer is the immutable-within-a-run source record describing a retail
// plan offer.
type Offer struct {
	ID                  string
	Supplier            string
	PlanName            string
	TermMonths          int
	EflURL              string
	DisclosedAvgPrice500  float64
	DisclosedAvgPrice1000 float64
	DisclosedAvgPrice2000 float64
	TdspTerritory       string
	RenewablePercent    float64
}

// DisclosedAvgPriceTable returns the offer's disclosed average-price points
// as a usage->cents/kWh map, which the validator treats as the minimum
// required comparison set (spec §4.4 also allows "any other values the
// disclosed table offers" when richer data is embedded in the raw text).
func (o Offer) DisclosedAvgPriceTable() map[float64]float64 {
	return map[float64]float64{
		500:  o.DisclosedAvgPrice500,
		1000: o.DisclosedAvgPrice1000,
		2000: o.DisclosedAvgPrice2000,
	}
}

// EFLDocument is the content-addressed EFL identity record.
type EFLDocument struct {
	Sha256           string
	RawText          string
	RepPuctCertificate string
	EflVersionCode   string
}
