package estimate

import (
	"fmt"
	"sort"

	"github.com/wattbuy/planengine/internal/computability"
	"github.com/wattbuy/planengine/internal/rates"
)

// Inputs is the True-Cost Estimator's input bundle (spec §4.8).
type Inputs struct {
	AnnualKwh           float64
	MonthsCount         int // always 12 in the current contract
	TdspRates           TdspRates
	RateStructure       rates.RateStructure
	YearMonths          []string            // sorted "YYYY-MM", len == MonthsCount
	UsageBucketsByMonth map[string]map[string]float64
	Mode                Mode
	// DisclosedAvgPrice1000 anchors ModeIndexedEFLAnchorApprox pricing.
	DisclosedAvgPrice1000CentsPerKwh float64
	HasHourlyBuckets                bool
}

const allBucketKey = computability.AllBucketKey

// Run is the True-Cost Estimator (spec §4.8): pure and deterministic in its
// inputs, never mutates anything, and returns every outcome (including
// failure) as a Status rather than an error.
func Run(in Inputs) Estimate {
	return run(in)
}

func run(in Inputs) Estimate {
	if len(in.YearMonths) == 0 {
		return Estimate{Status: StatusNotComputable, Reason: "no year-months supplied"}
	}

	structure := in.RateStructure
	intraDayTOU := structure.Type == rates.RateTimeOfUse && !allPeriodsAllDay(structure.TimeOfUsePeriods)
	if intraDayTOU && !in.HasHourlyBuckets {
		return Estimate{Status: StatusNotComputable, Reason: string(computability.ReasonNeedsHourlyIntervals)}
	}

	var components Components
	var monthly [12]float64
	var totalKwh float64

	for i, ym := range in.YearMonths {
		if i >= 12 {
			break
		}
		bucket := in.UsageBucketsByMonth[ym]
		monthKwh := bucket[allBucketKey]
		totalKwh += monthKwh

		repEnergyCents, err := repEnergyCentsForMonth(structure, bucket, monthKwh, ym, in)
		if err != "" {
			return Estimate{Status: StatusNotComputable, Reason: err}
		}

		repFixedDollars := float64(structure.BaseMonthlyFeeCents) / 100.0
		tdspDeliveryDollars := in.TdspRates.PerKwhDeliveryChargeCents / 100.0 * monthKwh
		tdspFixedDollars := in.TdspRates.MonthlyCustomerChargeDollars
		creditDollars := evaluateSegmentCredits(structure.BillCredits.Rules, monthKwh)

		monthCost := repEnergyCents/100.0 + repFixedDollars + tdspDeliveryDollars + tdspFixedDollars - creditDollars
		monthly[i] = monthCost

		components.RepEnergyDollars += repEnergyCents / 100.0
		components.RepFixedDollars += repFixedDollars
		components.TdspDeliveryDollars += tdspDeliveryDollars
		components.TdspFixedDollars += tdspFixedDollars
		components.CreditsDollars += creditDollars
	}

	annual := components.RepEnergyDollars + components.RepFixedDollars +
		components.TdspDeliveryDollars + components.TdspFixedDollars - components.CreditsDollars

	effectiveCents := 0.0
	if in.AnnualKwh > 0 {
		effectiveCents = annual / in.AnnualKwh * 100
	}

	status := StatusOK
	if in.Mode == ModeIndexedEFLAnchorApprox || intraDayTOU {
		status = StatusApproximate
	}

	return Estimate{
		Status:               status,
		AnnualCostDollars:    annual,
		MonthlyCostDollars:   monthly,
		EffectiveCentsPerKwh: effectiveCents,
		Components:           components,
		TdspRatesApplied:     in.TdspRates,
	}
}

func allPeriodsAllDay(periods []rates.TimeOfUsePeriod) bool {
	for _, p := range periods {
		if !p.IsAllDay() {
			return false
		}
	}
	return true
}

// repEnergyCentsForMonth returns the month's REP energy charge in cents, or
// a non-empty error reason if it cannot be computed.
func repEnergyCentsForMonth(structure rates.RateStructure, bucket map[string]float64, monthKwh float64, ym string, in Inputs) (float64, string) {
	if in.Mode == ModeIndexedEFLAnchorApprox {
		repCentsPerKwh := in.DisclosedAvgPrice1000CentsPerKwh - in.TdspRates.PerKwhDeliveryChargeCents
		if repCentsPerKwh < 0 {
			repCentsPerKwh = 0
		}
		return repCentsPerKwh * monthKwh, ""
	}

	switch structure.Type {
	case rates.RateFixed, rates.RateVariable, rates.RateIndexed:
		if len(structure.UsageTiers) > 0 {
			return tieredEnergyCents(structure.UsageTiers, monthKwh), ""
		}
		if structure.EnergyRateCents != nil {
			return *structure.EnergyRateCents * monthKwh, ""
		}
		return 0, "no energy rate or tiers on structure"
	case rates.RateTimeOfUse:
		month, err := monthNumber(ym)
		if err != "" {
			return 0, err
		}
		var total float64
		for _, p := range structure.TimeOfUsePeriods {
			if !p.IsAllDay() {
				return 0, string(computability.ReasonNeedsHourlyIntervals)
			}
			if periodCoversMonth(p, month) {
				total += p.RateCentsPerKwh * monthKwh
			}
		}
		return total, ""
	default:
		return 0, "unsupported rate type"
	}
}

func periodCoversMonth(p rates.TimeOfUsePeriod, month int) bool {
	if len(p.Months) == 0 {
		return true
	}
	for _, m := range p.Months {
		if m == month {
			return true
		}
	}
	return false
}

func monthNumber(yearMonth string) (int, string) {
	var year, month int
	n, err := fmt.Sscanf(yearMonth, "%4d-%2d", &year, &month)
	if err != nil || n != 2 || month < 1 || month > 12 {
		return 0, fmt.Sprintf("malformed year-month %q", yearMonth)
	}
	return month, ""
}

// tieredEnergyCents steps through contiguous tiers and sums the energy
// charge (in cents) for monthKwh of consumption within a single month.
func tieredEnergyCents(tiers []rates.UsageTier, monthKwh float64) float64 {
	sorted := append([]rates.UsageTier(nil), tiers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MinKwh < sorted[j].MinKwh })

	var total float64
	remaining := monthKwh
	for _, t := range sorted {
		if remaining <= 0 {
			break
		}
		var span float64
		if t.MaxKwh != nil {
			span = *t.MaxKwh - t.MinKwh
		} else {
			span = remaining
		}
		used := remaining
		if used > span {
			used = span
		}
		total += used * t.RateCentsPerKwh
		remaining -= used
	}
	return total
}

// evaluateSegmentCredits finds the persisted segment covering monthKwh and
// returns its dollar amount, or 0 if no segment matches.
func evaluateSegmentCredits(segments []rates.BillCreditPersistedRule, monthKwh float64) float64 {
	for _, seg := range segments {
		min := 0.0
		if seg.MinUsageKWh != nil {
			min = *seg.MinUsageKWh
		}
		if monthKwh < min {
			continue
		}
		if seg.MaxUsageKWh != nil && monthKwh >= *seg.MaxUsageKWh {
			continue
		}
		return float64(seg.CreditAmountCents) / 100.0
	}
	return 0
}
