// Package estimate implements the True-Cost Estimator (spec §4.8) and the
// canonical inputs-hashing contract (spec §6) that keys the Estimate Cache.
// Grounded on jameshartig-raterudder's pkg/controller/simulation.go ("model
// a rate plan's cost across a usage series, sum components") and the
// teacher's explicit result-type style (no exceptions; status enums carry
// every outcome the estimator can reach).
package estimate

// Status is the estimator's outcome classification.
type Status string

const (
	StatusOK             Status = "OK"
	StatusApproximate    Status = "APPROXIMATE"
	StatusNotComputable  Status = "NOT_COMPUTABLE"
	StatusNotImplemented Status = "NOT_IMPLEMENTED"
)

// Mode selects how REP energy is priced.
type Mode string

const (
	ModeDefault               Mode = "DEFAULT"
	ModeIndexedEFLAnchorApprox Mode = "INDEXED_EFL_ANCHOR_APPROX"
)

// TdspRates is the TDSP delivery-charge collaborator result (spec §3/§6).
type TdspRates struct {
	PerKwhDeliveryChargeCents  float64
	MonthlyCustomerChargeDollars float64
	EffectiveDate              string
}

// Components is the per-category dollar breakdown of an annualized estimate.
type Components struct {
	RepEnergyDollars   float64
	RepFixedDollars    float64
	TdspDeliveryDollars float64
	TdspFixedDollars   float64
	CreditsDollars     float64 // positive value subtracted from the total
}

// Estimate is the True-Cost Estimator's output (spec §3).
type Estimate struct {
	Status              Status
	AnnualCostDollars   float64
	MonthlyCostDollars  [12]float64
	EffectiveCentsPerKwh float64
	Components          Components
	TdspRatesApplied    TdspRates
	Reason              string
}
