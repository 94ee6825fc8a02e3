package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/wattbuy/planengine/internal/computability"
	"github.com/wattbuy/planengine/internal/rates"
)

// templateResult is the outcome of running one offer's EFL through the
// normalize -> AI draft -> validate -> solve -> pass-strength -> computability
// pipeline (spec §4.10 step 3).
type templateResult struct {
	EflDocument   rates.EFLDocument
	RateStructure rates.RateStructure
	Strength      rates.PassStrength
	Computed      computability.Computability
	// ShouldPersist is true only for a final PASS + STRONG result with a
	// usable template identity (spec §4.10: "Auto-persist template only
	// when final PASS + STRONG + template identity present").
	ShouldPersist bool
	QueueReason   *rates.QueueReason
}

// runEFLPipeline executes spec §4.10 step 3 for a single offer's EFL text.
// It is pure given its inputs; the only I/O it performs is the AI draft
// call, already isolated behind aiParser.
func runEFLPipeline(ctx context.Context, aiParser rates.AIDraftParser, offer rates.Offer, rawText string, pdfBytes []byte, opts computability.Options) (templateResult, error) {
	doc, err := rates.NewEFLDocument(pdfBytes, rawText)
	if err != nil {
		return templateResult{}, fmt.Errorf("efl identity: %w", err)
	}

	normalized := rates.NormalizeText(doc.RawText)

	draft, draftErr := aiParser.ParseDraft(ctx, normalized.NormalizedText, doc.Sha256)
	if draftErr != nil {
		// AI transport errors are recovered per spec §4.2/§6: proceed with
		// an empty draft rather than failing the whole offer.
		draft = rates.DraftResult{}
	}

	var draftPlan rates.PlanRules
	if draft.PlanRules != nil {
		draftPlan = *draft.PlanRules
	}
	var draftStructure rates.RateStructure
	if draft.RateStructure != nil {
		draftStructure = *draft.RateStructure
	}

	disclosed := offer.DisclosedAvgPriceTable()
	initialValidation := rates.ValidateAgainstDisclosedTable(doc.RawText, draftPlan, disclosed, rates.DefaultToleranceCentsPerKwh)
	solved := rates.SolveGaps(doc.RawText, draftPlan, draftStructure, disclosed, initialValidation)

	result := templateResult{EflDocument: doc, RateStructure: solved.DerivedRateStructure}
	result.RateStructure.Evidence = rates.Evidence{
		Validation:      solved.ValidationAfter,
		SolverApplied:   solved.SolverApplied,
		SolveMode:       solved.SolveMode,
		ComputedAt:      time.Now(),
		AssumptionsUsed: solved.ValidationAfter.AssumptionsUsed,
	}

	if solved.ValidationAfter.Status != rates.ValidationPass {
		result.QueueReason = solved.QueueReason
		if result.QueueReason == nil {
			result.QueueReason = solved.ValidationAfter.QueueReason
		}
		if result.QueueReason == nil {
			result.QueueReason = &rates.QueueReason{Code: "VALIDATION_FAIL", Message: "disclosed average-price validation failed"}
		}
		return result, nil
	}

	strength := rates.ScorePassStrength(doc.RawText, solved.DerivedPlanRules, disclosed, solved.ValidationAfter)
	result.Strength = strength

	result.Computed = computability.Analyze(result.RateStructure, opts)

	if strength.Class != rates.PassStrong {
		result.QueueReason = &rates.QueueReason{
			Code:    "PASS_STRENGTH_" + string(strength.Class),
			Message: "validation passed but interior-point agreement was not STRONG",
			Details: map[string]string{"reasons": fmt.Sprint(strength.Reasons)},
		}
		return result, nil
	}

	if doc.Sha256 == "" {
		result.QueueReason = &rates.QueueReason{Code: "MISSING_TEMPLATE_IDENTITY", Message: "no EFL content hash to key the template on"}
		return result, nil
	}

	result.ShouldPersist = true
	return result, nil
}
