package rates

import (
	"context"
	"strings"
)

// DraftResult is the AI draft parser's output. Absent fields are nil, never
// a zeroed struct -- the parser must never invent numeric values, and the
// caller must be able to tell "not extracted" from "extracted as zero".
type DraftResult struct {
	PlanRules       *PlanRules
	RateStructure   *RateStructure
	ParseConfidence float64 // in [0,1]
	ParseWarnings   []string
}

// AIDraftParser is the untrusted, advisory collaborator boundary described
// by spec §4.2/§6. Implementations must never panic or return a non-nil
// error for transport/schema failures: on any such failure they return an
// empty DraftResult plus a warning.
type AIDraftParser interface {
	ParseDraft(ctx context.Context, normalizedText string, eflSha256 string) (DraftResult, error)
}

// tduWarningFilterSubstrings lists the warning substrings that reference
// TDU/TDSP/tax boilerplate, which are filtered out before a DraftResult's
// warnings are surfaced to callers -- those warnings are noise about text
// this engine already strips in NormalizeText, not about the plan itself.
var tduWarningFilterSubstrings = []string{"tdu", "tdsp", "tax", "municipal"}

// FilterParseWarnings drops warnings that only reference TDU/TDSP/tax
// boilerplate, per spec §4.2.
func FilterParseWarnings(warnings []string) []string {
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		lower := strings.ToLower(w)
		skip := false
		for _, sub := range tduWarningFilterSubstrings {
			if strings.Contains(lower, sub) {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, w)
		}
	}
	return out
}

// NullAIDraftParser is an AIDraftParser that always returns an empty draft.
// It's useful as a safe default when no AI collaborator is configured (the
// pipeline still runs entirely on the deterministic extractors and solver).
type NullAIDraftParser struct{}

func (NullAIDraftParser) ParseDraft(ctx context.Context, normalizedText string, eflSha256 string) (DraftResult, error) {
	return DraftResult{ParseConfidence: 0, ParseWarnings: []string{"no AI draft parser configured"}}, nil
}
