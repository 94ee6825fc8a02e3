package rates

import (
	"regexp"
	"strings"
)

// minNormalizedLength is the fail-open threshold from spec §4.1: if the
// normalized text falls below this length while the raw text is non-empty,
// normalization is considered to have stripped too much and the raw text is
// returned instead.
const minNormalizedLength = 200

// NormalizeResult carries the normalized text plus human-readable notes
// describing what was stripped, or why normalization fell back to raw text.
type NormalizeResult struct {
	NormalizedText string
	Notes          []string
}

// disclosedAvgPriceBlockRe matches the EFL's own "Average Monthly Use /
// Average Price per kWh" disclosure table, which must not leak into the AI
// prompt: it's exactly what the validator later checks candidates against,
// and an AI draft that has already seen the answer key is not a useful
// cross-check.
var disclosedAvgPriceBlockRe = regexp.MustCompile(`(?is)Average\s+Monthly\s+Use.{0,400}?(?:\n\s*\n|\z)`)

// tduPassthroughBlockRe matches the "TDU Delivery Charges" passthrough
// section.
var tduPassthroughBlockRe = regexp.MustCompile(`(?is)TDU?\s+Delivery\s+Charges.{0,600}?(?:\n\s*\n|\z)`)

// boilerplateLineAllowList is a small set of known-noisy boilerplate lines
// (tax/municipal disclosures, standard EFL footers) that carry no pricing
// signal and would otherwise waste AI-parser context.
var boilerplateLineAllowList = []string{
	"this facts label is not a bill",
	"sales and use tax",
	"municipal franchise fee",
	"this document is a summary only",
	"puct certificate",
}

// NormalizeText strips the disclosed average-price table, the TDU
// passthrough block, and boilerplate lines from raw EFL text, in
// preparation for handing the result to the AI draft parser. It fails open:
// if the residue is shorter than minNormalizedLength while the raw text is
// non-empty, the raw text is returned unchanged with a fallback note. No
// other transformation is performed; line breaks are preserved.
func NormalizeText(rawText string) NormalizeResult {
	if rawText == "" {
		return NormalizeResult{NormalizedText: ""}
	}

	var notes []string
	text := rawText

	if disclosedAvgPriceBlockRe.MatchString(text) {
		text = disclosedAvgPriceBlockRe.ReplaceAllString(text, "\n")
		notes = append(notes, "stripped disclosed average-price table")
	}
	if tduPassthroughBlockRe.MatchString(text) {
		text = tduPassthroughBlockRe.ReplaceAllString(text, "\n")
		notes = append(notes, "stripped TDU delivery charges passthrough block")
	}

	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	stripped := 0
	for _, line := range lines {
		lower := strings.ToLower(strings.TrimSpace(line))
		skip := false
		for _, bp := range boilerplateLineAllowList {
			if strings.Contains(lower, bp) {
				skip = true
				break
			}
		}
		if skip {
			stripped++
			continue
		}
		kept = append(kept, line)
	}
	if stripped > 0 {
		notes = append(notes, "stripped boilerplate lines")
	}
	text = strings.Join(kept, "\n")

	if len(strings.TrimSpace(text)) < minNormalizedLength {
		notes = append(notes, "fallback: normalized residue too short, returning raw text")
		return NormalizeResult{NormalizedText: rawText, Notes: notes}
	}

	return NormalizeResult{NormalizedText: text, Notes: notes}
}
