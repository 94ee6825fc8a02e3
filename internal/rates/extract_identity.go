package rates

import "regexp"

var (
	puctCertRe    = regexp.MustCompile(`(?i)PUCT\s+Certificate\s*#\s*([0-9]{4,6})`)
	versionLabelRe = regexp.MustCompile(`(?i)(?:Version\s*#|Ver\.?\s*#)\s*:?\s*([A-Za-z0-9.\-]{1,24})`)
	m1fFooterRe   = regexp.MustCompile(`M1F[0-9A-Z]{8,24}`)
)

// ExtractPUCTCertificate finds the "PUCT Certificate #" disclosure.
func ExtractPUCTCertificate(rawText string) (string, bool) {
	m := puctCertRe.FindStringSubmatch(rawText)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ExtractEFLVersionCode implements spec §4.3's identity extraction and
// resolves Open Question 1 (spec §9): both the "Version #"/"Ver. #" label
// form and the "M1F..." footer-token fallback are tried, and when multiple
// candidates of the same kind are present, the LAST match in the raw text
// wins -- this preserves the reference implementation's documented
// "last-match-wins" behavior rather than guessing a different precedence.
func ExtractEFLVersionCode(rawText string) (string, bool) {
	if labelMatches := versionLabelRe.FindAllStringSubmatch(rawText, -1); len(labelMatches) > 0 {
		return labelMatches[len(labelMatches)-1][1], true
	}
	if footerMatches := m1fFooterRe.FindAllString(rawText, -1); len(footerMatches) > 0 {
		return footerMatches[len(footerMatches)-1], true
	}
	return "", false
}
