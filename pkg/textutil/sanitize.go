package textutil

import (
	"regexp"
	"strings"
)

var (
	uuidRE         = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
	pageArtifactRE = regexp.MustCompile(`(?i)\bs\s*\d+(?:-\d+)?\b`)
	patientIDRE    = regexp.MustCompile(`(?i)\bpatient id\s*:\s*`)
	multiSpaceRE   = regexp.MustCompile(`\s+`)

	forbiddenTokenREs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)client\s+provided\s+medicals`),
		regexp.MustCompile(`(?i)pdf[_\s]*page`),
		regexp.MustCompile(`(?i)printed\s+page\s*\d+`),
		regexp.MustCompile(`(?i)notes?\s*-\s*encounter\s*notes?\s*\(continued\)`),
		regexp.MustCompile(`(?i)please\s+see\s+their\s+full\s+h&p;?/clinic\s+notes\s+for\s+details\.?`),
		regexp.MustCompile(`(?i)review\s+of\s+systems`),
	}

	rawFragmentREs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)notes?\s*-\s*encounter\s*notes?\s*\(continued\)`),
		regexp.MustCompile(`(?i)registered under \d+\s+separate\s+mrn`),
		regexp.MustCompile(`(?i)please see.*clinic notes.*details`),
		regexp.MustCompile(`(?i)\bh&p\b`),
		regexp.MustCompile(`(?i)medical record summary`),
		regexp.MustCompile(`(?i)patient id\s*:`),
	}
)

// SanitizeForReport removes document-title artifacts, identifiers, and
// boilerplate from an extracted fragment before it can reach a client-facing
// chronology row.
func SanitizeForReport(text string) string {
	if text == "" {
		return ""
	}
	cleaned := text
	for _, re := range forbiddenTokenREs {
		cleaned = re.ReplaceAllString(cleaned, "")
	}
	cleaned = uuidRE.ReplaceAllString(cleaned, "")
	cleaned = patientIDRE.ReplaceAllString(cleaned, "")
	cleaned = pageArtifactRE.ReplaceAllString(cleaned, "")
	cleaned = multiSpaceRE.ReplaceAllString(cleaned, " ")
	return strings.Trim(cleaned, " .;,-")
}

// IsReportableFact rejects fragments that are known raw-extraction artifacts
// or too short to carry clinical meaning after sanitization.
func IsReportableFact(text string) bool {
	for _, re := range rawFragmentREs {
		if re.MatchString(text) {
			return false
		}
	}
	cleaned := SanitizeForReport(text)
	if len(cleaned) < 12 {
		return false
	}
	low := strings.ToLower(cleaned)
	for _, re := range rawFragmentREs {
		if re.MatchString(low) {
			return false
		}
	}
	return true
}

var hexRunRE = regexp.MustCompile(`[a-f0-9]{8,}`)

// ContainsHashLikeToken reports whether the value embeds a hex run long enough
// to be a content hash rather than a human name.
func ContainsHashLikeToken(value string) bool {
	return hexRunRE.MatchString(strings.ToLower(value))
}
