package textutil

import (
	"regexp"
	"strings"
)

var medicalTerms = map[string]struct{}{
	"diagnosis": {}, "impression": {}, "assessment": {}, "plan": {}, "procedure": {},
	"surgery": {}, "injection": {}, "fluoroscopy": {}, "lidocaine": {}, "depo-medrol": {},
	"pain": {}, "fracture": {}, "radiculopathy": {}, "protrusion": {}, "herniation": {},
	"stenosis": {}, "infection": {}, "wound": {}, "discharge": {}, "admission": {},
	"ed": {}, "emergency": {}, "mri": {}, "ct": {}, "x-ray": {}, "therapy": {},
	"medication": {}, "mg": {}, "tablet": {}, "capsule": {}, "hospital": {}, "clinic": {},
	"follow-up": {},
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "of": {}, "to": {}, "in": {}, "for": {}, "on": {}, "with": {},
	"a": {}, "an": {}, "is": {}, "are": {}, "was": {}, "were": {}, "this": {}, "that": {},
	"at": {}, "as": {}, "it": {}, "or": {}, "by": {}, "from": {}, "be": {}, "been": {},
	"if": {}, "into": {}, "about": {},
}

var (
	icdRE          = regexp.MustCompile(`(?i)\b[A-TV-Z][0-9][0-9A-Z](?:\.[0-9A-Z]{1,4})?\b`)
	cptRE          = regexp.MustCompile(`\b\d{5}\b`)
	dosageRE       = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s*(mg|ml|mcg|g)\b`)
	headingRE      = regexp.MustCompile(`(?i)\b(impression|assessment|plan|diagnosis|clinical impression|chief complaint|procedure)\b`)
	junkSpanRE     = regexp.MustCompile(`\b(lorem ipsum|qwerty|asdf)\b`)
	noiseWordRE    = regexp.MustCompile(`[a-z0-9\-]+`)
	alphaWordRE    = regexp.MustCompile(`[a-z]+`)
	clockRE        = regexp.MustCompile(`\b([01]?\d|2[0-3]):[0-5]\d\b`)
	lineSplitRE    = regexp.MustCompile(`[\n\r]+`)
	flowsheetMedRE = regexp.MustCompile(`(?i)\b(impression|assessment|diagnosis|fracture|tear|infection|mri|x-?ray|rom|strength|pain|medication|injection|procedure|discharge|admission)\b`)
)

// MedicalTokenDensity is the share of tokens drawn from the clinical lexicon.
func MedicalTokenDensity(text string) float64 {
	tokens := noiseWordRE.FindAllString(strings.ToLower(text), -1)
	if len(tokens) == 0 {
		return 0
	}
	hits := 0
	for _, t := range tokens {
		if _, ok := medicalTerms[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}

// HasStructuredSignals reports ICD/CPT codes, dosages, or clinical headings.
func HasStructuredSignals(text string) bool {
	return icdRE.MatchString(text) || cptRE.MatchString(text) ||
		dosageRE.MatchString(text) || headingRE.MatchString(text)
}

// IsNoiseSpan flags degenerate text: low clinical density, no structured
// signals, and high stopword ratio.
func IsNoiseSpan(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return true
	}
	low := strings.ToLower(t)
	if junkSpanRE.MatchString(low) {
		return true
	}
	structured := HasStructuredSignals(t)
	tokens := alphaWordRE.FindAllString(low, -1)
	stopRatio := 1.0
	if len(tokens) > 0 {
		stops := 0
		for _, tok := range tokens {
			if _, ok := stopwords[tok]; ok {
				stops++
			}
		}
		stopRatio = float64(stops) / float64(len(tokens))
	}
	return MedicalTokenDensity(t) < 0.08 && !structured && stopRatio > 0.55
}

var knownMedWords = map[string]struct{}{
	"impression": {}, "assessment": {}, "diagnosis": {}, "fracture": {}, "tear": {},
	"infection": {}, "mri": {}, "xray": {}, "rom": {}, "strength": {}, "pain": {},
	"medication": {}, "injection": {}, "procedure": {}, "discharge": {}, "admission": {},
	"cervical": {}, "lumbar": {}, "thoracic": {}, "radicular": {}, "follow": {},
	"therapy": {}, "plan": {}, "patient": {},
}

// IsFlowsheetNoise detects dense nursing-flowsheet blocks: many timestamps,
// many short lines, and almost no recognizable clinical vocabulary.
func IsFlowsheetNoise(text string) bool {
	if text == "" {
		return false
	}
	low := strings.ToLower(text)
	timestampHits := len(clockRE.FindAllString(low, -1))
	shortLines := 0
	for _, ln := range lineSplitRE.Split(text, -1) {
		ln = strings.TrimSpace(ln)
		if ln != "" && len(strings.Fields(ln)) <= 6 {
			shortLines++
		}
	}
	medicalTokens := len(flowsheetMedRE.FindAllString(low, -1))
	words := alphaWordRE.FindAllString(low, -1)
	if len(words) == 0 {
		return false
	}
	medLike := 0
	for _, w := range words {
		if _, ok := knownMedWords[w]; ok {
			medLike++
		}
	}
	nonsenseRatio := 1.0 - float64(medLike)/float64(len(words))
	if timestampHits >= 8 && shortLines >= 10 && medicalTokens < 3 {
		return true
	}
	return len(words) >= 30 && nonsenseRatio > 0.6 && medicalTokens < 3
}

var vitalMarkers = []string{
	"body height", "body weight", "bmi", "blood pressure", "heart rate",
	"respiratory rate", "pain severity", "head occipital-frontal circumference",
}

// IsVitalsHeavy reports whether text is dominated by vital-sign statements.
func IsVitalsHeavy(text string) bool {
	low := strings.ToLower(text)
	hits := 0
	for _, marker := range vitalMarkers {
		if strings.Contains(low, marker) {
			hits++
		}
	}
	return hits >= 2
}

var (
	headerIdentityRE = regexp.MustCompile(`\bpatient\s*:\s*.+\bmrn\b`)
	headerDateRE     = regexp.MustCompile(`\bdate\s*:\s*\d{4}-\d{2}-\d{2}\b`)
	headerClinicalRE = regexp.MustCompile(`\b(chief complaint|hpi|history of present illness|assessment|diagnosis|impression|plan|pain|rom|range of motion|strength|procedure|injection|medication|work status|work restriction)\b`)
	headerLabelRE    = regexp.MustCompile(`^\s*(patient|name|mrn|date)\s*[:\-].*$`)
)

// IsHeaderNoiseFact drops header/index lines that carry identity or dates but
// no clinical content.
func IsHeaderNoiseFact(text string) bool {
	low := strings.ToLower(strings.TrimSpace(text))
	if low == "" {
		return true
	}
	if headerIdentityRE.MatchString(low) && headerDateRE.MatchString(low) && !headerClinicalRE.MatchString(low) {
		return true
	}
	return headerLabelRE.MatchString(low)
}
