package textutil

import "regexp"

type conceptPattern struct {
	label string
	re    *regexp.Regexp
}

var procedurePatterns = []conceptPattern{
	{"orif", regexp.MustCompile(`(?i)\borif\b|open reduction (?:and|&) internal fixation`)},
	{"rotator cuff repair", regexp.MustCompile(`(?i)rotator cuff repair`)},
	{"bullet removal", regexp.MustCompile(`(?i)bullet (?:removal|excision)`)},
	{"irrigation and debridement", regexp.MustCompile(`(?i)\bi\s*&\s*d\b|irrigation.*debrid|debridement`)},
	{"hardware removal", regexp.MustCompile(`(?i)hardware removal|remove(?:d)? hardware`)},
	{"infection management", regexp.MustCompile(`(?i)infect(?:ion|ed)|iv vancomycin|rifampin|minocycline`)},
	{"epidural steroid injection", regexp.MustCompile(`(?i)epidural steroid injection|\besi\b|interlaminar|transforaminal`)},
}

var injuryPatterns = []conceptPattern{
	{"gunshot wound", regexp.MustCompile(`(?i)\bgsw\b|gunshot wound`)},
	{"fracture", regexp.MustCompile(`(?i)fracture`)},
	{"wound infection", regexp.MustCompile(`(?i)wound infection|infect`)},
	{"rotator cuff injury", regexp.MustCompile(`(?i)rotator cuff`)},
	{"disc injury", regexp.MustCompile(`(?i)disc (?:protrusion|herniation|bulge)|radiculopathy`)},
}

func matchConcepts(patterns []conceptPattern, text string) []string {
	var out []string
	for _, p := range patterns {
		if p.re.MatchString(text) {
			out = append(out, p.label)
		}
	}
	return out
}

// ProcedureConcepts extracts deterministic surgery/procedure concepts.
func ProcedureConcepts(text string) []string {
	return matchConcepts(procedurePatterns, text)
}

// InjuryConcepts extracts deterministic injury concepts.
func InjuryConcepts(text string) []string {
	return matchConcepts(injuryPatterns, text)
}
