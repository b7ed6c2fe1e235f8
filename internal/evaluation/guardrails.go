package evaluation

import (
	"github.com/casevault/citeline/internal/application/services"
	"github.com/casevault/citeline/internal/domain/entities"
)

// GuardrailConfig bounds the pipeline invariants checked per run.
type GuardrailConfig struct {
	MaxEntriesPerPatient  int
	MinCitationRate       float64
	MinHighSubstanceShare float64
}

// Guardrails checks a produced projection against the pipeline invariants.
type Guardrails struct {
	config     GuardrailConfig
	classifier *services.Classifier
}

// NewGuardrails creates guardrails with defaulted bounds.
func NewGuardrails(config GuardrailConfig) *Guardrails {
	if config.MaxEntriesPerPatient <= 0 {
		config.MaxEntriesPerPatient = 250
	}
	if config.MinCitationRate <= 0 {
		config.MinCitationRate = 1.0
	}
	if config.MinHighSubstanceShare <= 0 {
		config.MinHighSubstanceShare = 0.25
	}
	return &Guardrails{config: config, classifier: services.NewClassifier()}
}

// WithinCap reports whether every patient group respects the per-patient
// entry cap.
func (g *Guardrails) WithinCap(entries []entities.Entry) bool {
	counts := make(map[string]int)
	for _, e := range entries {
		counts[e.PatientLabel]++
		if counts[e.PatientLabel] > g.config.MaxEntriesPerPatient {
			return false
		}
	}
	return true
}

// CitationsOK reports whether the citation invariant holds.
func (g *Guardrails) CitationsOK(entries []entities.Entry) bool {
	return CitationRate(entries) >= g.config.MinCitationRate
}

// SubstanceOK reports whether the share of high-substance entries meets the
// configured floor. An empty projection passes vacuously.
func (g *Guardrails) SubstanceOK(entries []entities.Entry) bool {
	if len(entries) == 0 {
		return true
	}
	high := 0
	for _, e := range entries {
		if g.classifier.IsHighSubstance(e) {
			high++
		}
	}
	return float64(high)/float64(len(entries)) >= g.config.MinHighSubstanceShare
}

// CoversBuckets reports whether every expected coverage bucket is represented
// in the projected entries.
func (g *Guardrails) CoversBuckets(expected []string, entries []entities.Entry) bool {
	if len(expected) == 0 {
		return true
	}
	present := make(map[string]bool)
	for _, e := range entries {
		if b := g.classifier.CoverageBucket(e); b != services.BucketNone {
			present[string(b)] = true
		}
	}
	for _, want := range expected {
		if !present[want] {
			return false
		}
	}
	return true
}

var validStopReasons = map[string]bool{
	entities.StopSaturation:        true,
	entities.StopSafetyFuse:        true,
	entities.StopNoCandidates:      true,
	entities.StopAllBucketsCovered: true,
}

// StopReasonsOK reports whether every audit carries a known stopping reason.
func (g *Guardrails) StopReasonsOK(audits []entities.SelectionAudit) bool {
	for _, audit := range audits {
		if !validStopReasons[audit.StoppingReason] {
			return false
		}
	}
	return true
}
