package evaluation

import (
	"github.com/casevault/citeline/internal/domain/entities"
)

// ExpectedRecall computes the fraction of expected entry ids present in the
// produced projection. Returns 1.0 when nothing was expected.
func ExpectedRecall(expected []string, entries []entities.Entry) float64 {
	if len(expected) == 0 {
		return 1.0
	}

	produced := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		produced[e.EntryID] = struct{}{}
		produced[e.SourceEventID()] = struct{}{}
	}

	found := 0
	for _, id := range expected {
		if _, ok := produced[id]; ok {
			found++
		}
	}
	return float64(found) / float64(len(expected))
}

// CitationRate computes the fraction of entries carrying a non-empty
// citation display. The pipeline invariant requires 1.0.
func CitationRate(entries []entities.Entry) float64 {
	if len(entries) == 0 {
		return 1.0
	}
	cited := 0
	for _, e := range entries {
		if e.HasCitation() {
			cited++
		}
	}
	return float64(cited) / float64(len(entries))
}

// ProjectionsEqual compares two projections for identical entry ordering and
// content, ignoring the generation timestamp.
func ProjectionsEqual(a, b *entities.Projection) bool {
	if len(a.Entries) != len(b.Entries) {
		return false
	}
	for i := range a.Entries {
		if !entriesEqual(a.Entries[i], b.Entries[i]) {
			return false
		}
	}
	return true
}

func entriesEqual(a, b entities.Entry) bool {
	if a.EntryID != b.EntryID ||
		a.DateDisplay != b.DateDisplay ||
		a.ProviderDisplay != b.ProviderDisplay ||
		a.EventTypeDisplay != b.EventTypeDisplay ||
		a.PatientLabel != b.PatientLabel ||
		a.CitationDisplay != b.CitationDisplay ||
		a.Score != b.Score ||
		len(a.Facts) != len(b.Facts) {
		return false
	}
	for i := range a.Facts {
		if a.Facts[i] != b.Facts[i] {
			return false
		}
	}
	return true
}
