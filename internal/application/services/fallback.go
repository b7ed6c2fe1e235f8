package services

import (
	"sort"

	"github.com/casevault/citeline/internal/domain/entities"
	"github.com/casevault/citeline/pkg/textutil"
)

const maxFallbackEntries = 3

// FallbackSynthesizer is the last-resort path: when the whole pipeline
// yields nothing for a non-empty bundle, re-scan raw events with relaxed
// gates so the output is never silently empty.
type FallbackSynthesizer struct{}

// NewFallbackSynthesizer creates a synthesizer.
func NewFallbackSynthesizer() *FallbackSynthesizer {
	return &FallbackSynthesizer{}
}

// Synthesize emits up to three minimally filtered entries. Only
// reportability, sanitization, and the citation invariant are enforced; the
// date gate is relaxed to the not-established label.
func (f *FallbackSynthesizer) Synthesize(bundle entities.CaseBundle, patientLabel string) []entities.Entry {
	events := make([]entities.Event, len(bundle.Events))
	copy(events, bundle.Events)
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Confidence != events[j].Confidence {
			return events[i].Confidence > events[j].Confidence
		}
		return events[i].EventID < events[j].EventID
	})

	var out []entities.Entry
	for _, event := range events {
		if len(out) >= maxFallbackEntries {
			break
		}
		var facts []string
		for _, fact := range event.Facts {
			if !textutil.IsReportableFact(fact.Text) {
				continue
			}
			cleaned := textutil.SanitizeForReport(fact.Text)
			cleaned = truncateFact(cleaned, maxFactLength)
			facts = append(facts, cleaned)
			if len(facts) >= maxFactsSmallPacket {
				break
			}
		}
		if len(facts) == 0 {
			continue
		}
		citation := citationDisplay(event, bundle.PageMap)
		if citation == "" {
			continue
		}

		dateDisplay := entities.DateNotEstablished
		if hasExplicitDate(event) && textutil.DateSane(event.Date.Start) {
			dateDisplay = isoDateDisplay(event.Date.Start)
		}
		out = append(out, entities.Entry{
			EntryID:          event.EventID,
			DateDisplay:      dateDisplay,
			ProviderDisplay:  providerDisplay(event, bundle.Providers),
			EventTypeDisplay: fallbackEventTypeDisplay(event),
			PatientLabel:     patientLabel,
			Facts:            facts,
			CitationDisplay:  citation,
			Score:            event.Confidence,
		})
	}
	return out
}
