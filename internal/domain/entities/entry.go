package entities

import "strings"

// DateNotDocumented is the display value for entries without a resolvable date.
const DateNotDocumented = "Date not documented"

// DateNotEstablished labels last-resort entries emitted when the whole
// pipeline would otherwise produce nothing.
const DateNotEstablished = "Date not established from source records"

// Entry is one candidate or selected row of the chronology timeline.
type Entry struct {
	EntryID          string   `json:"entry_id"`
	DateDisplay      string   `json:"date_display"`
	ProviderDisplay  string   `json:"provider_display"`
	EventTypeDisplay string   `json:"event_type_display"`
	PatientLabel     string   `json:"patient_label"`
	Facts            []string `json:"facts"`
	CitationDisplay  string   `json:"citation_display"`
	Score            int      `json:"score"`
}

// SourceEventID strips the derived-entry suffix so split and enrichment rows
// can be traced back to the event that produced them.
func (e Entry) SourceEventID() string {
	if i := strings.Index(e.EntryID, "::"); i >= 0 {
		return e.EntryID[:i]
	}
	return e.EntryID
}

// HasCitation reports whether the entry carries a non-empty citation display.
func (e Entry) HasCitation() bool {
	return strings.TrimSpace(e.CitationDisplay) != ""
}

// FactBlob joins the entry's facts into one lowercase string for rule matching.
func (e Entry) FactBlob() string {
	return strings.ToLower(strings.Join(e.Facts, " "))
}
