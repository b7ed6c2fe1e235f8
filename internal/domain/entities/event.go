package entities

import "time"

// EventType identifies the upstream classification of a clinical event.
type EventType string

const (
	EventTypeOfficeVisit          EventType = "office_visit"
	EventTypePTVisit              EventType = "pt_visit"
	EventTypeImagingStudy         EventType = "imaging_study"
	EventTypeProcedure            EventType = "procedure"
	EventTypeLabResult            EventType = "lab_result"
	EventTypeDischarge            EventType = "discharge"
	EventTypeBillingEvent         EventType = "billing_event"
	EventTypeERVisit              EventType = "er_visit"
	EventTypeHospitalAdmission    EventType = "hospital_admission"
	EventTypeHospitalDischarge    EventType = "hospital_discharge"
	EventTypeInpatientDailyNote   EventType = "inpatient_daily_note"
	EventTypeWorkStatus           EventType = "work_status"
	EventTypeAdministrative       EventType = "administrative"
	EventTypeReferencedPriorEvent EventType = "referenced_prior_event"
	EventTypeOtherEvent           EventType = "other_event"
)

// DateKind distinguishes single-day dates from ranges.
type DateKind string

const (
	DateKindSingle DateKind = "single"
	DateKindRange  DateKind = "range"
)

// DateSource records which extraction tier produced the date.
type DateSource string

const (
	DateSourceTier1      DateSource = "tier1"
	DateSourceTier2      DateSource = "tier2"
	DateSourcePropagated DateSource = "propagated"
	DateSourceAnchor     DateSource = "anchor"
)

// FactKind tags the clinical role of an extracted fact string.
type FactKind string

const (
	FactKindChiefComplaint FactKind = "chief_complaint"
	FactKindAssessment     FactKind = "assessment"
	FactKindPlan           FactKind = "plan"
	FactKindDiagnosis      FactKind = "diagnosis"
	FactKindMedication     FactKind = "medication"
	FactKindImpression     FactKind = "impression"
	FactKindFinding        FactKind = "finding"
	FactKindProcedureNote  FactKind = "procedure_note"
	FactKindRestriction    FactKind = "restriction"
	FactKindLab            FactKind = "lab"
	FactKindPainScore      FactKind = "pain_score"
	FactKindROMValue       FactKind = "rom_value"
	FactKindStrengthGrade  FactKind = "strength_grade"
	FactKindOther          FactKind = "other"
)

// EventDate is the resolved service date of an event. Start carries the
// single date when Kind is single; End is set only for ranges.
type EventDate struct {
	Kind   DateKind   `json:"kind"`
	Start  time.Time  `json:"start"`
	End    *time.Time `json:"end,omitempty"`
	Source DateSource `json:"source"`
}

// SortDate returns a single date usable for ordering.
func (d EventDate) SortDate() time.Time {
	return d.Start
}

// Fact is one extracted statement with its citation anchor.
type Fact struct {
	Text       string   `json:"text"`
	Kind       FactKind `json:"kind"`
	Verbatim   bool     `json:"verbatim"`
	CitationID string   `json:"citation_id,omitempty"`
	Confidence *int     `json:"confidence,omitempty"`
}

// EventExtensions carries typed provenance metadata that upstream stages may
// attach to an event.
type EventExtensions struct {
	SeverityScore *int `json:"severity_score,omitempty"`
}

// Event is one extracted clinical event. Events are immutable inputs to the
// chronology build; the engine never mutates them.
type Event struct {
	EventID           string          `json:"event_id"`
	ProviderID        string          `json:"provider_id,omitempty"`
	EventType         EventType       `json:"event_type"`
	Date              *EventDate      `json:"date,omitempty"`
	EncounterTypeRaw  string          `json:"encounter_type_raw,omitempty"`
	Facts             []Fact          `json:"facts"`
	Confidence        int             `json:"confidence"`
	Flags             []string        `json:"flags,omitempty"`
	CitationIDs       []string        `json:"citation_ids,omitempty"`
	SourcePageNumbers []int           `json:"source_page_numbers,omitempty"`
	Extensions        EventExtensions `json:"extensions,omitempty"`
}

// JoinedFactText concatenates the event's fact strings for content sniffing.
func (e Event) JoinedFactText() string {
	out := ""
	for _, f := range e.Facts {
		if f.Text == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += f.Text
	}
	return out
}
