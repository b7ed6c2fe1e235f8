package entities

import "time"

// Stopping reasons recorded by the selection audit.
const (
	StopSaturation        = "saturation"
	StopSafetyFuse        = "safety_fuse"
	StopNoCandidates      = "no_candidates"
	StopAllBucketsCovered = "all_buckets_covered"
)

// Skip reason codes recorded when an event or fact is dropped by omission.
const (
	SkipSurgeryGuard       = "surgery_guard"
	SkipFlowsheetNoise     = "flowsheet_noise"
	SkipReferencedNoise    = "referenced_noise"
	SkipUndatedLowValue    = "undated_low_value"
	SkipUndatedNoInference = "undated_no_inference"
	SkipFactDateMismatch   = "fact_date_mismatch"
	SkipLowSubstance       = "low_substance"
	SkipNoCitation         = "no_citation"
)

// SkipRecord is a debug record explaining why an event was not projected.
type SkipRecord struct {
	EventID    string `json:"event_id"`
	Reason     string `json:"reason"`
	ProviderID string `json:"provider_id,omitempty"`
}

// UtilityBreakdown is the per-component contribution of one greedy pick.
type UtilityBreakdown struct {
	Substance  float64 `json:"substance"`
	Bucket     float64 `json:"bucket"`
	Temporal   float64 `json:"temporal"`
	Novelty    float64 `json:"novelty"`
	Redundancy float64 `json:"redundancy"`
	Noise      float64 `json:"noise"`
}

// PickTrace records one selection decision for explainability.
type PickTrace struct {
	EntryID      string           `json:"entry_id"`
	Utility      float64          `json:"utility"`
	ForcedBucket bool             `json:"forced_bucket,omitempty"`
	Bucket       string           `json:"bucket,omitempty"`
	DeltaU       float64          `json:"delta_u"`
	Components   UtilityBreakdown `json:"components"`
}

// SelectionAudit is the per-patient trace of the emergent selection pass.
// It exists for regression tests and UI explainability and is never persisted
// beyond one build call.
type SelectionAudit struct {
	PatientLabel   string      `json:"patient_label"`
	StoppingReason string      `json:"stopping_reason"`
	ExtractedIDs   []string    `json:"extracted_ids"`
	CandidateIDs   []string    `json:"candidate_ids"`
	KeptIDs        []string    `json:"kept_ids"`
	FinalIDs       []string    `json:"final_ids"`
	UtilityTrace   []float64   `json:"utility_trace"`
	Picks          []PickTrace `json:"picks"`
}

// Projection is the final timestamped chronology. GeneratedAt is metadata
// only; entry content and ordering are a pure function of the inputs.
type Projection struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Entries     []Entry          `json:"entries"`
	Audits      []SelectionAudit `json:"audits,omitempty"`
	Skips       []SkipRecord     `json:"skips,omitempty"`
}

// PageRef locates a packet page inside its source document.
type PageRef struct {
	Document  string `json:"document"`
	LocalPage int    `json:"local_page"`
}

// CaseBundle is the full input to one chronology build: the extracted events
// plus the optional page-level context maps resolved upstream.
type CaseBundle struct {
	CaseID            string          `json:"case_id"`
	Events            []Event         `json:"events"`
	Providers         []Provider      `json:"providers"`
	PageMap           map[int]PageRef `json:"page_map,omitempty"`
	PagePatientLabels map[int]string  `json:"page_patient_labels,omitempty"`
	PageText          map[int]string  `json:"page_text,omitempty"`
}
