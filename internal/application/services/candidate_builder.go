package services

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/casevault/citeline/internal/domain/entities"
	"github.com/casevault/citeline/pkg/textutil"
)

const (
	maxFactLength         = 280
	maxFactsSmallPacket   = 3
	maxFactsLargePacket   = 8
	maxFactsEnriched      = 10
	providerPageDistance  = 2
	minProviderConfidence = 70
)

var (
	inpatientMarkerRE = regexp.MustCompile(`(?i)\b(admission order|hospital day|inpatient service|discharge summary|admitted|inpatient|hospitalist|icu|intensive care)\b`)
	emergencySniffRE  = regexp.MustCompile(`\b(emergency department|emergency room|ed visit|er visit|chief complaint)\b`)
	procedureSniffRE  = regexp.MustCompile(`\b(epidural|esi|injection|procedure|fluoroscopy|depo-?medrol|lidocaine|interlaminar|transforaminal)\b`)
	imagingSniffRE    = regexp.MustCompile(`\b(mri|x-?ray|radiology|impression:)\b`)
	therapySniffRE    = regexp.MustCompile(`\b(physical therapy|pt eval|initial evaluation|rom|range of motion|strength)\b`)
	orthoSniffRE      = regexp.MustCompile(`\b(orthopedic|ortho consult|orthopaedic)\b`)

	severeSymptomRE      = regexp.MustCompile(`\b(phq-?9|depression|suicid|homeless|skilled nursing|emergency room|er visit|admission|discharge|opioid|hydrocodone|oxycodone|codeine)\b`)
	imagingValueRE       = regexp.MustCompile(`\b(impression|x-?ray|ct|mri|ultrasound|angiogram|fracture|tear|lesion)\b`)
	clinicValueRE        = regexp.MustCompile(`\b(diagnosis|assessment|impression|fracture|infection|tear|follow-?up|medication|prescribed|therapy|plan|disposition|discharge)\b`)
	questionnaireOnlyRE  = regexp.MustCompile(`\b(phq-?9|gad-?7|pain interference|questionnaire|survey score|score)\b`)
	milestoneTermRE      = regexp.MustCompile(`\b(admission|discharge|diagnosis|impression|procedure|surgery|infection|fracture|tear)\b`)
	strongUndatedRE      = regexp.MustCompile(`\b(diagnosis|impression|fracture|tear|infection|debridement|orif|procedure|injection|mri|x-?ray|fluoroscopy|depo-?medrol|lidocaine|pain\s*\d)\b`)
	referencedValueRE    = regexp.MustCompile(`\b(impression|assessment|diagnosis|initial evaluation|physical therapy|pt eval|rom|range of motion|strength|work status|work restriction|clinical impression|mri|x-?ray|fluoroscopy|depo-?medrol|lidocaine|epidural|esi)\b`)
	noiseOverrideRE      = regexp.MustCompile(`\b(assessment|diagnosis|impression|plan|fracture|tear|infection|pain|rom|strength|procedure|injection|mri|x-?ray|follow-?up|therapy)\b`)
	labsFoundFlagRE      = regexp.MustCompile(`\b(h|l|high|low|critical|panic|elevated|depressed|abnormal|>|<)\b`)
	tobaccoBiometricRE   = regexp.MustCompile(`\b(tobacco status|never smoked|smokeless tobacco|weight percentile|body height|body weight|head occipital-frontal circumference)\b`)
	questionnaireScoreRE = regexp.MustCompile(`\b(phq-?9|gad-?7)\s*[:=]?\s*(\d{1,2})\b`)
	surgeryKeywordRE     = regexp.MustCompile(`(?i)surgery|operative|orif|debrid|repair|hardware|excision|anesthesia|postop|preop`)
	providerTitleTokens  = []string{"medical record summary", "stress test", "chronology eval", "pdf", "page"}
)

// CandidateBuilder turns raw events into candidate chronology entries,
// applying identity guards, fact filtering, and the undated-event gate.
type CandidateBuilder struct {
	classifier       *Classifier
	largePacketPages int
}

// NewCandidateBuilder creates a builder using the given large-packet page
// threshold for density-preserving sub-entry expansion.
func NewCandidateBuilder(classifier *Classifier, largePacketPages int) *CandidateBuilder {
	return &CandidateBuilder{
		classifier:       classifier,
		largePacketPages: largePacketPages,
	}
}

// Build converts the bundle's events into candidate entries. Rejections are
// recorded by reason code in skips; nothing is raised.
func (b *CandidateBuilder) Build(bundle entities.CaseBundle, pagePatientLabels map[int]string, skips *[]entities.SkipRecord) []entities.Entry {
	sorted := sortEventsByDate(bundle.Events)
	largePacket := len(bundle.PageText) > b.largePacketPages
	providerDatedPages := indexProviderDatedPages(sorted)

	var entries []entities.Entry
	for _, event := range sorted {
		if !surgeryClassifierGuard(event) {
			recordSkip(skips, event, entities.SkipSurgeryGuard)
			continue
		}

		joinedRaw := event.JoinedFactText()
		lowJoined := strings.ToLower(joinedRaw)
		if textutil.IsFlowsheetNoise(joinedRaw) {
			recordSkip(skips, event, entities.SkipFlowsheetNoise)
			continue
		}
		if event.EventType == entities.EventTypeReferencedPriorEvent && !referencedValueRE.MatchString(lowJoined) {
			recordSkip(skips, event, entities.SkipReferencedNoise)
			continue
		}

		var inferredDate time.Time
		if !hasExplicitDate(event) {
			inferredDate = inferDate(event, providerDatedPages, bundle.PageText)
		}
		undated := !hasExplicitDate(event) && inferredDate.IsZero()
		if undated {
			if !isHighValueEvent(event, joinedRaw) {
				recordSkip(skips, event, entities.SkipUndatedNoInference)
				continue
			}
			if isClinicLikeType(event.EventType) && !strongUndatedRE.MatchString(lowJoined) {
				recordSkip(skips, event, entities.SkipUndatedLowValue)
				continue
			}
		}

		effectiveDate := effectiveDateOf(event, inferredDate)
		facts := b.filterFacts(event, effectiveDate, largePacket, skips)

		if largePacket {
			if event.EventType == entities.EventTypePTVisit || therapySniffRE.MatchString(lowJoined) {
				facts = appendUnique(facts, extractPTElements(joinedRaw))
			}
			if event.EventType == entities.EventTypeImagingStudy || imagingSniffRE.MatchString(lowJoined) {
				facts = appendUnique(facts, extractImagingElements(joinedRaw))
			}
			if len(facts) > maxFactsEnriched {
				facts = facts[:maxFactsEnriched]
			}
		}
		if len(facts) == 0 {
			recordSkip(skips, event, entities.SkipLowSubstance)
			continue
		}

		citation := citationDisplay(event, bundle.PageMap)
		if citation == "" {
			recordSkip(skips, event, entities.SkipNoCitation)
			continue
		}

		entry := entities.Entry{
			EntryID:          event.EventID,
			DateDisplay:      dateDisplayOf(event, inferredDate),
			ProviderDisplay:  providerDisplay(event, bundle.Providers),
			EventTypeDisplay: sniffEventTypeDisplay(event, lowJoined, facts),
			PatientLabel:     eventPatientLabel(event, pagePatientLabels),
			Facts:            facts,
			CitationDisplay:  citation,
			Score:            event.Confidence,
		}
		entries = append(entries, entry)

		if largePacket {
			entries = append(entries, deriveSubEntries(entry)...)
		}
	}
	return entries
}

// filterFacts applies the reportability, noise, header, vitals, lab-flag, and
// temporal-consistency filters to one event's facts.
func (b *CandidateBuilder) filterFacts(event entities.Event, effectiveDate time.Time, largePacket bool, skips *[]entities.SkipRecord) []string {
	maxFacts := maxFactsSmallPacket
	if largePacket {
		maxFacts = maxFactsLargePacket
	}
	var facts []string
	for _, fact := range event.Facts {
		if !textutil.IsReportableFact(fact.Text) {
			continue
		}
		cleaned := textutil.SanitizeForReport(fact.Text)
		if textutil.IsNoiseSpan(cleaned) && !noiseOverrideRE.MatchString(strings.ToLower(cleaned)) {
			continue
		}
		if textutil.IsHeaderNoiseFact(cleaned) {
			continue
		}
		low := strings.ToLower(cleaned)
		if strings.Contains(low, "labs found:") && !labsFoundFlagRE.MatchString(low) {
			continue
		}
		if tobaccoBiometricRE.MatchString(low) {
			continue
		}
		if !textutil.FactTemporallyConsistent(cleaned, effectiveDate) {
			recordSkip(skips, event, entities.SkipFactDateMismatch)
			continue
		}
		cleaned = textutil.StripConflictingTimestamps(cleaned, effectiveDate)
		cleaned = truncateFact(cleaned, maxFactLength)
		if textutil.IsVitalsHeavy(cleaned) {
			continue
		}
		low = strings.ToLower(cleaned)
		if questionnaireOnlyRE.MatchString(low) && !severeQuestionnaireScore(low) {
			continue
		}
		facts = append(facts, cleaned)
		if len(facts) >= maxFacts {
			break
		}
	}
	return facts
}

// truncateFact shortens a fact to the display limit without cutting a rune in
// half.
func truncateFact(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func severeQuestionnaireScore(low string) bool {
	m := questionnaireScoreRE.FindStringSubmatch(low)
	if m == nil {
		return false
	}
	var v int
	if _, err := fmt.Sscanf(m[2], "%d", &v); err != nil {
		return false
	}
	return v >= 15
}

func recordSkip(skips *[]entities.SkipRecord, event entities.Event, reason string) {
	if skips == nil {
		return
	}
	*skips = append(*skips, entities.SkipRecord{
		EventID:    event.EventID,
		Reason:     reason,
		ProviderID: event.ProviderID,
	})
}

func hasExplicitDate(event entities.Event) bool {
	return event.Date != nil && !event.Date.Start.IsZero()
}

func isClinicLikeType(t entities.EventType) bool {
	switch t {
	case entities.EventTypeOfficeVisit, entities.EventTypePTVisit, entities.EventTypeInpatientDailyNote:
		return true
	}
	return false
}

func effectiveDateOf(event entities.Event, inferred time.Time) time.Time {
	if hasExplicitDate(event) && event.Date.Kind == entities.DateKindSingle && textutil.DateSane(event.Date.Start) {
		return event.Date.Start
	}
	return inferred
}

// sortEventsByDate orders events by resolved date with undated events last,
// preserving input order for equal keys.
func sortEventsByDate(events []entities.Event) []entities.Event {
	sorted := make([]entities.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return eventSortKey(sorted[i]) < eventSortKey(sorted[j])
	})
	return sorted
}

func eventSortKey(e entities.Event) string {
	if e.Date == nil || e.Date.Start.IsZero() {
		return "9~UNKNOWN"
	}
	return "0~" + textutil.ISODate(e.Date.SortDate())
}

type datedPage struct {
	page int
	date time.Time
}

// indexProviderDatedPages records, per provider, the pages of explicitly
// dated single-date events so undated neighbors can inherit a date.
func indexProviderDatedPages(events []entities.Event) map[string][]datedPage {
	idx := make(map[string][]datedPage)
	for _, event := range events {
		if event.ProviderID == "" || !hasExplicitDate(event) || event.Date.Kind != entities.DateKindSingle {
			continue
		}
		if !textutil.DateSane(event.Date.Start) {
			continue
		}
		for _, page := range uniqueSortedPages(event.SourcePageNumbers) {
			idx[event.ProviderID] = append(idx[event.ProviderID], datedPage{page: page, date: event.Date.Start})
		}
	}
	return idx
}

// inferDate resolves a date for an undated event: same-provider dated pages
// within a small page distance first, then a regex scan of the event's own
// page text taking the earliest sane date.
func inferDate(event entities.Event, providerPages map[string][]datedPage, pageText map[int]string) time.Time {
	pages := uniqueSortedPages(event.SourcePageNumbers)
	if event.ProviderID != "" && len(pages) > 0 {
		var bestDist int
		var bestDate time.Time
		for _, dp := range providerPages[event.ProviderID] {
			minDist := -1
			for _, p := range pages {
				d := p - dp.page
				if d < 0 {
					d = -d
				}
				if minDist < 0 || d < minDist {
					minDist = d
				}
			}
			if minDist < 0 || minDist > providerPageDistance {
				continue
			}
			if bestDate.IsZero() || minDist < bestDist || (minDist == bestDist && dp.date.Before(bestDate)) {
				bestDist = minDist
				bestDate = dp.date
			}
		}
		if !bestDate.IsZero() {
			return bestDate
		}
	}

	if len(pageText) == 0 {
		return time.Time{}
	}
	var earliest time.Time
	for _, p := range pages {
		text := pageText[p]
		if text == "" {
			continue
		}
		for _, d := range textutil.ParseEmbeddedDates(text) {
			if earliest.IsZero() || d.Before(earliest) {
				earliest = d
			}
		}
	}
	return earliest
}

func uniqueSortedPages(pages []int) []int {
	seen := make(map[int]struct{}, len(pages))
	var out []int
	for _, p := range pages {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// surgeryClassifierGuard requires concrete procedure concepts for events that
// claim to be surgeries. "Status post" mentions without operative markers are
// historical references, not procedures.
func surgeryClassifierGuard(event entities.Event) bool {
	isSurgeryType := event.EventType == entities.EventTypeProcedure
	blob := event.JoinedFactText()
	low := strings.ToLower(blob)
	hasKeyword := surgeryKeywordRE.MatchString(blob)
	directMarkers := []string{
		"procedure performed", "operative report", "operating room",
		"taken to the operating room", "anesthesia", "postop diagnosis",
		"preop diagnosis", "underwent",
	}
	hasDirect := false
	for _, marker := range directMarkers {
		if strings.Contains(low, marker) {
			hasDirect = true
			break
		}
	}
	historicalOnly := (strings.Contains(low, "status post") || strings.Contains(low, "s/p")) && !hasDirect
	if !isSurgeryType && !hasKeyword {
		return true
	}
	if historicalOnly {
		return false
	}
	return len(textutil.ProcedureConcepts(blob)) > 0
}

var highPriorityTypes = map[entities.EventType]struct{}{
	entities.EventTypeERVisit:            {},
	entities.EventTypeHospitalAdmission:  {},
	entities.EventTypeHospitalDischarge:  {},
	entities.EventTypeDischarge:          {},
	entities.EventTypeProcedure:          {},
	entities.EventTypeImagingStudy:       {},
	entities.EventTypeInpatientDailyNote: {},
	entities.EventTypeLabResult:          {},
}

// isHighValueEvent gates undated events: only clinically decisive content may
// enter the timeline without a date.
func isHighValueEvent(event entities.Event, joinedRaw string) bool {
	if sev := event.Extensions.SeverityScore; sev != nil && *sev >= 55 {
		return true
	}
	low := strings.ToLower(joinedRaw)
	if len(textutil.ProcedureConcepts(joinedRaw)) > 0 || len(textutil.InjuryConcepts(joinedRaw)) > 0 {
		return true
	}
	if _, ok := highPriorityTypes[event.EventType]; ok {
		if event.EventType == entities.EventTypeImagingStudy {
			return imagingValueRE.MatchString(low)
		}
		return true
	}
	if severeSymptomRE.MatchString(low) {
		return true
	}
	if textutil.IsVitalsHeavy(joinedRaw) {
		return false
	}
	questionnaireOnly := questionnaireOnlyRE.MatchString(low) && !milestoneTermRE.MatchString(low)
	if questionnaireOnly {
		return false
	}
	return isClinicLikeType(event.EventType) && clinicValueRE.MatchString(low)
}

var eventTypeDisplayNames = map[entities.EventType]string{
	entities.EventTypeHospitalAdmission:  "Hospital Admission",
	entities.EventTypeHospitalDischarge:  "Hospital Discharge",
	entities.EventTypeERVisit:            "Emergency Visit",
	entities.EventTypeInpatientDailyNote: "Inpatient Progress",
	entities.EventTypeOfficeVisit:        "Follow-Up Visit",
	entities.EventTypePTVisit:            "Therapy Visit",
	entities.EventTypeImagingStudy:       "Imaging Study",
	entities.EventTypeProcedure:          "Procedure/Surgery",
	entities.EventTypeLabResult:          "Lab Result",
	entities.EventTypeDischarge:          "Discharge",
}

func fallbackEventTypeDisplay(event entities.Event) string {
	if name, ok := eventTypeDisplayNames[event.EventType]; ok {
		return name
	}
	parts := strings.Split(string(event.EventType), "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

// sniffEventTypeDisplay classifies the display type by ordered content
// sniffing: emergency > procedure > imaging > therapy > orthopedic consult >
// source-type fallback.
func sniffEventTypeDisplay(event entities.Event, lowJoined string, facts []string) string {
	switch {
	case emergencySniffRE.MatchString(lowJoined):
		return "Emergency Visit"
	case procedureSniffRE.MatchString(lowJoined):
		return "Procedure/Surgery"
	case imagingSniffRE.MatchString(lowJoined):
		return "Imaging Study"
	case therapySniffRE.MatchString(lowJoined):
		return "Therapy Visit"
	case orthoSniffRE.MatchString(lowJoined):
		return "Orthopedic Consult"
	case event.EventType == entities.EventTypeInpatientDailyNote && !inpatientMarkerRE.MatchString(strings.Join(facts, " ")):
		return "Clinical Note"
	default:
		return fallbackEventTypeDisplay(event)
	}
}

// dateDisplayOf renders the event's explicit date, the inferred date, or the
// undocumented placeholder.
func dateDisplayOf(event entities.Event, inferred time.Time) string {
	if hasExplicitDate(event) {
		d := event.Date
		if !textutil.DateSane(d.Start) {
			return entities.DateNotDocumented
		}
		if d.Kind == entities.DateKindRange && d.End != nil && textutil.DateSane(*d.End) {
			return fmt.Sprintf("%s to %s (time not documented)", textutil.ISODate(d.Start), textutil.ISODate(*d.End))
		}
		return isoDateDisplay(d.Start)
	}
	if !inferred.IsZero() {
		return isoDateDisplay(inferred)
	}
	return entities.DateNotDocumented
}

func isoDateDisplay(d time.Time) string {
	return textutil.ISODate(d) + " (time not documented)"
}

// providerDisplay resolves the provider name, rejecting low-confidence
// matches, document-title or hash contamination, and cross-cluster radiology
// attribution on non-imaging events.
func providerDisplay(event entities.Event, providers []entities.Provider) string {
	if event.ProviderID == "" {
		return "Unknown"
	}
	for _, provider := range providers {
		if provider.ProviderID != event.ProviderID {
			continue
		}
		name := provider.NormalizedName
		if name == "" {
			name = provider.DetectedNameRaw
		}
		clean := textutil.SanitizeForReport(name)
		if clean == "" || provider.Confidence < minProviderConfidence {
			return "Unknown"
		}
		low := strings.ToLower(clean)
		for _, token := range providerTitleTokens {
			if strings.Contains(low, token) {
				return "Unknown"
			}
		}
		if strings.Contains(low, "radiology") && event.EventType != entities.EventTypeImagingStudy {
			return "Unknown"
		}
		if textutil.ContainsHashLikeToken(low) {
			return "Unknown"
		}
		return clean
	}
	return "Unknown"
}

// citationDisplay builds the page-level citation string, falling back to raw
// citation ids when no pages are recorded.
func citationDisplay(event entities.Event, pageMap map[int]entities.PageRef) string {
	pages := uniqueSortedPages(event.SourcePageNumbers)
	if len(pages) == 0 {
		if len(event.CitationIDs) > 0 {
			ids := uniqueSortedStrings(event.CitationIDs)
			if len(ids) > 3 {
				ids = ids[:3]
			}
			return "record refs: " + strings.Join(ids, ", ")
		}
		return ""
	}
	return pageCitation(pages, pageMap)
}

func pageCitation(pages []int, pageMap map[int]entities.PageRef) string {
	refs := make([]string, 0, 5)
	for _, page := range pages {
		if len(refs) >= 5 {
			break
		}
		if ref, ok := pageMap[page]; ok {
			refs = append(refs, fmt.Sprintf("%s p. %d", ref.Document, ref.LocalPage))
		} else {
			refs = append(refs, fmt.Sprintf("p. %d", page))
		}
	}
	return strings.Join(refs, ", ")
}

func uniqueSortedStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// eventPatientLabel picks the most frequent page-level patient label across
// the event's source pages, ties broken alphabetically.
func eventPatientLabel(event entities.Event, labels map[int]string) string {
	if len(labels) == 0 {
		return "Unknown Patient"
	}
	counts := make(map[string]int)
	for _, page := range uniqueSortedPages(event.SourcePageNumbers) {
		if label, ok := labels[page]; ok && label != "" {
			counts[label]++
		}
	}
	if len(counts) == 0 {
		return "Unknown Patient"
	}
	best := ""
	bestCount := -1
	for label, count := range counts {
		if count > bestCount || (count == bestCount && label < best) {
			best = label
			bestCount = count
		}
	}
	return best
}

func appendUnique(facts []string, extra []string) []string {
	seen := make(map[string]struct{}, len(facts))
	for _, f := range facts {
		seen[strings.ToLower(f)] = struct{}{}
	}
	for _, f := range extra {
		key := strings.ToLower(f)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		facts = append(facts, f)
	}
	return facts
}
