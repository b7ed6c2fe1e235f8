package services

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/casevault/citeline/internal/domain/entities"
	"github.com/casevault/citeline/pkg/textutil"
)

const (
	maxSplitEntries    = 8
	maxImagingEntries  = 4
	maxCollapsedFacts  = 4
	factsPerSplit      = 3
	minDenseSegmentLen = 28
)

var collapseNamespace = uuid.MustParse("7c41d2a9-5b3e-4f08-9d16-84a2c7e05b39")

var (
	ptMetricRE        = regexp.MustCompile(`(?i)\b(rom|range of motion|flexion|extension|abduction|strength|\d+\s*/\s*5|\d+\s*degrees?)\b`)
	ptAssessmentRE    = regexp.MustCompile(`(?i)\b(assessment|tolerat|progress|improv|declin|plateau|goal)\b`)
	ptProgressionRE   = regexp.MustCompile(`(?i)\b(advanced|progressed|upgraded|increased (?:weight|resistance|reps)|next phase|phase \d)\b`)
	imagingLineRE     = regexp.MustCompile(`(?i)\b(impression|findings|comparison|technique)\b`)
	bodyRegionRE      = regexp.MustCompile(`(?i)\b(shoulder|knee|hip|ankle|wrist|elbow|cervical|lumbar|thoracic|spine|back|neck|hand|foot|leg|arm)\b`)
	segmentBoundaryRE = regexp.MustCompile(`[.;]\s+`)
	clinicalSegmentRE = regexp.MustCompile(`(?i)\b(impression|assessment|plan|diagnosis|procedure|injection|rom|range of motion|strength|pain|work restriction|return to work|chief complaint|hpi|history of present illness|radicular|disc protrusion|mri|x-?ray)\b`)
	anyDigitRE        = regexp.MustCompile(`\d`)
	painScoreValueRE  = regexp.MustCompile(`(?i)\bpain(?:\s*(?:score|level|severity))?\s*[:=]?\s*(\d{1,2})(?:\s*/\s*10)?\b`)
	romStrengthValRE  = regexp.MustCompile(`(?i)\b(\d{1,3}\s*degrees?|\d(?:\.\d)?\s*/\s*5)\b`)
	planSentenceRE    = regexp.MustCompile(`(?i)\b(plan|home exercise|follow-?up|continue|advance|progress to)\b`)
)

// ScaleAdapter reshapes the candidate pool for packet size: splitting dense
// entries, aggregating therapy into weekly summaries, and collapsing
// near-duplicates when the pool is still oversized.
type ScaleAdapter struct {
	collapseThreshold int
}

// NewScaleAdapter creates an adapter that collapses duplicate candidates once
// the pool exceeds the given threshold.
func NewScaleAdapter(collapseThreshold int) *ScaleAdapter {
	return &ScaleAdapter{collapseThreshold: collapseThreshold}
}

// Adapt applies large-packet reshaping in a fixed order: aggregate therapy
// weeks, split dense entries, then collapse if the pool is still above
// threshold. Aggregation runs first so routine visits fold into weekly rows
// before fragmentation can scatter their facts. Small packets pass through
// unchanged except for collapse, which applies at any size above threshold.
func (s *ScaleAdapter) Adapt(entries []entities.Entry, largePacket bool) []entities.Entry {
	out := entries
	if largePacket {
		out = aggregateTherapyWeeks(out)
		out = splitDenseEntries(out)
	}
	if len(out) > s.collapseThreshold {
		out = collapseDuplicates(out)
	}
	return out
}

// splitDenseEntries fragments each entry's facts on sentence boundaries and,
// when more than one clinically dense segment survives, replaces the entry
// with one ::split<n> sibling per segment, capped at eight. Entries whose
// facts reduce to a single segment pass through untouched.
func splitDenseEntries(entries []entities.Entry) []entities.Entry {
	var out []entities.Entry
	for _, entry := range entries {
		if strings.Contains(entry.EntryID, "::") {
			out = append(out, entry)
			continue
		}
		segments := substantiveSegments(entry.Facts)
		if len(segments) <= 1 {
			out = append(out, entry)
			continue
		}
		if len(segments) > maxSplitEntries {
			segments = segments[:maxSplitEntries]
		}
		for i, segment := range segments {
			sub := entry
			sub.EntryID = fmt.Sprintf("%s::split%d", entry.EntryID, i+1)
			sub.Facts = []string{segment}
			out = append(out, sub)
		}
	}
	return out
}

// substantiveSegments splits facts on `.`/`;` boundaries and keeps segments
// that carry a clinical keyword or are numerically dense, deduplicated in
// document order.
func substantiveSegments(facts []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, fact := range facts {
		for _, segment := range segmentBoundaryRE.Split(fact, -1) {
			segment = strings.TrimSpace(segment)
			if segment == "" {
				continue
			}
			dense := len(segment) >= minDenseSegmentLen && anyDigitRE.MatchString(segment)
			if !clinicalSegmentRE.MatchString(segment) && !dense {
				continue
			}
			key := strings.ToLower(segment)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, segment)
		}
	}
	return out
}

type therapyWeekKey struct {
	patient  string
	provider string
	region   string
	isoWeek  string
}

// aggregateTherapyWeeks merges routine therapy visits sharing a patient,
// provider, body region, and ISO week into one weekly summary row. The
// earliest visit in the week anchors the date and id.
func aggregateTherapyWeeks(entries []entities.Entry) []entities.Entry {
	groups := make(map[therapyWeekKey][]int)
	var order []therapyWeekKey
	for i, entry := range entries {
		if entry.EventTypeDisplay != "Therapy Visit" || strings.Contains(entry.EntryID, "::") {
			continue
		}
		date, ok := textutil.ExtractISODate(entry.DateDisplay)
		if !ok {
			continue
		}
		year, week := date.ISOWeek()
		key := therapyWeekKey{
			patient:  entry.PatientLabel,
			provider: entry.ProviderDisplay,
			region:   dominantBodyRegion(entry.Facts),
			isoWeek:  fmt.Sprintf("%dW%02d", year, week),
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	drop := make(map[int]bool)
	replacement := make(map[int]entities.Entry)
	for _, key := range order {
		members := groups[key]
		if len(members) < 2 {
			continue
		}
		anchor := entries[members[0]]
		merged := anchor
		merged.EntryID = anchor.EntryID + "::pt_weekly"
		merged.Facts = weeklyTherapyFacts(entries, members)
		merged.CitationDisplay = mergeWeekCitations(entries, members)
		best := anchor.Score
		for _, idx := range members[1:] {
			if entries[idx].Score > best {
				best = entries[idx].Score
			}
			drop[idx] = true
		}
		merged.Score = best
		replacement[members[0]] = merged
	}

	var out []entities.Entry
	for i, entry := range entries {
		if drop[i] {
			continue
		}
		if merged, ok := replacement[i]; ok {
			out = append(out, merged)
			continue
		}
		out = append(out, entry)
	}
	return out
}

func dominantBodyRegion(facts []string) string {
	counts := make(map[string]int)
	for _, fact := range facts {
		for _, m := range bodyRegionRE.FindAllString(strings.ToLower(fact), -1) {
			counts[m]++
		}
	}
	best := ""
	bestCount := 0
	for region, count := range counts {
		if count > bestCount || (count == bestCount && region < best) {
			best = region
			bestCount = count
		}
	}
	return best
}

// weeklyTherapyFacts synthesizes the weekly summary row: visit count with the
// observed pain-score range, the set of ROM/strength values, and one
// representative plan sentence.
func weeklyTherapyFacts(entries []entities.Entry, members []int) []string {
	minPain, maxPain := -1, -1
	valuesSeen := make(map[string]struct{})
	var values []string
	plan := ""
	for _, idx := range members {
		for _, fact := range entries[idx].Facts {
			for _, m := range painScoreValueRE.FindAllStringSubmatch(fact, -1) {
				n, err := strconv.Atoi(m[1])
				if err != nil || n > 10 {
					continue
				}
				if minPain < 0 || n < minPain {
					minPain = n
				}
				if n > maxPain {
					maxPain = n
				}
			}
			for _, v := range romStrengthValRE.FindAllString(fact, -1) {
				key := strings.ToLower(strings.Join(strings.Fields(v), " "))
				if _, ok := valuesSeen[key]; ok {
					continue
				}
				valuesSeen[key] = struct{}{}
				values = append(values, key)
			}
			if plan == "" && planSentenceRE.MatchString(fact) {
				plan = fact
			}
		}
	}

	summary := fmt.Sprintf("Weekly therapy summary: %d visits", len(members))
	if minPain >= 0 {
		if minPain == maxPain {
			summary += fmt.Sprintf(", pain %d/10", minPain)
		} else {
			summary += fmt.Sprintf(", pain %d-%d/10", minPain, maxPain)
		}
	}
	facts := []string{summary + "."}
	if len(values) > 0 {
		sort.Strings(values)
		if len(values) > 6 {
			values = values[:6]
		}
		facts = append(facts, "ROM/strength: "+strings.Join(values, ", ")+".")
	}
	if plan != "" {
		facts = append(facts, plan)
	}
	return facts
}

func mergeWeekCitations(entries []entities.Entry, members []int) string {
	seen := make(map[string]struct{})
	var parts []string
	for _, idx := range members {
		for _, part := range strings.Split(entries[idx].CitationDisplay, ", ") {
			if part == "" {
				continue
			}
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			parts = append(parts, part)
			if len(parts) >= 5 {
				return strings.Join(parts, ", ")
			}
		}
	}
	return strings.Join(parts, ", ")
}

type collapseKey struct {
	patient  string
	date     string
	provider string
	marker   string
	typeName string
}

// collapseDuplicates merges candidates sharing patient, date, provider, a
// coarse content marker, and display type into one entry with a deterministic
// group id, member citations unioned, and a synthesized summary sentence for
// therapy and nursing groups.
func collapseDuplicates(entries []entities.Entry) []entities.Entry {
	groups := make(map[collapseKey][]int)
	var order []collapseKey
	for i, entry := range entries {
		key := collapseKey{
			patient:  entry.PatientLabel,
			date:     entry.DateDisplay,
			provider: entry.ProviderDisplay,
			marker:   coarseContentMarker(entry),
			typeName: entry.EventTypeDisplay,
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	var out []entities.Entry
	for _, key := range order {
		members := groups[key]
		if len(members) == 1 {
			out = append(out, entries[members[0]])
			continue
		}

		ids := make([]string, 0, len(members))
		best := 0
		for _, idx := range members {
			ids = append(ids, entries[idx].EntryID)
			if entries[idx].Score > best {
				best = entries[idx].Score
			}
		}
		sort.Strings(ids)

		merged := entries[members[0]]
		merged.EntryID = "dup-" + uuid.NewSHA1(collapseNamespace, []byte(strings.Join(ids, "|"))).String()
		merged.Facts = collapsedFacts(entries, members, key)
		merged.CitationDisplay = collapsedCitations(entries, members)
		merged.Score = best
		out = append(out, merged)
	}
	return out
}

// collapsedFacts renders the facts of one collapsed group: a synthesized
// summary sentence for therapy and nursing groups, otherwise the distinct
// member facts folded in document order up to the cap.
func collapsedFacts(entries []entities.Entry, members []int, key collapseKey) []string {
	day := strings.SplitN(key.date, " ", 2)[0]
	switch key.marker {
	case "pt":
		return []string{fmt.Sprintf("PT sessions on %s summarized: gradual progression documented with cited metrics.", day)}
	case "nursing":
		return []string{fmt.Sprintf("Nursing/flowsheet documentation on %s consolidated; see citations for details.", day)}
	}

	seen := make(map[string]struct{})
	var facts []string
	for _, idx := range members {
		for _, fact := range entries[idx].Facts {
			norm := strings.ToLower(strings.TrimSpace(fact))
			if norm == "" {
				continue
			}
			if _, ok := seen[norm]; ok {
				continue
			}
			seen[norm] = struct{}{}
			facts = append(facts, fact)
			if len(facts) >= maxCollapsedFacts {
				return facts
			}
		}
	}
	if len(facts) == 0 {
		facts = entries[members[0]].Facts
		if len(facts) > 2 {
			facts = facts[:2]
		}
	}
	return facts
}

func collapsedCitations(entries []entities.Entry, members []int) string {
	seen := make(map[string]struct{})
	for _, idx := range members {
		if c := entries[idx].CitationDisplay; c != "" {
			seen[c] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return entries[members[0]].CitationDisplay
	}
	parts := make([]string, 0, len(seen))
	for c := range seen {
		parts = append(parts, c)
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

// coarseContentMarker classifies an entry as therapy, nursing, or generic for
// collapse grouping.
func coarseContentMarker(entry entities.Entry) string {
	low := strings.ToLower(entry.FactBlob())
	switch {
	case strings.Contains(low, "physical therapy") || strings.Contains(low, " rom ") || ptMetricRE.MatchString(low):
		return "pt"
	case strings.Contains(low, "nursing") || strings.Contains(low, "flowsheet") || strings.Contains(low, "shift"):
		return "nursing"
	default:
		return "generic"
	}
}

// deriveSubEntries emits density-preserving sub-rows for large packets:
// therapy metric/assessment/progression facets and per-impression imaging
// rows, each tagged with a stable id suffix.
func deriveSubEntries(entry entities.Entry) []entities.Entry {
	var out []entities.Entry
	low := strings.ToLower(entry.FactBlob())
	if entry.EventTypeDisplay == "Therapy Visit" {
		for _, facet := range []struct {
			suffix string
			re     *regexp.Regexp
		}{
			{"pt_metrics", ptMetricRE},
			{"pt_assessment", ptAssessmentRE},
			{"pt_progression", ptProgressionRE},
		} {
			facts := selectFacts(entry.Facts, facet.re)
			if len(facts) == 0 {
				continue
			}
			sub := entry
			sub.EntryID = entry.EntryID + "::" + facet.suffix
			sub.Facts = facts
			out = append(out, sub)
		}
	}
	if entry.EventTypeDisplay == "Imaging Study" && strings.Contains(low, "impression") {
		n := 0
		for _, fact := range entry.Facts {
			if !imagingLineRE.MatchString(fact) {
				continue
			}
			n++
			if n > maxImagingEntries {
				break
			}
			sub := entry
			sub.EntryID = fmt.Sprintf("%s::img_%d", entry.EntryID, n)
			sub.Facts = []string{fact}
			out = append(out, sub)
		}
	}
	return out
}

// extractPTElements pulls measurement and assessment sentences out of raw
// therapy text so large packets keep quantitative detail.
func extractPTElements(raw string) []string {
	var out []string
	for _, line := range splitClinicalLines(raw) {
		if ptMetricRE.MatchString(line) || ptProgressionRE.MatchString(line) {
			out = append(out, line)
			if len(out) >= factsPerSplit {
				break
			}
		}
	}
	return out
}

// extractImagingElements pulls impression/findings sentences out of raw
// imaging text.
func extractImagingElements(raw string) []string {
	var out []string
	for _, line := range splitClinicalLines(raw) {
		if imagingLineRE.MatchString(line) {
			out = append(out, line)
			if len(out) >= factsPerSplit {
				break
			}
		}
	}
	return out
}

var clinicalLineSplitRE = regexp.MustCompile(`[\n;]+|\.\s+`)

func splitClinicalLines(raw string) []string {
	var out []string
	for _, part := range clinicalLineSplitRE.Split(raw, -1) {
		part = strings.TrimSpace(part)
		if len(part) >= 12 && len(part) <= maxFactLength {
			out = append(out, part)
		}
	}
	return out
}

func selectFacts(facts []string, re *regexp.Regexp) []string {
	var out []string
	for _, fact := range facts {
		if re.MatchString(fact) {
			out = append(out, fact)
			if len(out) >= factsPerSplit {
				break
			}
		}
	}
	return out
}
