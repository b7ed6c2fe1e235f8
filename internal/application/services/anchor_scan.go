package services

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/casevault/citeline/internal/domain/entities"
	"github.com/casevault/citeline/pkg/textutil"
)

const (
	anchorMinMarkers   = 2
	anchorMaxSentences = 4
	anchorDefaultScore = 70
)

var anchorNamespace = uuid.MustParse("3b9e0a77-6d14-4f52-8c21-d0b7e5a94f68")

// anchorCategory defines one milestone scan: the markers that must co-occur
// on a page and the display type of the synthesized entry.
type anchorCategory struct {
	name     string
	display  string
	bucket   Bucket
	markers  []*regexp.Regexp
	sentence *regexp.Regexp
}

var anchorCategories = []anchorCategory{
	{
		name:    "procedure",
		display: "Procedure/Surgery",
		bucket:  BucketProcedure,
		markers: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(epidural|esi|interlaminar|transforaminal)\b`),
			regexp.MustCompile(`(?i)\b(fluoroscopy|fluoroscopic)\b`),
			regexp.MustCompile(`(?i)\b(depo-?medrol|lidocaine|kenalog)\b`),
			regexp.MustCompile(`(?i)\b(procedure performed|operative report|informed consent)\b`),
		},
		sentence: regexp.MustCompile(`(?i)\b(procedure|injection|fluoroscopy|epidural|needle|consent)\b`),
	},
	{
		name:    "ed_visit",
		display: "Emergency Visit",
		bucket:  BucketED,
		markers: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(emergency department|emergency room|ed visit)\b`),
			regexp.MustCompile(`(?i)\b(chief complaint|triage)\b`),
			regexp.MustCompile(`(?i)\b(disposition|discharged home|admitted from)\b`),
		},
		sentence: regexp.MustCompile(`(?i)\b(chief complaint|triage|disposition|emergency|presented)\b`),
	},
	{
		name:    "mri",
		display: "Imaging Study",
		bucket:  BucketMRI,
		markers: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bmri\b`),
			regexp.MustCompile(`(?i)\b(impression|findings)\b`),
			regexp.MustCompile(`(?i)\b(disc|protrusion|stenosis|tear|signal)\b`),
		},
		sentence: regexp.MustCompile(`(?i)\b(impression|findings|disc|protrusion|stenosis|tear)\b`),
	},
	{
		name:    "ortho_consult",
		display: "Orthopedic Consult",
		bucket:  BucketOrtho,
		markers: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(orthopedic|orthopaedic|ortho consult)\b`),
			regexp.MustCompile(`(?i)\b(assessment|impression|examination)\b`),
			regexp.MustCompile(`(?i)\b(fracture|tear|rotator cuff|hardware|orif)\b`),
		},
		sentence: regexp.MustCompile(`(?i)\b(orthopedic|assessment|impression|fracture|tear|recommend)\b`),
	},
}

// AnchorScanner synthesizes milestone entries from raw page text when a
// required category has no surviving entry but its markers co-occur on a page.
type AnchorScanner struct {
	classifier *Classifier
}

// NewAnchorScanner creates a scanner.
func NewAnchorScanner(classifier *Classifier) *AnchorScanner {
	return &AnchorScanner{classifier: classifier}
}

// MissingCategories reports which milestone categories have no entry in the
// given set.
func (a *AnchorScanner) MissingCategories(entries []entities.Entry) []anchorCategory {
	covered := make(map[Bucket]bool)
	for _, entry := range entries {
		covered[a.classifier.CoverageBucket(entry)] = true
	}
	var missing []anchorCategory
	for _, cat := range anchorCategories {
		if !covered[cat.bucket] {
			missing = append(missing, cat)
		}
	}
	return missing
}

// Synthesize scans page text for each missing category and emits at most one
// synthetic entry per category, anchored to the earliest inferable date on
// the supporting pages.
func (a *AnchorScanner) Synthesize(missing []anchorCategory, bundle entities.CaseBundle, patientLabel string) []entities.Entry {
	if len(bundle.PageText) == 0 {
		return nil
	}
	pages := sortedPageNumbers(bundle.PageText)

	var out []entities.Entry
	for _, cat := range missing {
		entry, ok := a.scanCategory(cat, pages, bundle, patientLabel)
		if ok {
			out = append(out, entry)
		}
	}
	return out
}

func (a *AnchorScanner) scanCategory(cat anchorCategory, pages []int, bundle entities.CaseBundle, patientLabel string) (entities.Entry, bool) {
	var support []int
	for _, page := range pages {
		text := bundle.PageText[page]
		hits := 0
		for _, marker := range cat.markers {
			if marker.MatchString(text) {
				hits++
			}
		}
		if hits >= anchorMinMarkers {
			support = append(support, page)
		}
	}
	if len(support) == 0 {
		return entities.Entry{}, false
	}

	anchorDate := earliestDateOnPages(support, bundle.PageText)
	sentences := representativeSentences(cat, support, bundle.PageText)
	if len(sentences) == 0 {
		return entities.Entry{}, false
	}

	dateDisplay := entities.DateNotDocumented
	if !anchorDate.IsZero() {
		dateDisplay = isoDateDisplay(anchorDate)
	}
	return entities.Entry{
		EntryID:          anchorEntryID(cat.name, support),
		DateDisplay:      dateDisplay,
		ProviderDisplay:  "Unknown",
		EventTypeDisplay: cat.display,
		PatientLabel:     patientLabel,
		Facts:            sentences,
		CitationDisplay:  pageCitation(support, bundle.PageMap),
		Score:            anchorDefaultScore,
	}, true
}

// anchorEntryID derives a deterministic id from the category and supporting
// page set.
func anchorEntryID(category string, pages []int) string {
	parts := make([]string, 0, len(pages)+1)
	parts = append(parts, category)
	for _, p := range pages {
		parts = append(parts, fmt.Sprintf("%d", p))
	}
	return "anchor-" + uuid.NewSHA1(anchorNamespace, []byte(strings.Join(parts, "|"))).String()
}

func earliestDateOnPages(pages []int, pageText map[int]string) time.Time {
	var earliest time.Time
	for _, page := range pages {
		d, ok := textutil.EarliestEmbeddedDate(pageText[page])
		if !ok {
			continue
		}
		if earliest.IsZero() || d.Before(earliest) {
			earliest = d
		}
	}
	return earliest
}

func representativeSentences(cat anchorCategory, pages []int, pageText map[int]string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, page := range pages {
		for _, line := range splitClinicalLines(pageText[page]) {
			if !cat.sentence.MatchString(line) {
				continue
			}
			cleaned := textutil.SanitizeForReport(line)
			if !textutil.IsReportableFact(cleaned) {
				continue
			}
			key := strings.ToLower(cleaned)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, cleaned)
			if len(out) >= anchorMaxSentences {
				return out
			}
		}
	}
	return out
}

func sortedPageNumbers(pageText map[int]string) []int {
	pages := make([]int, 0, len(pageText))
	for p := range pageText {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}
