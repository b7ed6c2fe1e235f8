package services

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/casevault/citeline/internal/domain/entities"
	"github.com/casevault/citeline/pkg/textutil"
)

const maxMergedFacts = 6

var procedureMergeNamespace = uuid.MustParse("7f1c61d4-2e8a-4c36-9b0d-5a1f4e2d8c03")

// Compactor merges duplicate same-day procedure rows and imposes the final
// deterministic ordering. Running it on its own output is a no-op.
type Compactor struct {
	classifier *Classifier
}

// NewCompactor creates a compactor.
func NewCompactor(classifier *Classifier) *Compactor {
	return &Compactor{classifier: classifier}
}

// CompactPatient collapses same-day procedure rows for one patient group and
// orders the result by (ISO date ascending, score descending, id).
func (c *Compactor) CompactPatient(entries []entities.Entry) []entities.Entry {
	out := c.mergeSameDayProcedures(entries)
	sort.SliceStable(out, func(i, j int) bool {
		ki, kj := entryDateKey(out[i]), entryDateKey(out[j])
		if ki != kj {
			return ki < kj
		}
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].EntryID < out[j].EntryID
	})
	return out
}

// OrderFinal imposes the cross-patient ordering (patient label, date key, id).
func (c *Compactor) OrderFinal(entries []entities.Entry) []entities.Entry {
	out := make([]entities.Entry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PatientLabel != out[j].PatientLabel {
			return out[i].PatientLabel < out[j].PatientLabel
		}
		ki, kj := entryDateKey(out[i]), entryDateKey(out[j])
		if ki != kj {
			return ki < kj
		}
		return out[i].EntryID < out[j].EntryID
	})
	return out
}

// mergeSameDayProcedures groups procedure rows by extracted ISO date and
// replaces each multi-row group with one consolidated entry: the
// highest-scoring row's metadata, union citations, and deduplicated facts.
func (c *Compactor) mergeSameDayProcedures(entries []entities.Entry) []entities.Entry {
	groups := make(map[string][]int)
	var order []string
	for i, entry := range entries {
		if c.classifier.Classify(entry) != ClassSurgeryProcedure {
			continue
		}
		date, ok := textutil.ExtractISODate(entry.DateDisplay)
		if !ok {
			continue
		}
		key := entry.PatientLabel + "|" + textutil.ISODate(date)
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
		sort.SliceStable(members, func(a, b int) bool {
			ea, eb := entries[members[a]], entries[members[b]]
			if ea.Score != eb.Score {
				return ea.Score > eb.Score
			}
			return ea.EntryID < eb.EntryID
		})
		merged := entries[members[0]]
		merged.EntryID = mergedProcedureID(entries, members)
		merged.Facts = mergeFactsCapped(entries, members, maxMergedFacts)
		merged.CitationDisplay = unionCitations(entries, members)
		for _, idx := range members[1:] {
			drop[idx] = true
		}
		replacement[members[0]] = merged
	}
	if len(replacement) == 0 {
		return entries
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

// mergedProcedureID derives a stable id from the sorted member ids so the
// merge is reproducible and idempotent.
func mergedProcedureID(entries []entities.Entry, members []int) string {
	ids := make([]string, 0, len(members))
	for _, idx := range members {
		ids = append(ids, entries[idx].EntryID)
	}
	sort.Strings(ids)
	return "merged-" + uuid.NewSHA1(procedureMergeNamespace, []byte(strings.Join(ids, "|"))).String()
}

func mergeFactsCapped(entries []entities.Entry, members []int, limit int) []string {
	seen := make(map[string]struct{})
	var facts []string
	for _, idx := range members {
		for _, fact := range entries[idx].Facts {
			key := strings.ToLower(fact)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			facts = append(facts, fact)
			if len(facts) >= limit {
				return facts
			}
		}
	}
	return facts
}

func unionCitations(entries []entities.Entry, members []int) string {
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
		}
	}
	return strings.Join(parts, ", ")
}

// entryDateKey sorts dated entries by ISO date and places undated entries
// last.
func entryDateKey(entry entities.Entry) string {
	if date, ok := textutil.ExtractISODate(entry.DateDisplay); ok {
		return "0~" + textutil.ISODate(date)
	}
	return "9~" + entry.DateDisplay
}
