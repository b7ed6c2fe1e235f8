package services

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casevault/citeline/internal/domain/entities"
)

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func singleDate(t time.Time) *entities.EventDate {
	return &entities.EventDate{Kind: entities.DateKindSingle, Start: t, Source: entities.DateSourceTier1}
}

func testBuilder() *CandidateBuilder {
	return NewCandidateBuilder(NewClassifier(), 300)
}

func TestBuild_VitalsOnlyEventDropped(t *testing.T) {
	event := entities.Event{
		EventID:           "ev-vitals",
		EventType:         entities.EventTypeOfficeVisit,
		Date:              singleDate(day(2021, 4, 1)),
		Facts:             []entities.Fact{{Text: "Body Height: 150 cm; Body Weight: 70 kg; Blood Pressure 120/80"}},
		SourcePageNumbers: []int{1},
	}
	var skips []entities.SkipRecord
	entries := testBuilder().Build(entities.CaseBundle{Events: []entities.Event{event}}, nil, &skips)

	assert.Empty(t, entries)
	require.Len(t, skips, 1)
	assert.Equal(t, entities.SkipLowSubstance, skips[0].Reason)
}

func TestBuild_SurgeryGuardRejectsHistoricalMention(t *testing.T) {
	event := entities.Event{
		EventID:           "ev-sp",
		EventType:         entities.EventTypeProcedure,
		Date:              singleDate(day(2021, 4, 1)),
		Facts:             []entities.Fact{{Text: "Status post ORIF of the right ankle, doing well"}},
		SourcePageNumbers: []int{2},
	}
	var skips []entities.SkipRecord
	entries := testBuilder().Build(entities.CaseBundle{Events: []entities.Event{event}}, nil, &skips)

	assert.Empty(t, entries)
	require.NotEmpty(t, skips)
	assert.Equal(t, entities.SkipSurgeryGuard, skips[0].Reason)
}

func TestBuild_OperativeProcedureSurvivesGuard(t *testing.T) {
	event := entities.Event{
		EventID:           "ev-orif",
		EventType:         entities.EventTypeProcedure,
		Date:              singleDate(day(2021, 4, 2)),
		Facts:             []entities.Fact{{Text: "Patient underwent ORIF of the right ankle fracture"}},
		SourcePageNumbers: []int{3},
	}
	var skips []entities.SkipRecord
	entries := testBuilder().Build(entities.CaseBundle{Events: []entities.Event{event}}, nil, &skips)

	require.Len(t, entries, 1)
	assert.Equal(t, "Procedure/Surgery", entries[0].EventTypeDisplay)
	assert.Equal(t, "2021-04-02 (time not documented)", entries[0].DateDisplay)
	assert.Equal(t, "p. 3", entries[0].CitationDisplay)
}

func TestBuild_UndatedLowValueRejected(t *testing.T) {
	event := entities.Event{
		EventID:           "ev-undated",
		EventType:         entities.EventTypeOfficeVisit,
		Facts:             []entities.Fact{{Text: "Routine visit, no acute complaints today"}},
		SourcePageNumbers: []int{4},
	}
	var skips []entities.SkipRecord
	entries := testBuilder().Build(entities.CaseBundle{Events: []entities.Event{event}}, nil, &skips)

	assert.Empty(t, entries)
	require.Len(t, skips, 1)
	assert.Equal(t, entities.SkipUndatedNoInference, skips[0].Reason)
}

func TestBuild_UndatedClinicNoteWithoutStrongFindingsRejected(t *testing.T) {
	event := entities.Event{
		EventID:           "ev-und-clinic",
		EventType:         entities.EventTypeOfficeVisit,
		Facts:             []entities.Fact{{Text: "Assessment: neck pain improving, continue conservative care"}},
		SourcePageNumbers: []int{4},
	}
	var skips []entities.SkipRecord
	entries := testBuilder().Build(entities.CaseBundle{Events: []entities.Event{event}}, nil, &skips)

	assert.Empty(t, entries)
	require.Len(t, skips, 1)
	assert.Equal(t, entities.SkipUndatedLowValue, skips[0].Reason)
}

func TestBuild_UndatedERVisitAdmittedWithoutSkipRecord(t *testing.T) {
	event := entities.Event{
		EventID:           "ev-und-er",
		EventType:         entities.EventTypeERVisit,
		Facts:             []entities.Fact{{Text: "Emergency room evaluation after the collision; Assessment: acute cervical strain"}},
		SourcePageNumbers: []int{7},
	}
	var skips []entities.SkipRecord
	entries := testBuilder().Build(entities.CaseBundle{Events: []entities.Event{event}}, nil, &skips)

	require.Len(t, entries, 1)
	assert.Equal(t, "ev-und-er", entries[0].EntryID)
	assert.Empty(t, skips)
}

func TestBuild_DateInferredFromSameProviderNearbyPages(t *testing.T) {
	dated := entities.Event{
		EventID:           "ev-dated",
		ProviderID:        "prov-1",
		EventType:         entities.EventTypeOfficeVisit,
		Date:              singleDate(day(2020, 3, 10)),
		Facts:             []entities.Fact{{Text: "Assessment: lumbar strain improving"}},
		SourcePageNumbers: []int{5},
	}
	undated := entities.Event{
		EventID:           "ev-inferred",
		ProviderID:        "prov-1",
		EventType:         entities.EventTypeImagingStudy,
		Facts:             []entities.Fact{{Text: "MRI impression: disc protrusion at L4-5"}},
		SourcePageNumbers: []int{6},
	}
	var skips []entities.SkipRecord
	entries := testBuilder().Build(entities.CaseBundle{Events: []entities.Event{dated, undated}}, nil, &skips)

	require.Len(t, entries, 2)
	for _, e := range entries {
		if e.EntryID == "ev-inferred" {
			assert.Equal(t, "2020-03-10 (time not documented)", e.DateDisplay)
		}
	}
}

func TestBuild_ProviderDisplayGuards(t *testing.T) {
	providers := []entities.Provider{
		{ProviderID: "prov-low", NormalizedName: "Dr. Alvarez", Confidence: 40},
		{ProviderID: "prov-rad", NormalizedName: "City Radiology Group", Confidence: 95},
		{ProviderID: "prov-good", NormalizedName: "Dr. Osei", Confidence: 92},
	}
	events := []entities.Event{
		{
			EventID:           "ev-low-conf",
			ProviderID:        "prov-low",
			EventType:         entities.EventTypeOfficeVisit,
			Date:              singleDate(day(2021, 5, 1)),
			Facts:             []entities.Fact{{Text: "Assessment: cervical strain with radiculopathy"}},
			SourcePageNumbers: []int{7},
		},
		{
			EventID:           "ev-rad-mismatch",
			ProviderID:        "prov-rad",
			EventType:         entities.EventTypeOfficeVisit,
			Date:              singleDate(day(2021, 5, 2)),
			Facts:             []entities.Fact{{Text: "Assessment: cervical strain with radiculopathy"}},
			SourcePageNumbers: []int{8},
		},
		{
			EventID:           "ev-good",
			ProviderID:        "prov-good",
			EventType:         entities.EventTypeOfficeVisit,
			Date:              singleDate(day(2021, 5, 3)),
			Facts:             []entities.Fact{{Text: "Assessment: cervical strain with radiculopathy"}},
			SourcePageNumbers: []int{9},
		},
	}
	var skips []entities.SkipRecord
	entries := testBuilder().Build(entities.CaseBundle{Events: events, Providers: providers}, nil, &skips)

	require.Len(t, entries, 3)
	byID := make(map[string]entities.Entry)
	for _, e := range entries {
		byID[e.EntryID] = e
	}
	assert.Equal(t, "Unknown", byID["ev-low-conf"].ProviderDisplay)
	assert.Equal(t, "Unknown", byID["ev-rad-mismatch"].ProviderDisplay)
	assert.Equal(t, "Dr. Osei", byID["ev-good"].ProviderDisplay)
}

func TestBuild_FactWithConflictingDateDropped(t *testing.T) {
	event := entities.Event{
		EventID:   "ev-conflict",
		EventType: entities.EventTypeOfficeVisit,
		Date:      singleDate(day(2020, 1, 1)),
		Facts: []entities.Fact{
			{Text: "Follow-up on 2020-06-15 for wound check"},
			{Text: "Assessment: wound healing without infection"},
		},
		SourcePageNumbers: []int{10},
	}
	var skips []entities.SkipRecord
	entries := testBuilder().Build(entities.CaseBundle{Events: []entities.Event{event}}, nil, &skips)

	require.Len(t, entries, 1)
	require.Len(t, entries[0].Facts, 1)
	assert.Contains(t, entries[0].Facts[0], "wound healing")
	reasons := make([]string, 0, len(skips))
	for _, s := range skips {
		reasons = append(reasons, s.Reason)
	}
	assert.Contains(t, reasons, entities.SkipFactDateMismatch)
}

func TestBuild_CitationFallsBackToRecordRefs(t *testing.T) {
	event := entities.Event{
		EventID:     "ev-refs",
		EventType:   entities.EventTypeERVisit,
		Date:        singleDate(day(2021, 6, 1)),
		Facts:       []entities.Fact{{Text: "Chief complaint: chest pain after fall"}},
		CitationIDs: []string{"c2", "c1"},
	}
	var skips []entities.SkipRecord
	entries := testBuilder().Build(entities.CaseBundle{Events: []entities.Event{event}}, nil, &skips)

	require.Len(t, entries, 1)
	assert.Equal(t, "record refs: c1, c2", entries[0].CitationDisplay)
}

func TestBuild_PageMapDrivesCitationDisplay(t *testing.T) {
	event := entities.Event{
		EventID:           "ev-mapped",
		EventType:         entities.EventTypeERVisit,
		Date:              singleDate(day(2021, 6, 2)),
		Facts:             []entities.Fact{{Text: "Chief complaint: left shoulder pain"}},
		SourcePageNumbers: []int{12},
	}
	bundle := entities.CaseBundle{
		Events:  []entities.Event{event},
		PageMap: map[int]entities.PageRef{12: {Document: "ER Records", LocalPage: 3}},
	}
	var skips []entities.SkipRecord
	entries := testBuilder().Build(bundle, nil, &skips)

	require.Len(t, entries, 1)
	assert.Equal(t, "ER Records p. 3", entries[0].CitationDisplay)
}

func TestBuild_FactCapSmallPacket(t *testing.T) {
	facts := []entities.Fact{
		{Text: "Assessment: lumbar strain with radiculopathy"},
		{Text: "Plan: continue physical therapy twice weekly"},
		{Text: "Medication: naproxen 500 mg twice daily"},
		{Text: "Work status: modified duty, no lifting over ten pounds"},
		{Text: "Follow-up in four weeks for re-evaluation"},
	}
	event := entities.Event{
		EventID:           "ev-cap",
		EventType:         entities.EventTypeOfficeVisit,
		Date:              singleDate(day(2021, 7, 1)),
		Facts:             facts,
		SourcePageNumbers: []int{13},
	}
	var skips []entities.SkipRecord
	entries := testBuilder().Build(entities.CaseBundle{Events: []entities.Event{event}}, nil, &skips)

	require.Len(t, entries, 1)
	assert.Len(t, entries[0].Facts, 3)
}

func TestTruncateFact_NeverSplitsRune(t *testing.T) {
	// A long run of em dashes puts a multibyte rune across the cut point.
	long := "Assessment: pain rated 8/10 " + strings.Repeat("—", 200)
	got := truncateFact(long, maxFactLength)

	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len(got), maxFactLength+3)
}

func TestTruncateFact_ShortFactUnchanged(t *testing.T) {
	assert.Equal(t, "Plan: home exercise program", truncateFact("Plan: home exercise program", maxFactLength))
}
