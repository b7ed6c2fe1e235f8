package services

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casevault/citeline/internal/domain/entities"
	"github.com/casevault/citeline/pkg/config"
)

func testService() *ChronologyService {
	return NewChronologyService(config.DefaultSelection(), zerolog.Nop())
}

func emergencyBundle() entities.CaseBundle {
	return entities.CaseBundle{
		CaseID: "case-er",
		Events: []entities.Event{
			{
				EventID:           "er1",
				EventType:         entities.EventTypeERVisit,
				Date:              singleDate(day(2021, 1, 10)),
				Facts:             []entities.Fact{{Text: "Chief complaint: chest pain radiating to the left arm"}},
				Confidence:        90,
				SourcePageNumbers: []int{1},
			},
			{
				EventID:           "dc1",
				EventType:         entities.EventTypeHospitalDischarge,
				Date:              singleDate(day(2021, 1, 12)),
				Facts:             []entities.Fact{{Text: "Discharged home with instructions, follow-up with cardiology in one week"}},
				Confidence:        85,
				SourcePageNumbers: []int{2},
			},
		},
	}
}

func TestBuild_EmergencyAdmissionAndDischarge(t *testing.T) {
	projection := testService().Build(context.Background(), emergencyBundle())

	require.Len(t, projection.Entries, 2)
	assert.Equal(t, "er1", projection.Entries[0].EntryID)
	assert.Equal(t, "Emergency Visit", projection.Entries[0].EventTypeDisplay)
	assert.Equal(t, "2021-01-10 (time not documented)", projection.Entries[0].DateDisplay)
	assert.Equal(t, "dc1", projection.Entries[1].EntryID)
	assert.Equal(t, "Hospital Discharge", projection.Entries[1].EventTypeDisplay)

	require.Len(t, projection.Audits, 1)
	assert.Equal(t, entities.StopAllBucketsCovered, projection.Audits[0].StoppingReason)
}

func TestBuild_EveryEntryCarriesACitation(t *testing.T) {
	bundle := emergencyBundle()
	bundle.Events = append(bundle.Events, entities.Event{
		EventID:    "uncited",
		EventType:  entities.EventTypeOfficeVisit,
		Date:       singleDate(day(2021, 1, 15)),
		Facts:      []entities.Fact{{Text: "Assessment: chest pain resolved, diagnosis deferred"}},
		Confidence: 60,
	})

	projection := testService().Build(context.Background(), bundle)

	for _, entry := range projection.Entries {
		assert.True(t, entry.HasCitation(), "entry %s has no citation", entry.EntryID)
		assert.NotEqual(t, "uncited", entry.EntryID)
	}
	reasons := make([]string, 0, len(projection.Skips))
	for _, s := range projection.Skips {
		reasons = append(reasons, s.Reason)
	}
	assert.Contains(t, reasons, entities.SkipNoCitation)
}

func TestBuild_FallbackWhenNothingSurvives(t *testing.T) {
	bundle := entities.CaseBundle{
		CaseID: "case-fallback",
		Events: []entities.Event{
			{
				EventID:           "ev-undated",
				EventType:         entities.EventTypeOfficeVisit,
				Facts:             []entities.Fact{{Text: "Routine visit, no acute complaints today"}},
				Confidence:        40,
				SourcePageNumbers: []int{4},
			},
		},
	}

	projection := testService().Build(context.Background(), bundle)

	require.Len(t, projection.Entries, 1)
	entry := projection.Entries[0]
	assert.Equal(t, "ev-undated", entry.EntryID)
	assert.Equal(t, entities.DateNotEstablished, entry.DateDisplay)
	assert.Equal(t, "Unknown Patient", entry.PatientLabel)
	assert.True(t, entry.HasCitation())
	assert.Empty(t, projection.Audits)
	assert.NotEmpty(t, projection.Skips)
}

func TestBuild_DeterministicAcrossRuns(t *testing.T) {
	svc := testService()
	bundle := emergencyBundle()

	first := svc.Build(context.Background(), bundle)
	second := svc.Build(context.Background(), bundle)

	assert.Equal(t, first.Entries, second.Entries)
	assert.Equal(t, first.Audits, second.Audits)
	assert.Equal(t, first.Skips, second.Skips)
}

func TestBuild_PatientGroupsAreIndependent(t *testing.T) {
	bundle := emergencyBundle()
	bundle.PagePatientLabels = map[int]string{1: "Patient A", 2: "Patient B"}

	projection := testService().Build(context.Background(), bundle)

	require.Len(t, projection.Entries, 2)
	assert.Equal(t, "Patient A", projection.Entries[0].PatientLabel)
	assert.Equal(t, "Patient B", projection.Entries[1].PatientLabel)
	assert.Len(t, projection.Audits, 2)
}

func TestBuild_PatientLabelsInferredFromPageText(t *testing.T) {
	bundle := emergencyBundle()
	bundle.PageText = map[int]string{
		1: "Patient Name: Maria Santos\nED triage record",
		2: "Discharge summary, continued",
	}

	projection := testService().Build(context.Background(), bundle)

	require.Len(t, projection.Entries, 2)
	assert.Equal(t, "Maria Santos", projection.Entries[0].PatientLabel)
	assert.Equal(t, "Maria Santos", projection.Entries[1].PatientLabel)
	assert.Len(t, projection.Audits, 1)
}
