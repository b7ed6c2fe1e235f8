package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casevault/citeline/internal/domain/entities"
)

func TestMissingCategories_AllMissingWhenNothingSelected(t *testing.T) {
	scanner := NewAnchorScanner(NewClassifier())

	missing := scanner.MissingCategories(nil)

	require.Len(t, missing, 4)
	names := make([]string, 0, len(missing))
	for _, cat := range missing {
		names = append(names, cat.name)
	}
	assert.Equal(t, []string{"procedure", "ed_visit", "mri", "ortho_consult"}, names)
}

func TestMissingCategories_CoveredBucketIsDropped(t *testing.T) {
	scanner := NewAnchorScanner(NewClassifier())
	selected := []entities.Entry{
		{
			EntryID:          "img1",
			EventTypeDisplay: "Imaging Study",
			Facts:            []string{"MRI impression: L4-5 disc protrusion"},
			CitationDisplay:  "p. 5",
		},
	}

	missing := scanner.MissingCategories(selected)

	for _, cat := range missing {
		assert.NotEqual(t, "mri", cat.name)
	}
	require.Len(t, missing, 3)
}

func TestSynthesize_BuildsMRIAnchorFromPageText(t *testing.T) {
	scanner := NewAnchorScanner(NewClassifier())
	bundle := entities.CaseBundle{
		PageText: map[int]string{
			7: "MRI of the lumbar spine without contrast was obtained on 2021-03-18.\n" +
				"Impression: Left paracentral disc protrusion at L4-5 with mild stenosis.\n" +
				"Findings reviewed with the patient at follow-up.",
		},
	}
	missing := scanner.MissingCategories(nil)
	var mri []anchorCategory
	for _, cat := range missing {
		if cat.name == "mri" {
			mri = append(mri, cat)
		}
	}
	require.Len(t, mri, 1)

	out := scanner.Synthesize(mri, bundle, "Patient A")

	require.Len(t, out, 1)
	entry := out[0]
	assert.True(t, len(entry.EntryID) > len("anchor-"))
	assert.Equal(t, "2021-03-18 (time not documented)", entry.DateDisplay)
	assert.Equal(t, "Unknown", entry.ProviderDisplay)
	assert.Equal(t, "Imaging Study", entry.EventTypeDisplay)
	assert.Equal(t, "Patient A", entry.PatientLabel)
	assert.Equal(t, "p. 7", entry.CitationDisplay)
	assert.NotEmpty(t, entry.Facts)
	assert.Contains(t, entry.Facts[0], "disc protrusion")
}

func TestSynthesize_NoPagesMeansNoAnchors(t *testing.T) {
	scanner := NewAnchorScanner(NewClassifier())

	out := scanner.Synthesize(scanner.MissingCategories(nil), entities.CaseBundle{}, "Patient A")

	assert.Empty(t, out)
}

func TestSynthesize_SingleMarkerPageIsNotEnough(t *testing.T) {
	scanner := NewAnchorScanner(NewClassifier())
	bundle := entities.CaseBundle{
		PageText: map[int]string{
			3: "Patient reports the MRI was scheduled for next month.",
		},
	}
	missing := scanner.MissingCategories(nil)

	out := scanner.Synthesize(missing, bundle, "Patient A")

	assert.Empty(t, out, "one marker on a page does not support an anchor")
}
