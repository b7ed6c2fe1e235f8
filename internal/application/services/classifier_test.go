package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/casevault/citeline/internal/domain/entities"
)

func TestClassify_MilestoneTypes(t *testing.T) {
	c := NewClassifier()

	cases := []struct {
		display string
		want    EntryClass
	}{
		{"Hospital Admission", ClassInpatient},
		{"Hospital Discharge", ClassDischargeTransfer},
		{"Emergency Visit", ClassEDVisit},
		{"Procedure/Surgery", ClassSurgeryProcedure},
		{"Imaging Study", ClassImagingImpression},
		{"Therapy Visit", ClassTherapy},
		{"Lab Result", ClassLabs},
	}
	for _, tc := range cases {
		entry := entities.Entry{EventTypeDisplay: tc.display, Facts: []string{"note"}}
		assert.Equal(t, tc.want, c.Classify(entry), tc.display)
	}
}

func TestClassify_EDFactPhraseNeedsWordBoundary(t *testing.T) {
	c := NewClassifier()

	ed := entities.Entry{
		EventTypeDisplay: "Follow-Up Visit",
		Facts:            []string{"ED visit for acute low back pain after the fall"},
	}
	assert.Equal(t, ClassEDVisit, c.Classify(ed))

	notED := entities.Entry{
		EventTypeDisplay: "Follow-Up Visit",
		Facts:            []string{"Assessment: transferred to bed visit scheduled with nursing"},
	}
	assert.NotEqual(t, ClassEDVisit, c.Classify(notED))
}

func TestClassify_VitalsOnlyFacts(t *testing.T) {
	c := NewClassifier()
	entry := entities.Entry{
		EventTypeDisplay: "Follow-Up Visit",
		Facts:            []string{"Body Height: 150 cm; Body Weight: 70 kg"},
	}
	assert.Equal(t, ClassVitals, c.Classify(entry))
}

func TestScore_DispositionBonusClampsAt100(t *testing.T) {
	c := NewClassifier()
	entry := entities.Entry{
		EventTypeDisplay: "Emergency Visit",
		Facts:            []string{"Discharged home with instructions"},
		CitationDisplay:  "p. 4",
	}
	assert.Equal(t, 100, c.Score(entry))
}

func TestScore_LabFlagHandling(t *testing.T) {
	c := NewClassifier()

	unflagged := entities.Entry{
		EventTypeDisplay: "Lab Result",
		Facts:            []string{"labs found: wbc 7.2, hgb 13.9"},
		CitationDisplay:  "p. 2",
	}
	flagged := entities.Entry{
		EventTypeDisplay: "Lab Result",
		Facts:            []string{"labs found: wbc 18.4 elevated"},
		CitationDisplay:  "p. 2",
	}
	assert.Equal(t, 20, c.Score(unflagged))
	assert.Equal(t, 50, c.Score(flagged))
}

func TestScore_MissingCitationPenalty(t *testing.T) {
	c := NewClassifier()
	entry := entities.Entry{
		EventTypeDisplay: "Follow-Up Visit",
		Facts:            []string{"Lumbar strain, improving with therapy"},
	}
	withCitation := entry
	withCitation.CitationDisplay = "p. 7"
	assert.Equal(t, c.Score(withCitation)-15, c.Score(entry))
}

func TestSubstance_CountsIndependentSignals(t *testing.T) {
	c := NewClassifier()
	entry := entities.Entry{
		EventTypeDisplay: "Imaging Study",
		Facts:            []string{"Impression: C5-6 disc protrusion"},
		CitationDisplay:  "p. 9",
	}
	// diagnosis keyword, impression, and radicular phrasing each count.
	assert.Equal(t, 6, c.Substance(entry))
}

func TestSubstance_RequiresCitation(t *testing.T) {
	c := NewClassifier()
	entry := entities.Entry{
		EventTypeDisplay: "Imaging Study",
		Facts:            []string{"Impression: C5-6 disc protrusion"},
	}
	assert.Equal(t, 0, c.Substance(entry))
}

func TestIsSubstantive_MilestoneClassesQualifyOutright(t *testing.T) {
	c := NewClassifier()
	entry := entities.Entry{
		EventTypeDisplay: "Emergency Visit",
		Facts:            []string{"seen and evaluated"},
		CitationDisplay:  "p. 1",
	}
	assert.True(t, c.IsSubstantive(entry))
}

func TestIsSubstantive_TherapyNeedsMeasurements(t *testing.T) {
	c := NewClassifier()
	measured := entities.Entry{
		EventTypeDisplay: "Therapy Visit",
		Facts:            []string{"Pain 6/10, shoulder flexion ROM 110, strength 4/5"},
		CitationDisplay:  "p. 3",
	}
	assert.True(t, c.IsSubstantive(measured))
}

func TestCoverageBucket_Mapping(t *testing.T) {
	c := NewClassifier()

	cases := []struct {
		name  string
		entry entities.Entry
		want  Bucket
	}{
		{
			"mri imaging",
			entities.Entry{EventTypeDisplay: "Imaging Study", Facts: []string{"MRI impression: disc protrusion"}},
			BucketMRI,
		},
		{
			"plain film imaging",
			entities.Entry{EventTypeDisplay: "Imaging Study", Facts: []string{"X-ray shows healed hardware"}},
			BucketXRRadiology,
		},
		{
			"emergency",
			entities.Entry{EventTypeDisplay: "Emergency Visit", Facts: []string{"chest wall contusion"}},
			BucketED,
		},
		{
			"procedure",
			entities.Entry{EventTypeDisplay: "Procedure/Surgery", Facts: []string{"injection performed under fluoroscopy"}},
			BucketProcedure,
		},
		{
			"therapy follow-up",
			entities.Entry{EventTypeDisplay: "Therapy Visit", Facts: []string{"tolerated exercises well"}},
			BucketPTFollowup,
		},
		{
			"no bucket",
			entities.Entry{EventTypeDisplay: "Follow-Up Visit", Facts: []string{"medication refill"}},
			BucketNone,
		},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, c.CoverageBucket(tc.entry), tc.name)
	}
}
