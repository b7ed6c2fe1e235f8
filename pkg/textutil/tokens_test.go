package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenSet(t *testing.T) {
	set := TokenSet("MRI impression: C5-6 disc protrusion")

	assert.Contains(t, set, "mri")
	assert.Contains(t, set, "impression")
	assert.Contains(t, set, "c5")
	assert.NotContains(t, set, "MRI")
}

func TestJaccard(t *testing.T) {
	a := TokenSet("lumbar strain improving")
	b := TokenSet("lumbar strain worsening")

	assert.InDelta(t, 0.5, Jaccard(a, b), 1e-9)
	assert.Equal(t, 1.0, Jaccard(a, a))
	assert.Equal(t, 0.0, Jaccard(a, map[string]struct{}{}))
}

func TestAddToken(t *testing.T) {
	set := TokenSet("follow-up visit")
	AddToken(set, "prov:Dr. Mensah")
	AddToken(set, "")

	assert.Contains(t, set, "prov:Dr. Mensah")
	assert.NotContains(t, set, "")
}

func TestConceptExtraction(t *testing.T) {
	procs := ProcedureConcepts("Underwent ORIF followed by irrigation and debridement")
	assert.Contains(t, procs, "orif")
	assert.Contains(t, procs, "irrigation and debridement")

	injuries := InjuryConcepts("GSW to the left thigh with comminuted fracture")
	assert.Contains(t, injuries, "gunshot wound")
	assert.Contains(t, injuries, "fracture")

	assert.Empty(t, ProcedureConcepts("routine follow-up, no complaints"))
}
