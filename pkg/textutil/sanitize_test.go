package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeForReport(t *testing.T) {
	out := SanitizeForReport("Client Provided Medicals Assessment: lumbar strain")
	assert.Equal(t, "Assessment: lumbar strain", out)

	out = SanitizeForReport("Patient ID: 44f1b2c3-0a9d-4e21-8b3c-1d2e3f4a5b6c seen for follow-up")
	assert.Equal(t, "seen for follow-up", out)

	assert.Equal(t, "", SanitizeForReport(""))
}

func TestIsReportableFact(t *testing.T) {
	assert.True(t, IsReportableFact("Assessment: cervical strain with radiculopathy"))
	assert.False(t, IsReportableFact("short"))
	assert.False(t, IsReportableFact("Please see their full H&P;/clinic notes for details."))
	assert.False(t, IsReportableFact("Medical Record Summary volume two"))
}

func TestContainsHashLikeToken(t *testing.T) {
	assert.True(t, ContainsHashLikeToken("clinic-3fa8b2c91d"))
	assert.False(t, ContainsHashLikeToken("Dr. Mensah"))
}
