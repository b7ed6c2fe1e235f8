package evaluation

import (
	"time"

	"github.com/casevault/citeline/internal/domain/entities"
)

// Difficulty grades a golden case by how adversarial its packet is.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid checks if the difficulty is one of the defined constants.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// GoldenCase is a labeled regression packet with expected outcomes.
type GoldenCase struct {
	ID               string              `json:"id"`
	Description      string              `json:"description"`
	Bundle           entities.CaseBundle `json:"bundle"`
	ExpectedEntryIDs []string            `json:"expected_entry_ids"`
	ExpectedBuckets  []string            `json:"expected_buckets"`
	MaxEntries       int                 `json:"max_entries"`
	Difficulty       Difficulty          `json:"difficulty"`
}

// CaseResult holds the evaluation outcome for one golden case.
type CaseResult struct {
	CaseID         string
	EntryCount     int
	ExpectedRecall float64
	CitationRate   float64
	Deterministic  bool
	WithinCap      bool
	WithinMax      bool
	SubstanceOK    bool
	BucketsCovered bool
	StopReasonsOK  bool
	Latency        time.Duration
}

// EvalSummary holds aggregate metrics across all golden cases.
type EvalSummary struct {
	TotalCases           int
	AvgRecall            float64
	AvgCitationRate      float64
	DeterministicAll     bool
	CasesWithinCap       int
	CasesSubstanceOK     int
	CasesCoveringBuckets int
	ByDifficulty         map[Difficulty]*DifficultySummary
}

// DifficultySummary holds metrics grouped by difficulty.
type DifficultySummary struct {
	Count     int
	AvgRecall float64
}
