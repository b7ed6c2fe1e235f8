package evaluation

import (
	"context"
	"time"

	"github.com/casevault/citeline/internal/domain/entities"
)

// ProjectionBuilder is the pipeline surface the runner evaluates.
type ProjectionBuilder interface {
	Build(ctx context.Context, bundle entities.CaseBundle) entities.Projection
}

// Runner runs evaluation across a set of golden cases.
type Runner struct {
	builder    ProjectionBuilder
	guardrails *Guardrails
}

// NewRunner creates a runner over one pipeline instance.
func NewRunner(builder ProjectionBuilder, guardrails *Guardrails) *Runner {
	return &Runner{builder: builder, guardrails: guardrails}
}

// Run evaluates every golden case: recall against expected ids, the citation
// and cap invariants, and a double-build determinism check.
func (r *Runner) Run(ctx context.Context, cases []GoldenCase) (*EvalSummary, error) {
	summary := &EvalSummary{
		TotalCases:       len(cases),
		DeterministicAll: true,
		ByDifficulty:     make(map[Difficulty]*DifficultySummary),
	}

	for _, gc := range cases {
		start := time.Now()
		first := r.builder.Build(ctx, gc.Bundle)
		second := r.builder.Build(ctx, gc.Bundle)
		latency := time.Since(start)

		result := CaseResult{
			CaseID:         gc.ID,
			EntryCount:     len(first.Entries),
			ExpectedRecall: ExpectedRecall(gc.ExpectedEntryIDs, first.Entries),
			CitationRate:   CitationRate(first.Entries),
			Deterministic:  ProjectionsEqual(&first, &second),
			WithinCap:      r.guardrails.WithinCap(first.Entries),
			WithinMax:      gc.MaxEntries <= 0 || len(first.Entries) <= gc.MaxEntries,
			SubstanceOK:    r.guardrails.SubstanceOK(first.Entries),
			BucketsCovered: r.guardrails.CoversBuckets(gc.ExpectedBuckets, first.Entries),
			StopReasonsOK:  r.guardrails.StopReasonsOK(first.Audits),
			Latency:        latency,
		}
		r.updateSummary(summary, gc.Difficulty, result)
	}

	r.finalizeSummary(summary)
	return summary, nil
}

func (r *Runner) updateSummary(s *EvalSummary, difficulty Difficulty, res CaseResult) {
	s.AvgRecall += res.ExpectedRecall
	s.AvgCitationRate += res.CitationRate
	if !res.Deterministic {
		s.DeterministicAll = false
	}
	if res.WithinCap && res.WithinMax {
		s.CasesWithinCap++
	}
	if res.SubstanceOK {
		s.CasesSubstanceOK++
	}
	if res.BucketsCovered {
		s.CasesCoveringBuckets++
	}

	if _, ok := s.ByDifficulty[difficulty]; !ok {
		s.ByDifficulty[difficulty] = &DifficultySummary{}
	}
	ds := s.ByDifficulty[difficulty]
	ds.Count++
	ds.AvgRecall += res.ExpectedRecall
}

func (r *Runner) finalizeSummary(s *EvalSummary) {
	if s.TotalCases > 0 {
		n := float64(s.TotalCases)
		s.AvgRecall /= n
		s.AvgCitationRate /= n
	}

	for _, ds := range s.ByDifficulty {
		if ds.Count > 0 {
			ds.AvgRecall /= float64(ds.Count)
		}
	}
}
