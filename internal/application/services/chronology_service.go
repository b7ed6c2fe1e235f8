package services

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/casevault/citeline/internal/domain/entities"
	"github.com/casevault/citeline/pkg/config"
)

// ChronologyService orchestrates the full projection pipeline: candidate
// building, scale adaptation, per-patient selection, compaction, milestone
// anchor synthesis, and the zero-survivor fallback.
type ChronologyService struct {
	cfg        config.SelectionConfig
	classifier *Classifier
	builder    *CandidateBuilder
	scaler     *ScaleAdapter
	selector   *Selector
	compactor  *Compactor
	anchors    *AnchorScanner
	fallback   *FallbackSynthesizer
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewChronologyService wires the pipeline components with one calibration.
func NewChronologyService(cfg config.SelectionConfig, logger zerolog.Logger) *ChronologyService {
	classifier := NewClassifier()
	selector := NewSelector(classifier, cfg)
	svcLogger := logger.With().Str("service", "chronology").Logger()
	svcLogger.Debug().Str("weights", selector.DescribeWeights()).Msg("selector calibrated")
	return &ChronologyService{
		cfg:        cfg,
		classifier: classifier,
		builder:    NewCandidateBuilder(classifier, cfg.LargePacketPages),
		scaler:     NewScaleAdapter(cfg.CollapseThreshold),
		selector:   selector,
		compactor:  NewCompactor(classifier),
		anchors:    NewAnchorScanner(classifier),
		fallback:   NewFallbackSynthesizer(),
		logger:     svcLogger,
		tracer:     otel.Tracer("chronology-service"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Build runs the whole pipeline over one case bundle. The result is a pure
// function of the bundle and the calibration; GeneratedAt is attached as
// metadata only.
func (s *ChronologyService) Build(ctx context.Context, bundle entities.CaseBundle) entities.Projection {
	ctx, span := s.tracer.Start(ctx, "chronology.build",
		trace.WithAttributes(
			attribute.String("case.id", bundle.CaseID),
			attribute.Int("case.events", len(bundle.Events)),
			attribute.Int("case.pages", len(bundle.PageText)),
		))
	defer span.End()

	if len(bundle.PagePatientLabels) == 0 {
		bundle.PagePatientLabels = InferPagePatientLabels(bundle.PageText)
	}

	var skips []entities.SkipRecord
	extracted := s.builder.Build(bundle, bundle.PagePatientLabels, &skips)

	largePacket := len(bundle.PageText) > s.cfg.LargePacketPages
	candidates := s.scaler.Adapt(extracted, largePacket)

	s.logger.Debug().
		Str("case_id", bundle.CaseID).
		Int("events", len(bundle.Events)).
		Int("extracted", len(extracted)).
		Int("candidates", len(candidates)).
		Bool("large_packet", largePacket).
		Msg("candidate pool built")

	extractedByPatient := groupByPatient(extracted)
	var final []entities.Entry
	var audits []entities.SelectionAudit
	for _, patient := range patientOrder(candidates) {
		group := filterByPatient(candidates, patient)
		selected, audit := s.selector.Select(patient, group)
		for _, e := range extractedByPatient[patient] {
			audit.ExtractedIDs = append(audit.ExtractedIDs, e.EntryID)
		}

		compacted := s.compactor.CompactPatient(selected)
		compacted = append(compacted, s.synthesizeAnchors(compacted, bundle, patient)...)

		s.logger.Debug().
			Str("patient", patient).
			Str("stopping_reason", audit.StoppingReason).
			Int("selected", len(selected)).
			Int("compacted", len(compacted)).
			Msg("patient group selected")

		final = append(final, compacted...)
		audits = append(audits, audit)
	}

	if len(final) == 0 && len(bundle.Events) > 0 {
		patient := dominantPatientLabel(bundle)
		final = s.fallback.Synthesize(bundle, patient)
		s.logger.Warn().
			Str("case_id", bundle.CaseID).
			Int("fallback_entries", len(final)).
			Msg("pipeline yielded nothing, fallback engaged")
	}

	final = s.compactor.OrderFinal(final)
	span.SetAttributes(attribute.Int("projection.entries", len(final)))
	return entities.Projection{
		GeneratedAt: s.now(),
		Entries:     final,
		Audits:      audits,
		Skips:       skips,
	}
}

// synthesizeAnchors injects milestone entries for categories with no
// surviving entry, scanning only the pages attributed to this patient.
func (s *ChronologyService) synthesizeAnchors(entries []entities.Entry, bundle entities.CaseBundle, patient string) []entities.Entry {
	missing := s.anchors.MissingCategories(entries)
	if len(missing) == 0 {
		return nil
	}
	scoped := bundle
	if len(bundle.PagePatientLabels) > 0 {
		pages := make(map[int]string)
		for page, text := range bundle.PageText {
			if bundle.PagePatientLabels[page] == patient {
				pages[page] = text
			}
		}
		scoped.PageText = pages
	}
	return s.anchors.Synthesize(missing, scoped, patient)
}

func groupByPatient(entries []entities.Entry) map[string][]entities.Entry {
	out := make(map[string][]entities.Entry)
	for _, e := range entries {
		out[e.PatientLabel] = append(out[e.PatientLabel], e)
	}
	return out
}

func filterByPatient(entries []entities.Entry, patient string) []entities.Entry {
	var out []entities.Entry
	for _, e := range entries {
		if e.PatientLabel == patient {
			out = append(out, e)
		}
	}
	return out
}

func patientOrder(entries []entities.Entry) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range entries {
		if _, ok := seen[e.PatientLabel]; ok {
			continue
		}
		seen[e.PatientLabel] = struct{}{}
		out = append(out, e.PatientLabel)
	}
	sort.Strings(out)
	return out
}

// dominantPatientLabel resolves the fallback patient label from the page
// label map, defaulting to the unknown label.
func dominantPatientLabel(bundle entities.CaseBundle) string {
	counts := make(map[string]int)
	for _, label := range bundle.PagePatientLabels {
		if label != "" {
			counts[label]++
		}
	}
	best := "Unknown Patient"
	bestCount := 0
	for label, count := range counts {
		if count > bestCount || (count == bestCount && label < best) {
			best = label
			bestCount = count
		}
	}
	return best
}
