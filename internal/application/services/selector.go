package services

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/casevault/citeline/internal/domain/entities"
	"github.com/casevault/citeline/pkg/config"
	"github.com/casevault/citeline/pkg/textutil"
)

const trailingUtilityWindow = 50

// Selector runs the greedy marginal-utility selection over one patient
// group's candidates. All weights and thresholds are calibrated constants
// carried by SelectionConfig; they encode tuning against known packets and
// must not be re-derived.
type Selector struct {
	classifier *Classifier
	cfg        config.SelectionConfig
}

// NewSelector creates a selector with the given calibration.
func NewSelector(classifier *Classifier, cfg config.SelectionConfig) *Selector {
	return &Selector{classifier: classifier, cfg: cfg}
}

type scoredCandidate struct {
	entry        entities.Entry
	class        EntryClass
	bucket       Bucket
	substance    int
	score        int
	sourceID     string
	date         time.Time
	hasDate      bool
	tokens       map[string]struct{}
	unflaggedLab bool
}

type selectionState struct {
	selected        []*scoredCandidate
	selectedIDs     map[string]struct{}
	selectedSources map[string]struct{}
	covered         map[Bucket]struct{}
	dates           []time.Time
}

// Select filters to substantive, citation-backed candidates, seeds coverage
// buckets, then greedily picks by marginal utility until saturation, the
// hard cap, or exhaustion. The returned audit records every stage for
// regression comparison.
func (s *Selector) Select(patientLabel string, candidates []entities.Entry) ([]entities.Entry, entities.SelectionAudit) {
	audit := entities.SelectionAudit{PatientLabel: patientLabel}
	for _, c := range candidates {
		audit.CandidateIDs = append(audit.CandidateIDs, c.EntryID)
	}

	pool := s.prepare(candidates)
	for _, c := range pool {
		audit.KeptIDs = append(audit.KeptIDs, c.entry.EntryID)
	}
	if len(pool) == 0 {
		audit.StoppingReason = entities.StopNoCandidates
		return nil, audit
	}

	presentBuckets := make(map[Bucket]struct{})
	for _, c := range pool {
		if c.bucket != BucketNone {
			presentBuckets[c.bucket] = struct{}{}
		}
	}

	state := &selectionState{
		selectedIDs:     make(map[string]struct{}),
		selectedSources: make(map[string]struct{}),
		covered:         make(map[Bucket]struct{}),
	}

	s.seedBuckets(pool, presentBuckets, state, &audit)
	s.greedyLoop(pool, presentBuckets, state, &audit)

	out := make([]entities.Entry, 0, len(state.selected))
	for _, c := range state.selected {
		out = append(out, c.entry)
		audit.FinalIDs = append(audit.FinalIDs, c.entry.EntryID)
	}
	return out, audit
}

// prepare drops non-substantive, citation-less, or renderless candidates and
// precomputes per-candidate annotations, including the token set used by
// every later similarity check.
func (s *Selector) prepare(candidates []entities.Entry) []*scoredCandidate {
	var pool []*scoredCandidate
	for _, entry := range candidates {
		if !entry.HasCitation() || len(entry.Facts) == 0 {
			continue
		}
		if !s.classifier.IsSubstantive(entry) {
			continue
		}
		class := s.classifier.Classify(entry)
		date, hasDate := textutil.ExtractISODate(entry.DateDisplay)
		pool = append(pool, &scoredCandidate{
			entry:        entry,
			class:        class,
			bucket:       s.classifier.CoverageBucket(entry),
			substance:    s.classifier.Substance(entry),
			score:        s.classifier.Score(entry),
			sourceID:     entry.SourceEventID(),
			date:         date,
			hasDate:      hasDate,
			tokens:       candidateTokens(entry, s.classifier.CoverageBucket(entry)),
			unflaggedLab: class == ClassLabs && !labsFoundFlagRE.MatchString(strings.ToLower(entry.FactBlob())),
		})
	}
	return pool
}

// candidateTokens builds the similarity token set: fact words, event-type
// words, and provider/bucket sentinel tokens.
func candidateTokens(entry entities.Entry, bucket Bucket) map[string]struct{} {
	tokens := textutil.TokenSet(entry.FactBlob() + " " + entry.EventTypeDisplay)
	if entry.ProviderDisplay != "" && entry.ProviderDisplay != "Unknown" {
		textutil.AddToken(tokens, "prov:"+strings.ToLower(entry.ProviderDisplay))
	}
	if bucket != BucketNone {
		textutil.AddToken(tokens, "bucket:"+string(bucket))
	}
	return tokens
}

// seedBuckets force-selects the best candidate of every present coverage
// bucket so one-of-a-kind findings cannot be starved by the greedy cutoff.
func (s *Selector) seedBuckets(pool []*scoredCandidate, present map[Bucket]struct{}, state *selectionState, audit *entities.SelectionAudit) {
	buckets := make([]Bucket, 0, len(present))
	for b := range present {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i] < buckets[j] })

	for _, bucket := range buckets {
		var best *scoredCandidate
		for _, c := range pool {
			if c.bucket != bucket {
				continue
			}
			if _, taken := state.selectedIDs[c.entry.EntryID]; taken {
				continue
			}
			if best == nil || seedBetter(c, best) {
				best = c
			}
		}
		if best == nil {
			continue
		}
		s.commit(best, state, audit, entities.PickTrace{
			EntryID:      best.entry.EntryID,
			Utility:      1.0,
			ForcedBucket: true,
			Bucket:       string(bucket),
		})
	}
}

func seedBetter(a, b *scoredCandidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if c := compareDates(a, b); c != 0 {
		return c < 0
	}
	return a.entry.EntryID < b.entry.EntryID
}

// compareDates orders dated candidates ascending and places undated ones
// last.
func compareDates(a, b *scoredCandidate) int {
	switch {
	case a.hasDate && !b.hasDate:
		return -1
	case !a.hasDate && b.hasDate:
		return 1
	case !a.hasDate:
		return 0
	case a.date.Before(b.date):
		return -1
	case b.date.Before(a.date):
		return 1
	}
	return 0
}

func (s *Selector) greedyLoop(pool []*scoredCandidate, present map[Bucket]struct{}, state *selectionState, audit *entities.SelectionAudit) {
	remaining := make([]*scoredCandidate, 0, len(pool))
	for _, c := range pool {
		if _, taken := state.selectedIDs[c.entry.EntryID]; !taken {
			remaining = append(remaining, c)
		}
	}

	lowStreak := 0
	prevUtility := math.NaN()
	for len(remaining) > 0 {
		if len(state.selected) >= s.cfg.HardCapPerPatient {
			audit.StoppingReason = entities.StopSafetyFuse
			return
		}

		var best *scoredCandidate
		var bestUtility float64
		var bestComponents entities.UtilityBreakdown
		next := remaining[:0]
		for _, c := range remaining {
			if c.class == ClassSurgeryProcedure {
				if _, dup := state.selectedSources[c.sourceID]; dup {
					continue
				}
			}
			utility, components := s.marginalUtility(c, present, state)
			if best == nil || utility > bestUtility ||
				(utility == bestUtility && pickBreaksTie(c, best)) {
				if best != nil {
					next = append(next, best)
				}
				best, bestUtility, bestComponents = c, utility, components
			} else {
				next = append(next, c)
			}
		}
		if best == nil {
			break
		}
		remaining = next

		trace := entities.PickTrace{
			EntryID:    best.entry.EntryID,
			Utility:    bestUtility,
			Bucket:     string(best.bucket),
			Components: bestComponents,
		}
		if !math.IsNaN(prevUtility) {
			trace.DeltaU = bestUtility - prevUtility
		}
		prevUtility = bestUtility
		s.commit(best, state, audit, trace)

		if bestUtility < s.cfg.UtilityEpsilon {
			lowStreak++
		} else {
			lowStreak = 0
		}
		if lowStreak >= s.cfg.LowUtilityStreak && allCovered(present, state.covered) {
			audit.StoppingReason = entities.StopSaturation
			return
		}
	}
	if len(present) > 0 && allCovered(present, state.covered) {
		audit.StoppingReason = entities.StopAllBucketsCovered
		return
	}
	audit.StoppingReason = entities.StopNoCandidates
}

func pickBreaksTie(a, b *scoredCandidate) bool {
	if c := compareDates(a, b); c != 0 {
		return c < 0
	}
	return a.entry.EntryID < b.entry.EntryID
}

func allCovered(present map[Bucket]struct{}, covered map[Bucket]struct{}) bool {
	for b := range present {
		if _, ok := covered[b]; !ok {
			return false
		}
	}
	return true
}

func (s *Selector) commit(c *scoredCandidate, state *selectionState, audit *entities.SelectionAudit, trace entities.PickTrace) {
	state.selected = append(state.selected, c)
	state.selectedIDs[c.entry.EntryID] = struct{}{}
	state.selectedSources[c.sourceID] = struct{}{}
	if c.bucket != BucketNone {
		state.covered[c.bucket] = struct{}{}
	}
	if c.hasDate {
		state.dates = append(state.dates, c.date)
	}
	audit.Picks = append(audit.Picks, trace)
	audit.UtilityTrace = append(audit.UtilityTrace, trace.Utility)
	if len(audit.UtilityTrace) > trailingUtilityWindow {
		audit.UtilityTrace = audit.UtilityTrace[len(audit.UtilityTrace)-trailingUtilityWindow:]
	}
}

// marginalUtility scores the benefit of adding one candidate to the current
// selection: substance, uncovered-bucket, temporal-spread, and novelty
// rewards net of redundancy and noise penalties.
func (s *Selector) marginalUtility(c *scoredCandidate, present map[Bucket]struct{}, state *selectionState) (float64, entities.UtilityBreakdown) {
	components := entities.UtilityBreakdown{
		Substance: math.Min(1, float64(c.substance)/10),
		Temporal:  s.temporalComponent(c, state),
		Novelty:   1,
		Noise:     noiseComponent(c.class),
	}
	if c.bucket != BucketNone {
		if _, covered := state.covered[c.bucket]; !covered {
			if _, ok := present[c.bucket]; ok {
				components.Bucket = 1
			}
		}
	}

	maxSim := 0.0
	maxRedundancy := 0.0
	for _, sel := range state.selected {
		sim := textutil.Jaccard(c.tokens, sel.tokens)
		if sim > maxSim {
			maxSim = sim
		}
		r := 0.45 * sim
		if sel.sourceID == c.sourceID {
			r += 0.75
		}
		if c.hasDate && sel.hasDate && c.date.Equal(sel.date) {
			r += 0.3
		}
		if c.bucket != BucketNone && c.bucket == sel.bucket {
			r += 0.25
		}
		if r > maxRedundancy {
			maxRedundancy = r
		}
	}
	components.Novelty = 1 - maxSim
	components.Redundancy = math.Min(1, maxRedundancy)

	utility := s.cfg.SubstanceWeight*components.Substance +
		s.cfg.BucketWeight*components.Bucket +
		s.cfg.TemporalWeight*components.Temporal +
		s.cfg.NoveltyWeight*components.Novelty -
		s.cfg.RedundancyWeight*components.Redundancy -
		s.cfg.NoiseWeight*components.Noise
	if c.unflaggedLab {
		utility -= s.cfg.UnflaggedLabPenalty
	}
	return utility, components
}

// temporalComponent rewards spreading picks across the record timeline,
// stepped by distance to the nearest already-selected date.
func (s *Selector) temporalComponent(c *scoredCandidate, state *selectionState) float64 {
	if len(state.dates) == 0 {
		return 1.0
	}
	if !c.hasDate {
		return 0.2
	}
	nearest := math.MaxInt32
	for _, d := range state.dates {
		days := int(math.Abs(c.date.Sub(d).Hours()) / 24)
		if days < nearest {
			nearest = days
		}
	}
	switch {
	case nearest >= 30:
		return 1.0
	case nearest >= 14:
		return 0.65
	case nearest >= 7:
		return 0.4
	case nearest >= 2:
		return 0.2
	default:
		return 0.05
	}
}

// noiseComponent grades how much of a row is administrative or biometric
// filler rather than clinical narrative.
func noiseComponent(class EntryClass) float64 {
	switch class {
	case ClassVitals, ClassQuestionnaire, ClassAdmin:
		return 1.0
	case ClassLabs:
		return 0.5
	case ClassOther:
		return 0.2
	default:
		return 0
	}
}

// DescribeWeights renders the active calibration for log lines.
func (s *Selector) DescribeWeights() string {
	return fmt.Sprintf("substance=%.2f bucket=%.2f temporal=%.2f novelty=%.2f redundancy=%.2f noise=%.2f eps=%.2f streak=%d cap=%d",
		s.cfg.SubstanceWeight, s.cfg.BucketWeight, s.cfg.TemporalWeight,
		s.cfg.NoveltyWeight, s.cfg.RedundancyWeight, s.cfg.NoiseWeight,
		s.cfg.UtilityEpsilon, s.cfg.LowUtilityStreak, s.cfg.HardCapPerPatient)
}
