package services

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/casevault/citeline/internal/domain/entities"
)

// EntryClass is the coarse semantic class of a timeline entry.
type EntryClass string

const (
	ClassInpatient         EntryClass = "inpatient"
	ClassDischargeTransfer EntryClass = "discharge_transfer"
	ClassEDVisit           EntryClass = "ed_visit"
	ClassSurgeryProcedure  EntryClass = "surgery_procedure"
	ClassImagingImpression EntryClass = "imaging_impression"
	ClassTherapy           EntryClass = "therapy"
	ClassClinic            EntryClass = "clinic"
	ClassLabs              EntryClass = "labs"
	ClassQuestionnaire     EntryClass = "questionnaire"
	ClassVitals            EntryClass = "vitals"
	ClassAdmin             EntryClass = "admin"
	ClassOther             EntryClass = "other"
)

// Bucket is a narrow coverage category used by the selector's coverage floor.
type Bucket string

const (
	BucketNone        Bucket = ""
	BucketOrtho       Bucket = "ortho"
	BucketED          Bucket = "ed"
	BucketMRI         Bucket = "mri"
	BucketXRRadiology Bucket = "xr_radiology"
	BucketPTEval      Bucket = "pt_eval"
	BucketPTFollowup  Bucket = "pt_followup"
	BucketProcedure   Bucket = "procedure"
	BucketPCPReferral Bucket = "pcp_referral"
	BucketBilling     Bucket = "billing"
)

const (
	minSubstanceThreshold  = 1
	highSubstanceThreshold = 2
)

var (
	edFactRE           = regexp.MustCompile(`\b(emergency room|ed visit)\b`)
	questionnaireRE    = regexp.MustCompile(`\b(phq-?9|gad-?7|questionnaire|survey score|promis|pain interference)\b`)
	vitalsFactRE       = regexp.MustCompile(`\b(body height|body weight|blood pressure|respiratory rate|heart rate|temperature|bmi|weight percentile)\b`)
	adminFactRE        = regexp.MustCompile(`\b(intake|demographic|insurance|education|income|tobacco status)\b`)
	orthoRE            = regexp.MustCompile(`\b(ortho|orthopedic|orthopaedic)\b`)
	mriRE              = regexp.MustCompile(`\bmri\b`)
	ptEvalRE           = regexp.MustCompile(`\b(eval|evaluation|initial eval|pain|rom|range of motion|strength)\b`)
	pcpReferralRE      = regexp.MustCompile(`\b(work status|work restriction|return to work|pcp|primary care|referral)\b`)
	billingRE          = regexp.MustCompile(`\b(total billed|balance|ledger|billing)\b`)
	severeScoreRE      = regexp.MustCompile(`\b(phq-?9|gad-?7|pain(?:\s+severity|\s+score)?)\s*[:=]?\s*(\d{1,2})\b`)
	dispositionRE      = regexp.MustCompile(`\b(disposition|discharged|skilled nursing|snf|hospice|return to work|work restriction|follow-?up)\b`)
	medChangeRE        = regexp.MustCompile(`\b(new|newly|started|initiated|stopped|discontinued|increased|decreased|switched|changed to)\b`)
	lateralInjuryRE    = regexp.MustCompile(`\b(left|right|bilateral)\b.*\b(fracture|tear|injury|dislocation|infection|pain|wound)\b|\b(fracture|tear|injury|dislocation|infection|pain|wound)\b.*\b(left|right|bilateral)\b`)
	labFlagRE          = regexp.MustCompile(`\b(critical|panic|high-risk|abnormal|elevated)\b`)
	clinicSignalRE     = regexp.MustCompile(`\b(assessment|impression|diagnosis|procedure|surgery|infection|fracture|tear|medication|started|stopped|increased|decreased|switched|plan|disposition|hospice|snf|admission|discharge)\b`)
	biometricNoiseRE   = regexp.MustCompile(`\b(tobacco status|never smoked|weight percentile|body weight|body height|blood pressure)\b`)
	fillerPhraseRE     = regexp.MustCompile(`\bclinical follow-?up documenting continuity, symptoms, and treatment response\b`)
	diagnosisSignalRE  = regexp.MustCompile(`\b(diagnosis|assessment|impression|problem|radiculopathy|fracture|tear|infection|stenosis|sprain|strain)\b`)
	impressionRE       = regexp.MustCompile(`\bimpression\b`)
	dosedMedicationRE  = regexp.MustCompile(`\b(hydrocodone|oxycodone|morphine|tramadol|fentanyl|acetaminophen|ibuprofen|naproxen|lisinopril|metformin)\b.*\b\d+(?:\.\d+)?\s*(mg|mcg|ml)\b`)
	numericMeasureRE   = regexp.MustCompile(`\b(rom|range of motion|strength|pain\s*(?:score|severity)?|blood pressure|heart rate|respiratory rate|temperature)\b.*\b\d`)
	procedureSignalRE  = regexp.MustCompile(`\b(depo-?medrol|lidocaine|fluoroscopy|interlaminar|transforaminal|epidural|esi|procedure|surgery)\b`)
	workStatusRE       = regexp.MustCompile(`\b(work restriction|return to work|work status)\b`)
	chiefComplaintRE   = regexp.MustCompile(`\b(emergency|chief complaint|clinical impression|hpi|history of present illness)\b`)
	radicularRE        = regexp.MustCompile(`\b(disc protrusion|radicular|foramen|thecal sac|ortho|orthopedic)\b`)
	painScoreRE        = regexp.MustCompile(`\bpain\b[^0-9]{0,10}\d{1,2}\s*(?:/10)?\b`)
	followUpPlanRE     = regexp.MustCompile(`\b(follow-?up|evaluation|re-?evaluation|consult|discharge summary|plan of care|functional limitation|adl)\b`)
	genericFillerRE    = regexp.MustCompile(`\b(limited detail|encounter recorded|continuity of care|documentation noted)\b`)
	therapySubstanceRE = regexp.MustCompile(`\b(pain|rom|range of motion|strength|assessment|plan|evaluation|re-?evaluation|discharge)\b`)
	ptWorkStatusRE     = regexp.MustCompile(`\b(work status|work restriction|return to work)\b`)
	romValueRE         = regexp.MustCompile(`\b(rom|range of motion)\b[^0-9]{0,40}\d`)
	strengthValueRE    = regexp.MustCompile(`\bstrength\b[^0-9]{0,20}\d(?:\.\d)?\s*/\s*5\b`)
)

// Classifier maps entries to semantic classes, scores, and coverage buckets.
// All methods are pure functions of the entry's display fields and facts.
type Classifier struct{}

// NewClassifier creates a new classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify assigns the entry its coarse semantic class via first-match rules
// over the event-type display and fact text.
func (c *Classifier) Classify(entry entities.Entry) EntryClass {
	et := strings.ToLower(entry.EventTypeDisplay)
	facts := entry.FactBlob()
	switch {
	case strings.Contains(et, "admission"):
		return ClassInpatient
	case strings.Contains(et, "discharge"):
		return ClassDischargeTransfer
	case strings.Contains(et, "emergency"), strings.Contains(et, "er visit"), edFactRE.MatchString(facts):
		return ClassEDVisit
	case strings.Contains(et, "procedure"), strings.Contains(et, "surgery"):
		return ClassSurgeryProcedure
	case strings.Contains(et, "imaging"):
		return ClassImagingImpression
	case strings.Contains(et, "therapy"):
		return ClassTherapy
	case strings.Contains(et, "lab"):
		return ClassLabs
	case questionnaireRE.MatchString(facts):
		return ClassQuestionnaire
	case vitalsFactRE.MatchString(facts):
		return ClassVitals
	case adminFactRE.MatchString(facts):
		return ClassAdmin
	case strings.Contains(et, "follow-up visit"), strings.Contains(et, "inpatient progress"):
		return ClassClinic
	default:
		return ClassOther
	}
}

var classBaseScore = map[EntryClass]int{
	ClassInpatient:         90,
	ClassDischargeTransfer: 90,
	ClassEDVisit:           85,
	ClassSurgeryProcedure:  85,
	ClassImagingImpression: 75,
	ClassTherapy:           55,
	ClassClinic:            35,
	ClassLabs:              30,
	ClassQuestionnaire:     10,
	ClassVitals:            10,
	ClassAdmin:             0,
	ClassOther:             20,
}

// Score rates an entry 0-100 from its class base plus content bonuses and
// noise penalties.
func (c *Classifier) Score(entry entities.Entry) int {
	class := c.Classify(entry)
	base := classBaseScore[class]
	facts := entry.FactBlob()

	if dispositionRE.MatchString(facts) {
		base += 15
	}
	if medChangeRE.MatchString(facts) {
		base += 15
	}
	if c.hasSevereScore(facts) {
		base += 10
	}
	if lateralInjuryRE.MatchString(facts) {
		base += 10
	}
	if class == ClassLabs {
		if labFlagRE.MatchString(facts) {
			base += 20
		} else {
			base -= 10
		}
	}
	if class == ClassClinic && !clinicSignalRE.MatchString(facts) {
		base -= 20
	}
	if biometricNoiseRE.MatchString(facts) {
		base -= 20
	}
	if fillerPhraseRE.MatchString(facts) {
		base -= 30
	}
	if !entry.HasCitation() {
		base -= 15
	}

	if base < 0 {
		return 0
	}
	if base > 100 {
		return 100
	}
	return base
}

func (c *Classifier) hasSevereScore(facts string) bool {
	for _, m := range severeScoreRE.FindAllStringSubmatch(facts, -1) {
		if v, err := strconv.Atoi(m[2]); err == nil && v >= 15 {
			return true
		}
	}
	return false
}

// Substance counts independent clinical-signal categories present in the
// entry, minus a penalty for generic filler phrasing, floored at zero.
func (c *Classifier) Substance(entry entities.Entry) int {
	if !entry.HasCitation() {
		return 0
	}
	facts := entry.FactBlob()
	score := 0
	for _, re := range []*regexp.Regexp{
		diagnosisSignalRE,
		impressionRE,
		dosedMedicationRE,
		numericMeasureRE,
		procedureSignalRE,
		workStatusRE,
		chiefComplaintRE,
		radicularRE,
		painScoreRE,
	} {
		if re.MatchString(facts) {
			score += 2
		}
	}
	if followUpPlanRE.MatchString(facts) {
		score++
	}
	if genericFillerRE.MatchString(facts) {
		score -= 3
	}
	if score < 0 {
		return 0
	}
	return score
}

var alwaysSubstantiveClasses = map[EntryClass]struct{}{
	ClassEDVisit:           {},
	ClassImagingImpression: {},
	ClassSurgeryProcedure:  {},
	ClassInpatient:         {},
	ClassDischargeTransfer: {},
}

// IsSubstantive reports whether an entry carries enough clinical signal to be
// a selection candidate. Milestone classes qualify outright; therapy rows need
// at least two concrete measurements or status mentions.
func (c *Classifier) IsSubstantive(entry entities.Entry) bool {
	if !entry.HasCitation() {
		return false
	}
	class := c.Classify(entry)
	if _, ok := alwaysSubstantiveClasses[class]; ok {
		return true
	}
	if class == ClassTherapy {
		if therapySubstanceRE.MatchString(entry.FactBlob()) {
			return true
		}
		if c.therapyMeasurementCount(entry) >= 2 {
			return true
		}
	}
	return c.Substance(entry) >= minSubstanceThreshold
}

func (c *Classifier) therapyMeasurementCount(entry entities.Entry) int {
	facts := entry.FactBlob()
	n := 0
	if painScoreRE.MatchString(facts) {
		n++
	}
	if romValueRE.MatchString(facts) {
		n++
	}
	if strengthValueRE.MatchString(facts) {
		n++
	}
	if ptWorkStatusRE.MatchString(facts) {
		n++
	}
	return n
}

// IsHighSubstance reports an entry with substance above the high threshold.
func (c *Classifier) IsHighSubstance(entry entities.Entry) bool {
	return c.IsSubstantive(entry) && c.Substance(entry) >= highSubstanceThreshold
}

// CoverageBucket maps an entry to its narrow coverage category, or BucketNone.
// Used exclusively by the selector's coverage-floor rule.
func (c *Classifier) CoverageBucket(entry entities.Entry) Bucket {
	class := c.Classify(entry)
	blob := entry.FactBlob()
	et := strings.ToLower(entry.EventTypeDisplay)
	switch {
	case orthoRE.MatchString(blob):
		return BucketOrtho
	case class == ClassEDVisit:
		return BucketED
	case class == ClassImagingImpression:
		if mriRE.MatchString(blob) {
			return BucketMRI
		}
		return BucketXRRadiology
	case class == ClassTherapy:
		if ptEvalRE.MatchString(blob) {
			return BucketPTEval
		}
		return BucketPTFollowup
	case class == ClassSurgeryProcedure:
		return BucketProcedure
	case strings.Contains(et, "follow-up visit") && pcpReferralRE.MatchString(blob):
		return BucketPCPReferral
	case billingRE.MatchString(blob):
		return BucketBilling
	default:
		return BucketNone
	}
}
