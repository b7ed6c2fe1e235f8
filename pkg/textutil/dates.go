package textutil

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Date sanity bounds. Fixed bounds keep the build a pure function of its
// inputs; a wall-clock upper bound would make identical inputs diverge across
// runs near year boundaries.
const (
	minSaneYear = 1901
	maxSaneYear = 2099
)

var (
	isoDateRE     = regexp.MustCompile(`\b(20\d{2}|19[0-9]\d)-([01]\d)-([0-3]\d)(?:\b|T)`)
	usDateRE      = regexp.MustCompile(`\b([01]?\d)/([0-3]?\d)/(19[0-9]\d|20\d{2})\b`)
	isoStampRE    = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})[Tt]\d{2}:\d{2}:\d{2}[Zz]\b`)
	bareISORE     = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	emptyParenRE  = regexp.MustCompile(`\(\s*\)`)
	doubleSpaceRE = regexp.MustCompile(`\s{2,}`)
)

// DateSane accepts only plausible modern service dates.
func DateSane(d time.Time) bool {
	return !d.IsZero() && d.Year() >= minSaneYear && d.Year() <= maxSaneYear
}

// CivilDate builds a UTC-midnight date, the canonical representation used
// throughout the engine.
func CivilDate(year, month, day int) (time.Time, bool) {
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

// ISODate renders a civil date as YYYY-MM-DD.
func ISODate(d time.Time) string {
	return d.Format("2006-01-02")
}

// ParseEmbeddedDates extracts sane ISO and M/D/Y dates embedded in text,
// in order of appearance.
func ParseEmbeddedDates(text string) []time.Time {
	if text == "" {
		return nil
	}
	var out []time.Time
	for _, m := range isoDateRE.FindAllStringSubmatch(text, -1) {
		yy, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		dd, _ := strconv.Atoi(m[3])
		if d, ok := CivilDate(yy, mm, dd); ok && DateSane(d) {
			out = append(out, d)
		}
	}
	for _, m := range usDateRE.FindAllStringSubmatch(text, -1) {
		mm, _ := strconv.Atoi(m[1])
		dd, _ := strconv.Atoi(m[2])
		yy, _ := strconv.Atoi(m[3])
		if d, ok := CivilDate(yy, mm, dd); ok && DateSane(d) {
			out = append(out, d)
		}
	}
	return out
}

// EarliestEmbeddedDate returns the earliest sane date found in text.
func EarliestEmbeddedDate(text string) (time.Time, bool) {
	dates := ParseEmbeddedDates(text)
	if len(dates) == 0 {
		return time.Time{}, false
	}
	earliest := dates[0]
	for _, d := range dates[1:] {
		if d.Before(earliest) {
			earliest = d
		}
	}
	return earliest, true
}

func absDays(a, b time.Time) int {
	delta := int(a.Sub(b).Hours() / 24)
	if delta < 0 {
		return -delta
	}
	return delta
}

// FactTemporallyConsistent rejects a fact only when every embedded date is
// more than 30 days from the event's effective date.
func FactTemporallyConsistent(factText string, target time.Time) bool {
	if target.IsZero() {
		return true
	}
	dates := ParseEmbeddedDates(factText)
	if len(dates) == 0 {
		return true
	}
	for _, d := range dates {
		if absDays(d, target) <= 30 {
			return true
		}
	}
	return false
}

// StripConflictingTimestamps removes embedded timestamps and standalone ISO
// dates that conflict with the target date, keeping the rest of the fact.
func StripConflictingTimestamps(factText string, target time.Time) string {
	if target.IsZero() {
		return factText
	}
	cleaned := factText
	for _, m := range isoStampRE.FindAllStringSubmatch(factText, -1) {
		d, err := time.Parse("2006-01-02", m[1])
		if err != nil {
			continue
		}
		if absDays(d, target) > 1 {
			cleaned = strings.ReplaceAll(cleaned, m[0], "")
		}
	}
	for _, m := range bareISORE.FindAllStringSubmatch(cleaned, -1) {
		d, err := time.Parse("2006-01-02", m[1])
		if err != nil {
			continue
		}
		if absDays(d, target) > 30 {
			cleaned = strings.ReplaceAll(cleaned, m[1], "")
		}
	}
	cleaned = emptyParenRE.ReplaceAllString(cleaned, "")
	cleaned = doubleSpaceRE.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// ExtractISODate pulls the first ISO date out of a display string, if any.
func ExtractISODate(display string) (time.Time, bool) {
	m := bareISORE.FindStringSubmatch(display)
	if m == nil {
		return time.Time{}, false
	}
	d, err := time.Parse("2006-01-02", m[1])
	if err != nil {
		return time.Time{}, false
	}
	return d.UTC(), true
}
