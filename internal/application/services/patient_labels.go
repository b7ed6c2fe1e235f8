package services

import (
	"regexp"
	"sort"
	"strings"
)

var (
	syntheaNameRE = regexp.MustCompile("\\b([A-Z][a-z]+[0-9]+)\\s+([A-Z][A-Za-z'`-]+[0-9]+)\\b")
	patientNameRE = regexp.MustCompile(`(?im)\b(?:patient name|name)\s*:\s*([A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+){1,2})\b`)
)

// InferPagePatientLabels derives a page-to-patient label map from raw page
// text. Pages with a detectable name (digit-suffixed synthetic names or a
// "Patient Name:" header) are labeled directly; the label then propagates
// forward across subsequent pages, and pages before the first detection are
// backfilled from it. Direct detections stay authoritative.
func InferPagePatientLabels(pageText map[int]string) map[int]string {
	if len(pageText) == 0 {
		return nil
	}
	labels := make(map[int]string)
	for page, text := range pageText {
		if text == "" {
			continue
		}
		if m := syntheaNameRE.FindStringSubmatch(text); m != nil {
			labels[page] = m[1] + " " + m[2]
			continue
		}
		if m := patientNameRE.FindStringSubmatch(text); m != nil {
			labels[page] = strings.TrimSpace(m[1])
		}
	}
	if len(labels) == 0 {
		return labels
	}

	pages := make([]int, 0, len(pageText))
	for page := range pageText {
		pages = append(pages, page)
	}
	sort.Ints(pages)

	filled := make(map[int]string, len(pageText))
	last := ""
	for _, page := range pages {
		if label, ok := labels[page]; ok {
			last = label
		}
		if last != "" {
			filled[page] = last
		}
	}

	firstPage := -1
	for page := range labels {
		if firstPage < 0 || page < firstPage {
			firstPage = page
		}
	}
	first := labels[firstPage]
	for _, page := range pages {
		if page < firstPage {
			filled[page] = first
		}
	}

	for page, label := range labels {
		filled[page] = label
	}
	return filled
}
