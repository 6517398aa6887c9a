package pipeline

import (
	"regexp"
	"strings"

	"github.com/siherrmann/grader/model"
)

// questionMarker matches lines starting a new answer, e.g. "Q.1" or "Q.12 Explain ..."
var questionMarker = regexp.MustCompile(`^Q\.\d+`)

// CombineFragments joins the fragment texts of all images, each followed by a newline,
// in image order and scan order within each image.
func CombineFragments(fragments [][]model.TextFragment) string {
	var sb strings.Builder
	for _, imageFragments := range fragments {
		for _, f := range imageFragments {
			sb.WriteString(f.Text)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// SegmentText splits the combined text into one answer per question marker.
func SegmentText(text string, policy model.PreMarkerPolicy) []string {
	return SegmentLines(strings.Split(text, "\n"), policy)
}

// SegmentLines groups lines into answers. A line matching the question marker
// starts a new answer and is part of it. Lines are normalized, empty lines are
// ignored. Without any marker the whole input is a single answer. Lines before
// the first marker are handled according to policy.
func SegmentLines(lines []string, policy model.PreMarkerPolicy) []string {
	var answers []string
	var current []string
	seenMarker := false

	for _, line := range lines {
		text := NormalizeText(line)
		if text == "" {
			continue
		}

		if questionMarker.MatchString(text) {
			if len(current) > 0 {
				switch {
				case seenMarker || policy == model.PreMarkerKeep || policy == "":
					answers = append(answers, strings.Join(current, " "))
					current = nil
				case policy == model.PreMarkerDrop:
					current = nil
				}
				// PreMarkerMerge keeps the lines in current for the first answer
			}
			seenMarker = true
		}

		current = append(current, text)
	}

	if len(current) > 0 {
		answers = append(answers, strings.Join(current, " "))
	}

	return answers
}
