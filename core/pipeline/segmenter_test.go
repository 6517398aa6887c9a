package pipeline

import (
	"testing"

	"github.com/siherrmann/grader/model"
	"github.com/stretchr/testify/assert"
)

func TestSegmentLines(t *testing.T) {
	t.Run("Splits on question markers", func(t *testing.T) {
		answers := SegmentLines([]string{"Q.1 foo", "bar", "Q.2 baz"}, model.PreMarkerKeep)

		assert.Equal(t, []string{"Q.1 foo bar", "Q.2 baz"}, answers)
	})

	t.Run("No marker yields a single answer", func(t *testing.T) {
		for _, policy := range []model.PreMarkerPolicy{model.PreMarkerKeep, model.PreMarkerMerge, model.PreMarkerDrop} {
			answers := SegmentLines([]string{"photosynthesis", "uses light"}, policy)
			assert.Equal(t, []string{"photosynthesis uses light"}, answers, "Expected single answer for policy %s", policy)
		}
	})

	t.Run("Normalizes whitespace and skips empty lines", func(t *testing.T) {
		answers := SegmentLines([]string{"  Q.1   foo\t", "", "   ", " bar  "}, model.PreMarkerKeep)

		assert.Equal(t, []string{"Q.1 foo bar"}, answers)
	})

	t.Run("Marker must be at line start", func(t *testing.T) {
		answers := SegmentLines([]string{"Q.1 see", "answer Q.2 above"}, model.PreMarkerKeep)

		assert.Equal(t, []string{"Q.1 see answer Q.2 above"}, answers)
	})

	t.Run("Marker requires digits", func(t *testing.T) {
		answers := SegmentLines([]string{"Q.1 first", "Q.a not a marker", "Q.10 tenth"}, model.PreMarkerKeep)

		assert.Equal(t, []string{"Q.1 first Q.a not a marker", "Q.10 tenth"}, answers)
	})

	t.Run("Duplicate markers are not validated", func(t *testing.T) {
		answers := SegmentLines([]string{"Q.2 b", "Q.1 a", "Q.1 again"}, model.PreMarkerKeep)

		assert.Equal(t, []string{"Q.2 b", "Q.1 a", "Q.1 again"}, answers)
	})

	t.Run("Empty input yields no answers", func(t *testing.T) {
		assert.Empty(t, SegmentLines(nil, model.PreMarkerKeep))
		assert.Empty(t, SegmentLines([]string{"", " "}, model.PreMarkerKeep))
	})
}

func TestSegmentLinesPreMarkerPolicy(t *testing.T) {
	lines := []string{"Name John", "Roll 42", "Q.1 foo", "Q.2 bar"}

	t.Run("Keep emits pre marker text as its own segment", func(t *testing.T) {
		answers := SegmentLines(lines, model.PreMarkerKeep)

		assert.Equal(t, []string{"Name John Roll 42", "Q.1 foo", "Q.2 bar"}, answers)
	})

	t.Run("Merge prepends pre marker text to the first answer", func(t *testing.T) {
		answers := SegmentLines(lines, model.PreMarkerMerge)

		assert.Equal(t, []string{"Name John Roll 42 Q.1 foo", "Q.2 bar"}, answers)
	})

	t.Run("Drop discards pre marker text", func(t *testing.T) {
		answers := SegmentLines(lines, model.PreMarkerDrop)

		assert.Equal(t, []string{"Q.1 foo", "Q.2 bar"}, answers)
	})
}

func TestCombineFragments(t *testing.T) {
	t.Run("Preserves image and fragment order", func(t *testing.T) {
		fragments := [][]model.TextFragment{
			{{Text: "Q.1"}, {Text: "foo"}},
			nil,
			{{Text: "Q.2"}, {Text: "bar"}},
		}

		text := CombineFragments(fragments)

		assert.Equal(t, "Q.1\nfoo\nQ.2\nbar\n", text)
	})

	t.Run("Word level fragments segment per marker", func(t *testing.T) {
		fragments := [][]model.TextFragment{
			{{Text: "Q.1"}, {Text: "plants"}, {Text: "make"}},
			{{Text: "food"}, {Text: "Q.2"}, {Text: "water"}},
		}

		answers := SegmentText(CombineFragments(fragments), model.PreMarkerKeep)

		assert.Equal(t, []string{"Q.1 plants make food", "Q.2 water"}, answers)
	})
}
