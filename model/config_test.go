package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultGradingConfig(t *testing.T) {
	t.Run("Returns correct default values", func(t *testing.T) {
		config := DefaultGradingConfig()

		assert.Equal(t, 5.0, config.MaxMarks, "Default MaxMarks should be 5")
		assert.Equal(t, "Answers", config.ReferenceColumn, "Default ReferenceColumn should be Answers")
		assert.Equal(t, uint8(128), config.Threshold, "Default Threshold should be 128")
		assert.Equal(t, []string{"eng"}, config.OCRLanguages)
		assert.Equal(t, OCRLevelWord, config.OCRLevel, "Default OCRLevel should be word")
		assert.Equal(t, PreMarkerKeep, config.PreMarkerPolicy, "Pre marker text should be kept as its own segment by default")
		assert.Equal(t, FailAbort, config.FailurePolicy, "Batch should abort on failure by default")
		assert.Equal(t, 128, config.MaxInputTokens)
		assert.Empty(t, config.CacheDir, "Disk cache should be disabled by default")
		assert.Equal(t, "onnx/model.onnx", config.TaggerOnnxFile, "Default tagger file should be the hub ONNX export")
		assert.Nil(t, config.LogOutput, "Logs should go to stdout by default")
	})

	t.Run("Default configuration is valid", func(t *testing.T) {
		assert.NoError(t, DefaultGradingConfig().Validate())
	})

	t.Run("Can be modified after creation", func(t *testing.T) {
		config := DefaultGradingConfig()

		config.MaxMarks = 10
		config.PreMarkerPolicy = PreMarkerDrop
		config.FailurePolicy = FailSkip

		assert.Equal(t, 10.0, config.MaxMarks)
		assert.NoError(t, config.Validate())
	})
}

func TestGradingConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *GradingConfig)
	}{
		{"Negative max marks", func(c *GradingConfig) { c.MaxMarks = -1 }},
		{"Empty reference column", func(c *GradingConfig) { c.ReferenceColumn = "" }},
		{"Unknown ocr level", func(c *GradingConfig) { c.OCRLevel = "symbol" }},
		{"Unknown pre marker policy", func(c *GradingConfig) { c.PreMarkerPolicy = "append" }},
		{"Unknown failure policy", func(c *GradingConfig) { c.FailurePolicy = "retry" }},
		{"Zero concurrency", func(c *GradingConfig) { c.Concurrency = 0 }},
		{"Zero max input tokens", func(c *GradingConfig) { c.MaxInputTokens = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultGradingConfig()
			tt.modify(&config)
			assert.Error(t, config.Validate(), "Expected Validate to reject the configuration")
		})
	}
}

func TestNewGradingConfigFromEnv(t *testing.T) {
	t.Run("Overlays environment variables", func(t *testing.T) {
		t.Setenv("GRADER_MAX_MARKS", "10")
		t.Setenv("GRADER_THRESHOLD", "100")
		t.Setenv("GRADER_FAILURE_POLICY", "SKIP")
		t.Setenv("GRADER_OCR_LANGUAGES", "eng,deu")
		t.Setenv("GRADER_TAGGER_MODEL", "local/pos-tagger")
		t.Setenv("GRADER_TAGGER_ONNX_FILE", "model.onnx")

		config, err := NewGradingConfigFromEnv()
		require.NoError(t, err, "Expected NewGradingConfigFromEnv to not return an error")
		assert.Equal(t, 10.0, config.MaxMarks)
		assert.Equal(t, uint8(100), config.Threshold)
		assert.Equal(t, FailSkip, config.FailurePolicy)
		assert.Equal(t, []string{"eng", "deu"}, config.OCRLanguages)
		assert.Equal(t, "local/pos-tagger", config.TaggerModel)
		assert.Equal(t, "model.onnx", config.TaggerOnnxFile, "Expected the exported tagger file to be configurable")
		assert.Equal(t, "Answers", config.ReferenceColumn, "Unset variables should keep defaults")
	})

	t.Run("Rejects out of range threshold", func(t *testing.T) {
		t.Setenv("GRADER_THRESHOLD", "300")

		_, err := NewGradingConfigFromEnv()
		assert.Error(t, err)
	})

	t.Run("Rejects invalid policy", func(t *testing.T) {
		t.Setenv("GRADER_PRE_MARKER_POLICY", "append")

		_, err := NewGradingConfigFromEnv()
		assert.Error(t, err)
	})
}

func TestNewGradingRun(t *testing.T) {
	t.Run("Builds run and answers from result", func(t *testing.T) {
		result := &GradingResult{
			Answers:  []string{"Q.1 foo", "Q.2 bar"},
			Keywords: [][]string{{"foo"}, nil},
			Marks: []Mark{
				{AnswerIndex: 0, Mark: 4.5, BestReference: 1, Similarity: 0.9},
				{AnswerIndex: 1, Mark: 2, BestReference: 0, Similarity: 0.4},
			},
			Total:    6.5,
			MaxMarks: 5,
		}

		run, answers := NewGradingRun("student-1", "ref.csv", result, [][]float32{{1, 0}, {0, 1}})

		assert.Equal(t, 6.5, run.Total)
		assert.Equal(t, 5.0, run.MaxMarks)
		require.Len(t, answers, 2)
		assert.Equal(t, []string{"foo"}, answers[0].Keywords)
		assert.Equal(t, []string{}, answers[1].Keywords, "Expected nil keywords to become an empty list")
		assert.Equal(t, 1, answers[0].BestReference)
		assert.Equal(t, []float32{0, 1}, answers[1].Embedding)
	})
}
