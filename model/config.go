package model

import (
	"fmt"
	"io"
	"strings"

	"github.com/siherrmann/grader/helper"
)

// PreMarkerPolicy decides what happens to text before the first question marker
type PreMarkerPolicy string

const (
	PreMarkerKeep  PreMarkerPolicy = "keep"  // Emit it as its own leading segment
	PreMarkerMerge PreMarkerPolicy = "merge" // Prepend it to the first answer
	PreMarkerDrop  PreMarkerPolicy = "drop"
)

// FailurePolicy decides what happens when a single answer sheet can't be processed
type FailurePolicy string

const (
	FailAbort FailurePolicy = "abort"
	FailSkip  FailurePolicy = "skip"
)

// OCRLevel is the granularity of recognized text regions
type OCRLevel string

const (
	OCRLevelWord  OCRLevel = "word"
	OCRLevelLine  OCRLevel = "line"
	OCRLevelBlock OCRLevel = "block"
)

// GradingConfig represents the configuration of a grading pipeline
type GradingConfig struct {
	// Marking
	MaxMarks        float64 `json:"max_marks"`
	ReferenceColumn string  `json:"reference_column"`

	// Text extraction
	Threshold       uint8    `json:"threshold"` // Binarization threshold, pixels darker than this become ink
	OCRLanguages    []string `json:"ocr_languages"`
	OCRLevel        OCRLevel `json:"ocr_level"`
	ImageExtensions []string `json:"image_extensions"`

	// Segmentation and batch behavior
	PreMarkerPolicy PreMarkerPolicy `json:"pre_marker_policy"`
	FailurePolicy   FailurePolicy   `json:"failure_policy"`
	Concurrency     int             `json:"concurrency"`

	// Models
	MaxInputTokens int    `json:"max_input_tokens"`
	EmbeddingModel string `json:"embedding_model"`
	TaggerModel    string `json:"tagger_model"`
	// Path of the ONNX file inside the tagger model directory. Models exported
	// locally with optimum-cli place it at the root, e.g. "model.onnx".
	TaggerOnnxFile string `json:"tagger_onnx_file"`
	ModelDir       string `json:"model_dir"`
	CacheDir       string `json:"cache_dir,omitempty"` // Embedding disk cache, disabled if empty

	Debug     bool      `json:"debug"`
	LogOutput io.Writer `json:"-"` // Stdout if nil
}

// DefaultGradingConfig returns the configuration used if nothing else is set
func DefaultGradingConfig() GradingConfig {
	return GradingConfig{
		MaxMarks:        5,
		ReferenceColumn: "Answers",
		Threshold:       128,
		OCRLanguages:    []string{"eng"},
		OCRLevel:        OCRLevelWord,
		ImageExtensions: []string{".jpg", ".jpeg"},
		PreMarkerPolicy: PreMarkerKeep,
		FailurePolicy:   FailAbort,
		Concurrency:     4,
		MaxInputTokens:  128,
		EmbeddingModel:  "sentence-transformers/all-MiniLM-L6-v2",
		TaggerModel:     "vblagoje/bert-english-uncased-finetuned-pos",
		TaggerOnnxFile:  "onnx/model.onnx",
		ModelDir:        helper.DefaultModelDir,
	}
}

// NewGradingConfigFromEnv returns the default configuration overlaid with GRADER_* environment variables.
// A .env file in the working directory is loaded first if present.
func NewGradingConfigFromEnv() (GradingConfig, error) {
	config := DefaultGradingConfig()

	err := helper.LoadEnvFile()
	if err != nil {
		return config, err
	}

	config.MaxMarks, err = helper.EnvFloat("GRADER_MAX_MARKS", config.MaxMarks)
	if err != nil {
		return config, err
	}
	threshold, err := helper.EnvInt("GRADER_THRESHOLD", int(config.Threshold))
	if err != nil {
		return config, err
	}
	if threshold < 0 || threshold > 255 {
		return config, helper.NewError("parse GRADER_THRESHOLD", fmt.Errorf("threshold %d out of range [0, 255]", threshold))
	}
	config.Threshold = uint8(threshold)
	config.Concurrency, err = helper.EnvInt("GRADER_CONCURRENCY", config.Concurrency)
	if err != nil {
		return config, err
	}
	config.MaxInputTokens, err = helper.EnvInt("GRADER_MAX_INPUT_TOKENS", config.MaxInputTokens)
	if err != nil {
		return config, err
	}
	config.Debug, err = helper.EnvBool("GRADER_DEBUG", config.Debug)
	if err != nil {
		return config, err
	}

	config.ReferenceColumn = helper.EnvString("GRADER_REFERENCE_COLUMN", config.ReferenceColumn)
	config.OCRLanguages = helper.EnvList("GRADER_OCR_LANGUAGES", config.OCRLanguages)
	config.OCRLevel = OCRLevel(strings.ToLower(helper.EnvString("GRADER_OCR_LEVEL", string(config.OCRLevel))))
	config.ImageExtensions = helper.EnvList("GRADER_IMAGE_EXTENSIONS", config.ImageExtensions)
	config.PreMarkerPolicy = PreMarkerPolicy(strings.ToLower(helper.EnvString("GRADER_PRE_MARKER_POLICY", string(config.PreMarkerPolicy))))
	config.FailurePolicy = FailurePolicy(strings.ToLower(helper.EnvString("GRADER_FAILURE_POLICY", string(config.FailurePolicy))))
	config.EmbeddingModel = helper.EnvString("GRADER_EMBEDDING_MODEL", config.EmbeddingModel)
	config.TaggerModel = helper.EnvString("GRADER_TAGGER_MODEL", config.TaggerModel)
	config.TaggerOnnxFile = helper.EnvString("GRADER_TAGGER_ONNX_FILE", config.TaggerOnnxFile)
	config.ModelDir = helper.EnvString("GRADER_MODEL_DIR", config.ModelDir)
	config.CacheDir = helper.EnvString("GRADER_CACHE_DIR", config.CacheDir)

	return config, config.Validate()
}

// Validate checks that the configuration can be used for grading
func (c GradingConfig) Validate() error {
	if c.MaxMarks < 0 {
		return helper.NewError("validate config", fmt.Errorf("max marks must not be negative, got %v", c.MaxMarks))
	}
	if c.ReferenceColumn == "" {
		return helper.NewError("validate config", fmt.Errorf("reference column is empty"))
	}
	switch c.OCRLevel {
	case OCRLevelWord, OCRLevelLine, OCRLevelBlock:
	default:
		return helper.NewError("validate config", fmt.Errorf("unknown ocr level %q", c.OCRLevel))
	}
	switch c.PreMarkerPolicy {
	case PreMarkerKeep, PreMarkerMerge, PreMarkerDrop:
	default:
		return helper.NewError("validate config", fmt.Errorf("unknown pre marker policy %q", c.PreMarkerPolicy))
	}
	switch c.FailurePolicy {
	case FailAbort, FailSkip:
	default:
		return helper.NewError("validate config", fmt.Errorf("unknown failure policy %q", c.FailurePolicy))
	}
	if c.Concurrency < 1 {
		return helper.NewError("validate config", fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.MaxInputTokens < 1 {
		return helper.NewError("validate config", fmt.Errorf("max input tokens must be at least 1, got %d", c.MaxInputTokens))
	}
	return nil
}
