package pipeline

import (
	"fmt"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/siherrmann/grader/helper"
)

// DefaultTagger creates a part of speech tagger using a token classification model.
// The default model vblagoje/bert-english-uncased-finetuned-pos predicts universal
// POS tags (NOUN, VERB, ADJ, ...) but is published without an ONNX export, convert it with
//
//	optimum-cli export onnx --model vblagoje/bert-english-uncased-finetuned-pos \
//		--task token-classification models/vblagoje_bert-english-uncased-finetuned-pos
//
// and pass "model.onnx" as onnxFile. onnxFile is relative to the model directory.
func DefaultTagger(modelDir string, modelName string, onnxFile string) (TagFunc, error) {
	modelPath, err := helper.PrepareModelIn(modelDir, modelName, onnxFile)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.TokenClassificationConfig{
		ModelPath: modelPath,
		Name:      "pos-pipeline",
	}
	posPipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create POS pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create POS pipeline: %w", err)
	}

	// The hugot pipeline is not safe for concurrent use
	var mu sync.Mutex

	return func(tokens []string) ([]string, error) {
		tags := make([]string, len(tokens))
		if len(tokens) == 0 {
			return tags, nil
		}

		text, spans := joinWithSpans(tokens)
		mu.Lock()
		result, err := posPipeline.RunPipeline([]string{text})
		mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("failed to run POS tagging: %w", err)
		}
		if len(result.Entities) == 0 {
			return tags, nil
		}

		for _, entity := range result.Entities[0] {
			tag := normalizeTag(entity.Entity)
			start, end := int(entity.Start), int(entity.End)
			for i, span := range spans {
				// First label wins for tokens split into several model tokens
				if tags[i] == "" && span[0] < end && start < span[1] {
					tags[i] = tag
				}
			}
		}

		return tags, nil
	}, nil
}

// KeepAllTagger tags every token as a noun, disabling the part of speech filter
func KeepAllTagger(tokens []string) ([]string, error) {
	tags := make([]string, len(tokens))
	for i := range tags {
		tags[i] = "NOUN"
	}
	return tags, nil
}

// IsContentTag reports whether a Penn Treebank or universal POS tag marks a noun or verb
func IsContentTag(tag string) bool {
	tag = strings.ToUpper(normalizeTag(tag))
	switch tag {
	case "NOUN", "PROPN", "VERB":
		return true
	}
	return strings.HasPrefix(tag, "NN") || strings.HasPrefix(tag, "VB")
}

// joinWithSpans joins tokens with single spaces and returns the byte span of each token
func joinWithSpans(tokens []string) (string, [][2]int) {
	var sb strings.Builder
	spans := make([][2]int, len(tokens))
	for i, token := range tokens {
		if i > 0 {
			sb.WriteByte(' ')
		}
		spans[i][0] = sb.Len()
		sb.WriteString(token)
		spans[i][1] = sb.Len()
	}
	return sb.String(), spans
}

// normalizeTag removes B- and I- prefixes from token classification labels
func normalizeTag(label string) string {
	if strings.HasPrefix(label, "B-") || strings.HasPrefix(label, "I-") {
		return label[2:]
	}
	return label
}
