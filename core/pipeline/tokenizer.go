package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/siherrmann/grader/helper"
	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// NewSubwordTokenizer loads a HuggingFace tokenizer.json and returns a tokenizer
// producing the model's subword tokens without special tokens.
func NewSubwordTokenizer(tokenizerPath string) (TokenizeFunc, error) {
	tk, err := pretrained.FromFile(tokenizerPath)
	if err != nil {
		return nil, helper.NewError("load tokenizer "+tokenizerPath, err)
	}
	return subwordTokenizer(tk), nil
}

// DefaultTokenizer loads the tokenizer shipped with the embedding model, so keywords
// are split with the same vocabulary the embedder uses.
func DefaultTokenizer(modelDir string, modelName string) (TokenizeFunc, error) {
	modelPath, err := helper.PrepareModelIn(modelDir, modelName, "onnx/model.onnx")
	if err != nil {
		return nil, err
	}
	return NewSubwordTokenizer(filepath.Join(modelPath, "tokenizer.json"))
}

func subwordTokenizer(tk *tokenizer.Tokenizer) TokenizeFunc {
	return func(text string) ([]string, error) {
		if strings.TrimSpace(text) == "" {
			return []string{}, nil
		}
		encoding, err := tk.EncodeSingle(text, false)
		if err != nil {
			return nil, fmt.Errorf("failed to tokenize: %w", err)
		}
		return encoding.Tokens, nil
	}
}

// WordTokenizer splits text into lower cased words, dropping punctuation.
// It never produces subword tokens and needs no model files.
func WordTokenizer(text string) ([]string, error) {
	fields := strings.FieldsFunc(strings.ToLower(NormalizeText(text)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.Trim(f, "'"); f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens, nil
}
