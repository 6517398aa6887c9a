package pipeline

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/siherrmann/grader/helper"
)

// NewKeywordExtractor builds a keyword extractor from a tokenizer and a tagger.
// Tokens are dropped if they are stopwords (case insensitive), subword
// continuations or contain no letter or digit. The remaining tokens are
// tagged as a sequence and only nouns and verbs are kept, in token order.
// A nil stopword set uses the built-in English list.
func NewKeywordExtractor(tokenize TokenizeFunc, tag TagFunc, stopwords map[string]struct{}) KeywordFunc {
	if stopwords == nil {
		stopwords = StopwordSet(englishStopwords)
	}

	return func(text string) ([]string, error) {
		tokens, err := tokenize(text)
		if err != nil {
			return nil, err
		}

		candidates := make([]string, 0, len(tokens))
		for _, token := range tokens {
			if strings.HasPrefix(token, "##") || !hasWordRune(token) {
				continue
			}
			if _, ok := stopwords[strings.ToLower(token)]; ok {
				continue
			}
			candidates = append(candidates, token)
		}
		if len(candidates) == 0 {
			return []string{}, nil
		}

		tags, err := tag(candidates)
		if err != nil {
			return nil, err
		}
		if len(tags) != len(candidates) {
			return nil, fmt.Errorf("tagger returned %d tags for %d tokens", len(tags), len(candidates))
		}

		keywords := make([]string, 0, len(candidates))
		for i, token := range candidates {
			if IsContentTag(tags[i]) {
				keywords = append(keywords, token)
			}
		}

		return keywords, nil
	}
}

// DefaultKeywordExtractor uses the embedding model's tokenizer and the default POS tagger
func DefaultKeywordExtractor(modelDir string, embeddingModel string, taggerModel string, taggerOnnxFile string) (KeywordFunc, error) {
	tokenize, err := DefaultTokenizer(modelDir, embeddingModel)
	if err != nil {
		return nil, helper.NewError("create tokenizer", err)
	}
	tag, err := DefaultTagger(modelDir, taggerModel, taggerOnnxFile)
	if err != nil {
		return nil, helper.NewError("create tagger", err)
	}
	return NewKeywordExtractor(tokenize, tag, nil), nil
}

// KeywordText joins keywords into the text that gets embedded, keeping at most maxTokens keywords.
// maxTokens <= 0 keeps all of them.
func KeywordText(keywords []string, maxTokens int) string {
	if maxTokens > 0 && len(keywords) > maxTokens {
		keywords = keywords[:maxTokens]
	}
	return strings.Join(keywords, " ")
}

func hasWordRune(token string) bool {
	for _, r := range token {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
