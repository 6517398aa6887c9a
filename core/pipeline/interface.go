package pipeline

import (
	"context"
	"fmt"

	"github.com/siherrmann/grader/helper"
	"github.com/siherrmann/grader/model"
	"golang.org/x/sync/errgroup"
)

// ExtractFunc recognizes the text fragments of one answer sheet image.
// Fragments are returned in scan order and have non empty, normalized text.
type ExtractFunc func(ctx context.Context, imagePath string) ([]model.TextFragment, error)

// TokenizeFunc splits text into tokens. Subword continuation tokens start with "##".
type TokenizeFunc func(text string) ([]string, error)

// TagFunc assigns a part of speech tag to each token.
// The returned slice must have the same length as tokens.
type TagFunc func(tokens []string) ([]string, error)

// KeywordFunc maps an answer to its keyword tokens
type KeywordFunc func(text string) ([]string, error)

// EmbedFunc is a function that generates embeddings for text
type EmbedFunc func(text string) ([]float32, error)

// Pipeline combines the stages turning answer sheets into keyword embeddings
type Pipeline struct {
	Extractor ExtractFunc
	Keywords  KeywordFunc
	Embedder  EmbedFunc

	PreMarkerPolicy model.PreMarkerPolicy
	FailurePolicy   model.FailurePolicy
	Concurrency     int
	MaxInputTokens  int
}

// NewPipeline creates a new grading pipeline with the default policies
func NewPipeline(extractor ExtractFunc, keywords KeywordFunc, embedder EmbedFunc) *Pipeline {
	config := model.DefaultGradingConfig()
	return &Pipeline{
		Extractor:       extractor,
		Keywords:        keywords,
		Embedder:        embedder,
		PreMarkerPolicy: config.PreMarkerPolicy,
		FailurePolicy:   config.FailurePolicy,
		Concurrency:     config.Concurrency,
		MaxInputTokens:  config.MaxInputTokens,
	}
}

// Configure applies the policies of a grading configuration
func (p *Pipeline) Configure(config model.GradingConfig) {
	p.PreMarkerPolicy = config.PreMarkerPolicy
	p.FailurePolicy = config.FailurePolicy
	p.Concurrency = config.Concurrency
	p.MaxInputTokens = config.MaxInputTokens
}

func (p *Pipeline) limit() int {
	if p.Concurrency < 1 {
		return 1
	}
	return p.Concurrency
}

// ExtractAll runs the extractor over all images.
// The result is index aligned with imagePaths. With FailSkip a failing image
// yields nil fragments and its path is returned in skipped, otherwise the
// first failure aborts the batch and no fragments are returned.
func (p *Pipeline) ExtractAll(ctx context.Context, imagePaths []string) (fragments [][]model.TextFragment, skipped []string, err error) {
	if p.Extractor == nil {
		return nil, nil, helper.NewExtractionError("", fmt.Errorf("no extractor set"))
	}

	fragments = make([][]model.TextFragment, len(imagePaths))
	failed := make([]bool, len(imagePaths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit())
	for i, path := range imagePaths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := p.Extractor(gctx, path)
			if err != nil {
				if p.FailurePolicy == model.FailSkip && helper.KindOf(err) != helper.KindUnknown {
					failed[i] = true
					return nil
				}
				return err
			}
			fragments[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	for i, f := range failed {
		if f {
			skipped = append(skipped, imagePaths[i])
		}
	}

	return fragments, skipped, nil
}

// ExtractAnswers recognizes all images and segments the combined text into answers
func (p *Pipeline) ExtractAnswers(ctx context.Context, imagePaths []string) ([]string, []string, error) {
	fragments, skipped, err := p.ExtractAll(ctx, imagePaths)
	if err != nil {
		return nil, nil, err
	}
	return SegmentText(CombineFragments(fragments), p.PreMarkerPolicy), skipped, nil
}

// ExtractKeywords maps every answer to its keyword list
func (p *Pipeline) ExtractKeywords(answers []string) ([][]string, error) {
	if p.Keywords == nil {
		return nil, helper.NewEmbeddingError("extract keywords", fmt.Errorf("no keyword extractor set"))
	}

	keywords := make([][]string, len(answers))
	for i, answer := range answers {
		k, err := p.Keywords(answer)
		if err != nil {
			return nil, helper.NewEmbeddingError(fmt.Sprintf("extract keywords of answer %d", i), err)
		}
		if k == nil {
			k = []string{}
		}
		keywords[i] = k
	}

	return keywords, nil
}

// EmbedAll embeds every keyword list. All embeddings have the same dimension.
func (p *Pipeline) EmbedAll(ctx context.Context, keywordLists [][]string) ([][]float32, error) {
	if p.Embedder == nil {
		return nil, helper.NewEmbeddingError("embed", fmt.Errorf("no embedder set"))
	}

	embeddings := make([][]float32, len(keywordLists))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit())
	for i, keywords := range keywordLists {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			e, err := p.Embedder(KeywordText(keywords, p.MaxInputTokens))
			if err != nil {
				return helper.NewEmbeddingError(fmt.Sprintf("embed keyword list %d", i), err)
			}
			embeddings[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := 1; i < len(embeddings); i++ {
		if len(embeddings[i]) != len(embeddings[0]) {
			return nil, helper.NewEmbeddingError("embed", fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(embeddings[i]), len(embeddings[0])))
		}
	}

	return embeddings, nil
}
