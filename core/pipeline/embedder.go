package pipeline

import (
	"fmt"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/siherrmann/grader/helper"
)

// DefaultEmbedder creates an embedder using a sentence transformer model from modelDir.
// The pipeline mean pools the token vectors into one vector per input;
// all-MiniLM-L6-v2 produces 384-dimensional embeddings. Empty text is
// embedded as well and yields the embedding of the special tokens only.
//
// Calls are serialized on the model, so the returned function may be shared
// by the parallel stages of a Pipeline.
func DefaultEmbedder(modelDir string, modelName string) (EmbedFunc, error) {
	modelPath, err := helper.PrepareModelIn(modelDir, modelName, "onnx/model.onnx")
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "answer-embedder",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	var mu sync.Mutex
	return func(text string) ([]float32, error) {
		mu.Lock()
		result, err := sentencePipeline.RunPipeline([]string{text})
		mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("failed to generate embedding: %w", err)
		}

		if len(result.Embeddings) == 0 || len(result.Embeddings[0]) == 0 {
			return nil, fmt.Errorf("no embedding generated for %d characters of text", len(text))
		}

		return result.Embeddings[0], nil
	}, nil
}
