package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/siherrmann/grader/helper"
	"github.com/siherrmann/grader/model"
	"golang.org/x/text/unicode/norm"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeText applies NFKC normalization, collapses whitespace runs to a single space and trims.
func NormalizeText(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(norm.NFKC.String(text), " "))
}

// TesseractOptions configures the tesseract backed extractor
type TesseractOptions struct {
	Languages []string
	Level     model.OCRLevel
	Threshold uint8
	Variables map[string]string
}

// DefaultTesseractOptions returns options matching the default grading configuration
func DefaultTesseractOptions() TesseractOptions {
	config := model.DefaultGradingConfig()
	return TesseractOptions{
		Languages: config.OCRLanguages,
		Level:     config.OCRLevel,
		Threshold: config.Threshold,
	}
}

func iteratorLevel(level model.OCRLevel) gosseract.PageIteratorLevel {
	switch level {
	case model.OCRLevelLine:
		return gosseract.RIL_TEXTLINE
	case model.OCRLevelBlock:
		return gosseract.RIL_BLOCK
	default:
		return gosseract.RIL_WORD
	}
}

// TesseractExtractor creates an extractor running tesseract on the binarized image.
// Each call uses its own client, so the extractor can run concurrently.
func TesseractExtractor(opts TesseractOptions) ExtractFunc {
	level := iteratorLevel(opts.Level)

	return func(ctx context.Context, imagePath string) ([]model.TextFragment, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := PreprocessImage(imagePath, opts.Threshold)
		if err != nil {
			return nil, err
		}

		client := gosseract.NewClient()
		defer client.Close()

		if err := client.SetImageFromBytes(data); err != nil {
			return nil, helper.NewExtractionError(imagePath, fmt.Errorf("set image: %w", err))
		}
		if len(opts.Languages) > 0 {
			if err := client.SetLanguage(opts.Languages...); err != nil {
				return nil, helper.NewExtractionError(imagePath, fmt.Errorf("set languages: %w", err))
			}
		}
		for k, v := range opts.Variables {
			if err := client.SetVariable(gosseract.SettableVariable(k), v); err != nil {
				return nil, helper.NewExtractionError(imagePath, fmt.Errorf("set variable %s: %w", k, err))
			}
		}

		boxes, err := client.GetBoundingBoxes(level)
		if err != nil {
			return nil, helper.NewExtractionError(imagePath, fmt.Errorf("recognize text: %w", err))
		}

		return FragmentsFromBoxes(boxes), nil
	}
}

// FragmentsFromBoxes converts recognized regions to fragments, dropping regions without text
func FragmentsFromBoxes(boxes []gosseract.BoundingBox) []model.TextFragment {
	fragments := make([]model.TextFragment, 0, len(boxes))
	for _, b := range boxes {
		text := NormalizeText(b.Word)
		if text == "" {
			continue
		}
		fragments = append(fragments, model.TextFragment{
			Text:       text,
			Box:        model.BoxFromRect(b.Box),
			Confidence: b.Confidence / 100.0,
		})
	}
	return fragments
}

// ListImages returns the files in dir with one of the given extensions, sorted by name.
// Extensions are matched case insensitively.
func ListImages(dir string, extensions []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, helper.NewReadError(dir, err)
	}

	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := allowed[strings.ToLower(filepath.Ext(entry.Name()))]; ok {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	return paths, nil
}
