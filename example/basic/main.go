package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/siherrmann/grader"
	"github.com/siherrmann/grader/core/pipeline"
	"github.com/siherrmann/grader/helper"
	"github.com/siherrmann/grader/model"
)

const referenceAnswers = `Question,Answers
1,Photosynthesis converts light energy into chemical energy stored in glucose.
2,Water boils when its vapour pressure equals the surrounding pressure.
3,Gravity pulls objects with mass towards each other.
`

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("Usage: %s IMAGE_DIR", filepath.Base(os.Args[0]))
	}

	// Start a test PostgreSQL container for the archive
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "grader",
		Username: "grader",
		Password: "grader",
		Schema:   "public",
		SSLMode:  "disable",
	}

	referencePath := filepath.Join(os.TempDir(), "grader_reference.csv")
	if err := os.WriteFile(referencePath, []byte(referenceAnswers), 0600); err != nil {
		log.Fatalf("Failed to write reference answers: %v", err)
	}
	defer os.Remove(referencePath)

	config := model.DefaultGradingConfig()
	config.CacheDir = filepath.Join(os.TempDir(), "grader_cache")

	// Tesseract for OCR, MiniLM for keywords and embeddings
	g, err := grader.NewDefaultGrader(config)
	if err != nil {
		log.Fatalf("Failed to create grader: %v", err)
	}
	defer g.Close()

	if err := g.EnableArchive(dbConfig, 0); err != nil {
		log.Fatalf("Failed to enable archive: %v", err)
	}

	images, err := pipeline.ListImages(os.Args[1], config.ImageExtensions)
	if err != nil {
		log.Fatalf("Failed to list images: %v", err)
	}

	ctx := context.Background()
	result, run, err := g.GradeAndArchive(ctx, "example student", images, referencePath, config.MaxMarks)
	if err != nil {
		log.Fatalf("%s: %v", helper.Message(helper.KindOf(err)), err)
	}

	fmt.Printf("\n=== Run %s ===\n", run.RID)
	for _, m := range result.Marks {
		fmt.Printf("Answer %d: %.2f / %.2f (reference %d, similarity %.3f)\n", m.AnswerIndex+1, m.Mark, result.MaxMarks, m.BestReference+1, m.Similarity)
		fmt.Printf("  %s\n", result.Answers[m.AnswerIndex])
		fmt.Printf("  keywords: %v\n", result.Keywords[m.AnswerIndex])
	}
	fmt.Printf("Total: %.2f\n", result.Total)

	fmt.Println("\n=== Archived answers similar to 'plants use sunlight' ===")
	similar, err := g.SimilarAnswers(ctx, "plants use sunlight", 3)
	if err != nil {
		log.Fatalf("Failed to search archive: %v", err)
	}
	for _, a := range similar {
		fmt.Printf("%.3f  %s\n", a.Distance, a.Content)
	}
}
