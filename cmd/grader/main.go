package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/siherrmann/grader"
	"github.com/siherrmann/grader/core/pipeline"
	"github.com/siherrmann/grader/helper"
	"github.com/siherrmann/grader/model"
)

// newGrader is replaced in tests to run without OCR and ONNX models
var newGrader = grader.NewDefaultGrader

type cliOptions struct {
	imagesDir     string
	imagePaths    []string
	referencePath string
	student       string
	archive       bool
	json          bool
	skipFailed    bool
	preMarker     string
	ocrLevel      string
	config        model.GradingConfig
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "grader: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("%s", helper.Message(helper.KindOf(err))))
		fmt.Fprintf(os.Stderr, "grader: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (cliOptions, error) {
	config, err := model.NewGradingConfigFromEnv()
	if err != nil {
		return cliOptions{}, fmt.Errorf("load config: %w", err)
	}

	opts := cliOptions{config: config}
	flag.StringVar(&opts.imagesDir, "images", "", "Directory with answer sheet images, graded in file name order")
	flag.StringVar(&opts.referencePath, "reference", "", "CSV/TSV file with the reference answers")
	flag.StringVar(&opts.config.ReferenceColumn, "column", config.ReferenceColumn, "Column name or #index of the reference answers")
	flag.Float64Var(&opts.config.MaxMarks, "max-marks", config.MaxMarks, "Marks awarded for a perfect answer")
	flag.IntVar(&opts.config.Concurrency, "concurrency", config.Concurrency, "Number of images recognized in parallel")
	flag.BoolVar(&opts.skipFailed, "skip-failed", config.FailurePolicy == model.FailSkip, "Skip unreadable images instead of aborting")
	flag.StringVar(&opts.preMarker, "pre-marker", string(config.PreMarkerPolicy), "Text before the first question marker: keep, merge or drop")
	flag.StringVar(&opts.ocrLevel, "ocr-level", string(config.OCRLevel), "OCR granularity: word, line or block")
	flag.StringVar(&opts.config.TaggerOnnxFile, "tagger-onnx", config.TaggerOnnxFile, "ONNX file of the tagger model, relative to its model directory")
	flag.StringVar(&opts.config.CacheDir, "cache-dir", config.CacheDir, "Directory for cached embeddings")
	flag.StringVar(&opts.student, "student", "", "Student name stored with an archived run")
	flag.BoolVar(&opts.archive, "archive", false, "Store the run in the database configured by GRADER_DB_*")
	flag.BoolVar(&opts.config.Debug, "debug", config.Debug, "Enable debug logging")
	flag.BoolVar(&opts.json, "json", false, "Print the result as JSON")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s --reference FILE (--images DIR | IMAGE...) [options]\n\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	opts.imagePaths = flag.Args()
	opts.imagesDir = strings.TrimSpace(opts.imagesDir)
	opts.referencePath = strings.TrimSpace(opts.referencePath)

	opts.config.PreMarkerPolicy = model.PreMarkerPolicy(strings.ToLower(opts.preMarker))
	opts.config.OCRLevel = model.OCRLevel(strings.ToLower(opts.ocrLevel))
	opts.config.FailurePolicy = model.FailAbort
	if opts.skipFailed {
		opts.config.FailurePolicy = model.FailSkip
	}

	if opts.referencePath == "" {
		flag.Usage()
		return opts, errors.New("missing required --reference file")
	}
	if opts.imagesDir == "" && len(opts.imagePaths) == 0 {
		flag.Usage()
		return opts, errors.New("missing --images directory or image paths")
	}

	return opts, opts.config.Validate()
}

// run grades the answer sheets and writes the result to stdout.
// Logs go to stderr so stdout only carries the result.
func run(ctx context.Context, opts cliOptions, stdout io.Writer, stderr io.Writer) error {
	opts.config.LogOutput = stderr

	imagePaths := opts.imagePaths
	if opts.imagesDir != "" {
		found, err := pipeline.ListImages(opts.imagesDir, opts.config.ImageExtensions)
		if err != nil {
			return err
		}
		imagePaths = append(found, imagePaths...)
	}
	if len(imagePaths) == 0 {
		return helper.NewReadError(opts.imagesDir, errors.New("no answer sheet images found"))
	}

	g, err := newGrader(opts.config)
	if err != nil {
		return err
	}
	defer g.Close()

	var result *model.GradingResult
	var archived *model.GradingRun
	if opts.archive {
		dbConfig, err := helper.NewDatabaseConfiguration()
		if err != nil {
			return err
		}
		if err := g.EnableArchive(dbConfig, 0); err != nil {
			return err
		}
		result, archived, err = g.GradeAndArchive(ctx, opts.student, imagePaths, opts.referencePath, opts.config.MaxMarks)
		if err != nil {
			return err
		}
	} else {
		result, err = g.Grade(ctx, imagePaths, opts.referencePath, opts.config.MaxMarks)
		if err != nil {
			return err
		}
	}

	if opts.json {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printResult(stdout, result, archived)
	return nil
}

func printResult(w io.Writer, result *model.GradingResult, run *model.GradingRun) {
	for i, m := range result.Marks {
		answer := []rune(result.Answers[m.AnswerIndex])
		if len(answer) > 60 {
			answer = append(answer[:57], []rune("...")...)
		}
		fmt.Fprintf(w, "%3d  %s  %s\n", i+1, color.CyanString("%6.2f / %.2f", m.Mark, result.MaxMarks), string(answer))
	}
	fmt.Fprintln(w, color.GreenString("Total: %.2f / %.2f", result.Total, float64(len(result.Marks))*result.MaxMarks))
	for _, path := range result.Skipped {
		fmt.Fprintln(w, color.YellowString("Skipped: %s", path))
	}
	if run != nil {
		fmt.Fprintf(w, "Archived as run %s\n", run.RID)
	}
}
