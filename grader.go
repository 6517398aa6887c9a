package grader

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/siherrmann/grader/core/pipeline"
	"github.com/siherrmann/grader/core/reference"
	"github.com/siherrmann/grader/core/scoring"
	"github.com/siherrmann/grader/database"
	"github.com/siherrmann/grader/helper"
	"github.com/siherrmann/grader/model"
	loadSql "github.com/siherrmann/grader/sql"
)

// Grader scores answer sheet images against reference answers
type Grader struct {
	Config   model.GradingConfig
	Pipeline *pipeline.Pipeline
	Cache    *pipeline.EmbeddingCache // Set by NewDefaultGrader
	// Optional archive, see EnableArchive
	DB      *helper.Database
	Runs    *database.RunsDBHandler
	Answers *database.AnswersDBHandler
	// Logging
	log *slog.Logger
}

func newLogger(config model.GradingConfig) *slog.Logger {
	out := config.LogOutput
	if out == nil {
		out = os.Stdout
	}
	level := slog.LevelInfo
	if config.Debug {
		level = slog.LevelDebug
	}
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: level,
		},
	}
	return slog.New(helper.NewPrettyHandler(out, opts))
}

// NewGrader creates a grader running the given pipeline.
// The pipeline policies are overwritten with the ones of config.
func NewGrader(config model.GradingConfig, p *pipeline.Pipeline) (*Grader, error) {
	err := config.Validate()
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, helper.NewError("create grader", fmt.Errorf("pipeline is nil"))
	}
	p.Configure(config)

	return &Grader{
		Config:   config,
		Pipeline: p,
		log:      newLogger(config),
	}, nil
}

// NewDefaultGrader creates a grader with tesseract for text extraction and
// the configured transformer models for keywords and embeddings.
// Models are downloaded into config.ModelDir on first use.
func NewDefaultGrader(config model.GradingConfig) (*Grader, error) {
	err := config.Validate()
	if err != nil {
		return nil, err
	}

	extractor := pipeline.TesseractExtractor(pipeline.TesseractOptions{
		Languages: config.OCRLanguages,
		Level:     config.OCRLevel,
		Threshold: config.Threshold,
	})

	keywords, err := pipeline.DefaultKeywordExtractor(config.ModelDir, config.EmbeddingModel, config.TaggerModel, config.TaggerOnnxFile)
	if err != nil {
		return nil, helper.NewError("create keyword extractor", err)
	}

	embedder, err := pipeline.DefaultEmbedder(config.ModelDir, config.EmbeddingModel)
	if err != nil {
		return nil, helper.NewError("create embedder", err)
	}

	cache, err := pipeline.NewEmbeddingCache(config.CacheDir, config.EmbeddingModel)
	if err != nil {
		return nil, helper.NewError("create embedding cache", err)
	}

	g, err := NewGrader(config, pipeline.NewPipeline(extractor, keywords, cache.Wrap(embedder)))
	if err != nil {
		return nil, err
	}
	g.Cache = cache

	g.log.Debug("Created default grader",
		slog.String("embedding_model", config.EmbeddingModel),
		slog.String("tagger_model", config.TaggerModel),
		slog.String("cache_dir", config.CacheDir),
	)

	return g, nil
}

// EnableArchive connects to the database and creates the archive tables.
// If embeddingDim is not positive it is taken from the embedding of an empty keyword list.
func (g *Grader) EnableArchive(dbConfig *helper.DatabaseConfiguration, embeddingDim int) error {
	if embeddingDim <= 0 {
		sample, err := g.Embed(context.Background(), [][]string{{}})
		if err != nil {
			return helper.NewError("determine embedding dimension", err)
		}
		embeddingDim = len(sample[0])
	}

	db, err := helper.NewDatabase("grader", dbConfig, g.log)
	if err != nil {
		return helper.NewError("connect archive", err)
	}

	err = loadSql.Init(db.Instance)
	if err != nil {
		db.Close()
		return helper.NewError("initialize database extensions", err)
	}

	// Runs first, answers reference them
	runs, err := database.NewRunsDBHandler(db, false)
	if err != nil {
		db.Close()
		return helper.NewError("create runs handler", err)
	}

	answers, err := database.NewAnswersDBHandler(db, embeddingDim, false)
	if err != nil {
		db.Close()
		return helper.NewError("create answers handler", err)
	}

	g.DB = db
	g.Runs = runs
	g.Answers = answers

	return nil
}

// Close closes the archive database connection if there is one
func (g *Grader) Close() error {
	if g.DB != nil {
		return g.DB.Close()
	}
	return nil
}

// ExtractAnswers recognizes the images in order and segments the text into answers.
// The second return value lists images skipped with the skip failure policy.
func (g *Grader) ExtractAnswers(ctx context.Context, imagePaths []string) ([]string, []string, error) {
	answers, skipped, err := g.Pipeline.ExtractAnswers(ctx, imagePaths)
	if err != nil {
		return nil, nil, err
	}

	for _, path := range skipped {
		g.log.Warn("Skipped unreadable answer sheet", slog.String("path", path))
	}
	g.log.Info("Extracted answers", slog.Int("images", len(imagePaths)), slog.Int("answers", len(answers)), slog.Int("skipped", len(skipped)))

	return answers, skipped, nil
}

// ReferenceAnswers loads the reference answers from a CSV or TSV file.
// An empty column uses the configured reference column.
func (g *Grader) ReferenceAnswers(csvPath string, column string) ([]string, error) {
	if column == "" {
		column = g.Config.ReferenceColumn
	}

	answers, err := reference.LoadAnswers(csvPath, column)
	if err != nil {
		return nil, err
	}

	g.log.Info("Loaded reference answers", slog.String("path", csvPath), slog.String("column", column), slog.Int("references", len(answers)))

	return answers, nil
}

// ExtractKeywords maps each answer to its keyword list
func (g *Grader) ExtractKeywords(answers []string) ([][]string, error) {
	keywords, err := g.Pipeline.ExtractKeywords(answers)
	if err != nil {
		return nil, err
	}
	g.log.Debug("Extracted keywords", slog.Int("answers", len(answers)))
	return keywords, nil
}

// Embed embeds each keyword list
func (g *Grader) Embed(ctx context.Context, keywordLists [][]string) ([][]float32, error) {
	embeddings, err := g.Pipeline.EmbedAll(ctx, keywordLists)
	if err != nil {
		return nil, err
	}
	if len(embeddings) > 0 {
		g.log.Debug("Embedded keyword lists", slog.Int("lists", len(embeddings)), slog.Int("dimension", len(embeddings[0])))
	}
	return embeddings, nil
}

// Score computes the cosine similarity of every student embedding with every reference embedding
func (g *Grader) Score(studentEmbeddings [][]float32, referenceEmbeddings [][]float32) ([][]float64, error) {
	return scoring.SimilarityMatrix(studentEmbeddings, referenceEmbeddings)
}

// AssignMarks converts the similarity matrix into marks and returns them with their total
func (g *Grader) AssignMarks(matrix [][]float64, maxMarks float64) ([]model.Mark, float64, error) {
	marks, err := scoring.AssignMarks(matrix, maxMarks)
	if err != nil {
		return nil, 0, err
	}
	return marks, scoring.Total(marks), nil
}

// Grade runs the whole pipeline: answers are extracted from the images, keywords
// of student and reference answers are embedded and every student answer gets
// its best similarity times maxMarks. The first failing stage aborts grading.
func (g *Grader) Grade(ctx context.Context, imagePaths []string, referenceCSV string, maxMarks float64) (*model.GradingResult, error) {
	result, _, err := g.grade(ctx, imagePaths, referenceCSV, maxMarks)
	return result, err
}

// GradeAndArchive grades like Grade and stores the run in the archive
func (g *Grader) GradeAndArchive(ctx context.Context, student string, imagePaths []string, referenceCSV string, maxMarks float64) (*model.GradingResult, *model.GradingRun, error) {
	if g.Runs == nil || g.Answers == nil {
		return nil, nil, helper.NewError("grade and archive", fmt.Errorf("archive not enabled, use EnableArchive() first"))
	}

	result, embeddings, err := g.grade(ctx, imagePaths, referenceCSV, maxMarks)
	if err != nil {
		return nil, nil, err
	}

	run, err := g.Archive(student, referenceCSV, result, embeddings)
	if err != nil {
		return nil, nil, err
	}

	return result, run, nil
}

func (g *Grader) grade(ctx context.Context, imagePaths []string, referenceCSV string, maxMarks float64) (*model.GradingResult, [][]float32, error) {
	answers, skipped, err := g.ExtractAnswers(ctx, imagePaths)
	if err != nil {
		return nil, nil, err
	}

	references, err := g.ReferenceAnswers(referenceCSV, "")
	if err != nil {
		return nil, nil, err
	}

	studentKeywords, err := g.ExtractKeywords(answers)
	if err != nil {
		return nil, nil, err
	}
	referenceKeywords, err := g.ExtractKeywords(references)
	if err != nil {
		return nil, nil, err
	}

	studentEmbeddings, err := g.Embed(ctx, studentKeywords)
	if err != nil {
		return nil, nil, err
	}
	referenceEmbeddings, err := g.Embed(ctx, referenceKeywords)
	if err != nil {
		return nil, nil, err
	}

	matrix, err := g.Score(studentEmbeddings, referenceEmbeddings)
	if err != nil {
		return nil, nil, err
	}

	marks, total, err := g.AssignMarks(matrix, maxMarks)
	if err != nil {
		return nil, nil, err
	}

	g.log.Info("Graded answers", slog.Int("answers", len(marks)), slog.Float64("total", total), slog.Float64("max_marks", maxMarks))

	return &model.GradingResult{
		Answers:  answers,
		Keywords: studentKeywords,
		Marks:    marks,
		Total:    total,
		MaxMarks: maxMarks,
		Skipped:  skipped,
	}, studentEmbeddings, nil
}

// Archive stores a grading result with the student embeddings of its answers
func (g *Grader) Archive(student string, referencePath string, result *model.GradingResult, embeddings [][]float32) (*model.GradingRun, error) {
	if g.Runs == nil || g.Answers == nil {
		return nil, helper.NewError("archive", fmt.Errorf("archive not enabled, use EnableArchive() first"))
	}
	if result == nil {
		return nil, helper.NewError("archive", fmt.Errorf("result is nil"))
	}
	if len(embeddings) != len(result.Answers) {
		return nil, helper.NewError("archive", fmt.Errorf("got %d embeddings for %d answers", len(embeddings), len(result.Answers)))
	}

	run, answers := model.NewGradingRun(student, referencePath, result, embeddings)

	err := g.Runs.InsertRun(run)
	if err != nil {
		return nil, helper.NewError("insert run", err)
	}

	for _, answer := range answers {
		answer.RunID = run.ID
		err = g.Answers.InsertAnswer(answer)
		if err != nil {
			// Don't leave a run with missing answers behind
			if deleteErr := g.Runs.DeleteRun(run.RID); deleteErr != nil {
				g.log.Error("Failed to delete incomplete run", slog.String("run_id", run.RID.String()), slog.String("error", deleteErr.Error()))
			}
			return nil, helper.NewError("insert answer", err)
		}
	}

	g.log.Info("Archived grading run", slog.String("run_id", run.RID.String()), slog.String("student", student), slog.Int("answers", len(answers)))

	return run, nil
}

// SimilarAnswers finds the archived answers whose keywords are closest to the keywords of text
func (g *Grader) SimilarAnswers(ctx context.Context, text string, limit int) ([]*model.ArchivedAnswer, error) {
	if g.Answers == nil {
		return nil, helper.NewError("similar answers", fmt.Errorf("archive not enabled, use EnableArchive() first"))
	}

	keywords, err := g.ExtractKeywords([]string{text})
	if err != nil {
		return nil, err
	}
	embeddings, err := g.Embed(ctx, keywords)
	if err != nil {
		return nil, err
	}

	return g.Answers.SelectAnswersBySimilarity(embeddings[0], limit)
}

// ChangeIndexType rebuilds the vector index of the archived answers, see database.AnswersDBHandler.ChangeIndexType
func (g *Grader) ChangeIndexType(ctx context.Context, indexType string, opts database.VectorIndexOptions) error {
	if g.Answers == nil {
		return helper.NewError("change index type", fmt.Errorf("archive not enabled, use EnableArchive() first"))
	}
	return g.Answers.ChangeIndexType(ctx, indexType, opts)
}
