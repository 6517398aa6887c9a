package helper

import (
	"errors"
	"fmt"
)

// NewError wraps err with the operation that failed.
// Returns nil if err is nil.
func NewError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorKind classifies pipeline failures
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindRead
	KindExtraction
	KindParse
	KindEmbedding
	KindScoring
)

var (
	ErrRead       = errors.New("read error")
	ErrExtraction = errors.New("extraction error")
	ErrParse      = errors.New("parse error")
	ErrEmbedding  = errors.New("embedding error")
	ErrScoring    = errors.New("scoring error")
)

func (k ErrorKind) String() string {
	switch k {
	case KindRead:
		return "ReadError"
	case KindExtraction:
		return "ExtractionError"
	case KindParse:
		return "ParseError"
	case KindEmbedding:
		return "EmbeddingError"
	case KindScoring:
		return "ScoringError"
	default:
		return "UnknownError"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindRead:
		return ErrRead
	case KindExtraction:
		return ErrExtraction
	case KindParse:
		return ErrParse
	case KindEmbedding:
		return ErrEmbedding
	case KindScoring:
		return ErrScoring
	default:
		return nil
	}
}

// PipelineError is a structured error returned by the grading stages.
// Path is set when the failure belongs to a single input file.
type PipelineError struct {
	Kind ErrorKind
	Op   string
	Path string
	Err  error
}

func (e *PipelineError) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg += " (" + e.Op + ")"
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels, so errors.Is(err, ErrRead) works through wrapping.
func (e *PipelineError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func newKindError(kind ErrorKind, op, path string, err error) error {
	return &PipelineError{Kind: kind, Op: op, Path: path, Err: err}
}

// NewReadError reports an unreadable or undecodable input file.
func NewReadError(path string, err error) error {
	return newKindError(KindRead, "read", path, err)
}

// NewExtractionError reports a recognition engine failure.
func NewExtractionError(path string, err error) error {
	return newKindError(KindExtraction, "extract", path, err)
}

// NewParseError reports a malformed reference file or a missing column.
func NewParseError(path string, err error) error {
	return newKindError(KindParse, "parse", path, err)
}

// NewEmbeddingError reports an encoder failure.
func NewEmbeddingError(op string, err error) error {
	return newKindError(KindEmbedding, op, "", err)
}

// NewScoringError reports degenerate or incomparable vectors.
func NewScoringError(op string, err error) error {
	return newKindError(KindScoring, op, "", err)
}

// KindOf returns the kind of the first PipelineError in the chain.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// Message returns a human readable message for an error kind.
func Message(kind ErrorKind) string {
	switch kind {
	case KindRead:
		return "One of the answer sheets could not be read. Please upload valid image files."
	case KindExtraction:
		return "Text could not be recognized on one of the answer sheets."
	case KindParse:
		return "The reference answer file is malformed or is missing the answer column."
	case KindEmbedding:
		return "The answers could not be processed by the language model."
	case KindScoring:
		return "The answers could not be compared with the reference answers."
	default:
		return "An unexpected error occurred while grading."
	}
}
