package reference

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/siherrmann/grader/helper"
)

// DefaultColumn is the header of the reference answer column
const DefaultColumn = "Answers"

// LoadAnswers reads the reference answers from a CSV or TSV file with a header row.
// column is matched exactly first, then case insensitively, or given as a 1-based
// "#N" index. Empty cells are skipped. All failures are parse errors.
func LoadAnswers(path string, column string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, helper.NewParseError(path, err)
	}
	defer f.Close()

	comma := ','
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		comma = '\t'
	}

	answers, err := ReadAnswers(f, comma, column)
	if err != nil {
		return nil, helper.NewParseError(path, err)
	}
	return answers, nil
}

// ReadAnswers reads the answers column from delimited data
func ReadAnswers(r io.Reader, comma rune, column string) ([]string, error) {
	if strings.TrimSpace(column) == "" {
		column = DefaultColumn
	}

	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty file")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, cell := range header {
		header[i] = cleanCell(cell)
	}

	idx, err := resolveColumn(header, column)
	if err != nil {
		return nil, err
	}

	var answers []string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if idx >= len(row) {
			continue
		}
		if value := cleanCell(row[idx]); value != "" {
			answers = append(answers, value)
		}
	}

	return answers, nil
}

func resolveColumn(header []string, column string) (int, error) {
	trimmed := strings.TrimSpace(column)
	for i, col := range header {
		if col == trimmed {
			return i, nil
		}
	}
	for i, col := range header {
		if strings.EqualFold(col, trimmed) {
			return i, nil
		}
	}
	if strings.HasPrefix(trimmed, "#") {
		idx, err := parseColumnIndex(trimmed)
		if err != nil {
			return -1, err
		}
		if idx >= len(header) {
			return -1, fmt.Errorf("column index %s is out of range", trimmed)
		}
		return idx, nil
	}
	return -1, fmt.Errorf("column %q not found in header %v", column, header)
}

func parseColumnIndex(token string) (int, error) {
	idx, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(token, "#")))
	if err != nil {
		return -1, fmt.Errorf("invalid column index %q", token)
	}
	if idx <= 0 {
		return -1, fmt.Errorf("column indices are 1-based: %q", token)
	}
	return idx - 1, nil
}

func cleanCell(v string) string {
	v = strings.TrimPrefix(v, "\ufeff")
	return strings.TrimSpace(v)
}
