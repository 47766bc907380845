// Package wordcsv parses correction word-lists from CSV text.
//
// The expected format is UTF-8 comma-separated text whose first row is a
// header (content ignored beyond column count) and whose subsequent rows
// carry an (incorrect, correct) pair in the first two columns.
package wordcsv

import (
	"encoding/csv"
	"fmt"
	"strings"

	"transcriptcleaner/pkg/domain"
)

// Parse extracts word pairs in row order. The header row is discarded and
// malformed rows (fewer than two columns, or either of the first two cells
// empty after trimming) are skipped silently; Validate reports them.
func Parse(raw string) []domain.WordPair {
	records, err := readAll(raw)
	if err != nil || len(records) == 0 {
		return nil
	}
	pairs := make([]domain.WordPair, 0, len(records)-1)
	for _, row := range records[1:] {
		if len(row) < 2 {
			continue
		}
		incorrect := strings.TrimSpace(row[0])
		correct := strings.TrimSpace(row[1])
		if incorrect == "" || correct == "" {
			continue
		}
		pairs = append(pairs, domain.WordPair{Incorrect: incorrect, Correct: correct})
	}
	return pairs
}

// Count returns the number of well-formed pairs in the CSV text.
func Count(raw string) int {
	return len(Parse(raw))
}

// Validate checks the CSV text and returns every problem found rather than
// stopping at the first. Row numbers are 1-based and count the header as
// row 1, so the first data row is row 2. A structural read failure yields a
// single generic entry.
func Validate(raw string) []string {
	records, err := readAll(raw)
	if err != nil {
		return []string{fmt.Sprintf("CSV parsing error: %v", err)}
	}

	var errs []string
	if len(records) == 0 || len(records[0]) < 2 {
		errs = append(errs, "CSV must have at least 2 columns")
	}
	if len(records) == 0 {
		errs = append(errs, "CSV must contain at least one data row")
		return errs
	}
	validRows := 0
	for i, row := range records[1:] {
		rowNum := i + 2
		if len(row) < 2 {
			errs = append(errs, fmt.Sprintf("Row %d: Must have at least 2 columns", rowNum))
			continue
		}
		if strings.TrimSpace(row[0]) == "" || strings.TrimSpace(row[1]) == "" {
			errs = append(errs, fmt.Sprintf("Row %d: Both columns must have values", rowNum))
			continue
		}
		validRows++
	}
	if validRows == 0 {
		errs = append(errs, "CSV must contain at least one data row")
	}
	return errs
}

func readAll(raw string) ([][]string, error) {
	reader := csv.NewReader(strings.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader.ReadAll()
}
