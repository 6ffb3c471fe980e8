package excel

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/example/quizbot/internal/database"
	"github.com/xuri/excelize/v2"
)

// SubjectAdder stores one imported subject
type SubjectAdder interface {
	Add(ctx context.Context, subject string) error
}

// ImportConfig defines the import configuration
type ImportConfig struct {
	SubjectColumn string // Column with the subject name
	SheetName     string // Sheet to import, the first sheet when empty
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		SubjectColumn: "A",
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Created        int
	Skipped        int
	Errors         []string
}

// headerNames are first-row values treated as a column title
var headerNames = map[string]bool{
	"subject":  true,
	"subjects": true,
	"предмет":  true,
	"предметы": true,
}

// ImportSubjects reads subject names from an Excel or CSV upload
func ImportSubjects(ctx context.Context, r io.Reader, fileName string, config ImportConfig, adder SubjectAdder) (*ImportResult, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		rows, err = readCSV(r)
	case ".xlsx", ".xlsm":
		rows, err = readExcel(r, config.SheetName)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(fileName))
	}
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Errors: make([]string, 0)}
	col := columnToIndex(config.SubjectColumn)
	for i, row := range rows {
		var subject string
		if col < len(row) {
			subject = strings.ToLower(strings.TrimSpace(row[col]))
		}
		if i == 0 && headerNames[subject] {
			continue
		}
		if subject == "" {
			continue
		}

		result.TotalProcessed++
		err := adder.Add(ctx, subject)
		switch {
		case err == nil:
			result.Created++
		case errors.Is(err, database.ErrSubjectExists):
			result.Skipped++
		default:
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", i+1, err))
		}
	}
	return result, nil
}

// readExcel returns the rows of sheet, or of the first sheet
func readExcel(r io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}
	return rows, nil
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
