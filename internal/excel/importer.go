package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/example/inquizitive/internal/database"
	sr "github.com/example/inquizitive/internal/spaced_repetition"
	"github.com/example/inquizitive/pkg/logger"
	"github.com/example/inquizitive/pkg/models"
)

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath          string // Path to the Excel or CSV file
	TopicColumn       string // Column with the topic
	QuestionColumn    string // Column with the question text
	AnswerColumn      string // Column with the answer
	ExplanationColumn string // Column with the explanation
	OptionsColumn     string // Column with "|" separated options
	TagsColumn        string // Column with "," separated tags
	SheetName         string // Name of the sheet to import; empty means the first one
	StartRow          int    // The row to start importing from (1-based index)
	Subject           string // Workspace the imported items belong to
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		TopicColumn:       "A",
		QuestionColumn:    "B",
		AnswerColumn:      "C",
		ExplanationColumn: "D",
		OptionsColumn:     "E",
		TagsColumn:        "F",
		StartRow:          2, // By default, start from the second row (skip header)
		Subject:           models.DefaultSubject,
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Created        int
	Skipped        int
	Errors         []string
}

// Importer turns spreadsheet rows into review items
type Importer struct {
	db  *sqlx.DB
	log *logger.Logger
	now func() time.Time
}

// NewImporter creates an importer writing to db
func NewImporter(db *sqlx.DB, log *logger.Logger) *Importer {
	return &Importer{db: db, log: log, now: time.Now}
}

// Import reads questions from an Excel or CSV file into userID's review queue
func (im *Importer) Import(ctx context.Context, userID int64, config ImportConfig) (*ImportResult, error) {
	columns, err := config.columns()
	if err != nil {
		return nil, err
	}

	var rows [][]string
	if strings.ToLower(filepath.Ext(config.FilePath)) == ".csv" {
		rows, err = readCSV(config.FilePath)
	} else {
		rows, err = readExcel(config.FilePath, config.SheetName)
	}
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Errors: make([]string, 0)}
	err = database.WithTx(ctx, im.db, func(tx *sqlx.Tx) error {
		items := database.NewReviewItemRepository(tx)

		existing, err := items.ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		seen := make(map[string]bool, len(existing))
		for _, it := range existing {
			seen[it.MatchKey()] = true
		}

		for i, row := range rows {
			// Skip header rows
			if i < config.StartRow-1 || isBlank(row) {
				continue
			}
			result.TotalProcessed++

			item, err := im.rowToItem(row, columns, userID, config.Subject)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", i+1, err))
				continue
			}
			if seen[item.MatchKey()] {
				result.Skipped++
				continue
			}
			if err := items.Create(ctx, item); err != nil {
				return errors.Wrapf(err, "row %d", i+1)
			}
			seen[item.MatchKey()] = true
			result.Created++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	im.log.Info("questions imported",
		"user_id", userID,
		"file", config.FilePath,
		"processed", result.TotalProcessed,
		"created", result.Created,
		"skipped", result.Skipped,
		"errors", len(result.Errors),
	)
	return result, nil
}

type columnIndexes struct {
	topic, question, answer, explanation, options, tags int
}

func (c ImportConfig) columns() (columnIndexes, error) {
	var idx columnIndexes
	for _, col := range []struct {
		name     string
		dst      *int
		required bool
	}{
		{c.TopicColumn, &idx.topic, true},
		{c.QuestionColumn, &idx.question, true},
		{c.AnswerColumn, &idx.answer, true},
		{c.ExplanationColumn, &idx.explanation, false},
		{c.OptionsColumn, &idx.options, false},
		{c.TagsColumn, &idx.tags, false},
	} {
		if col.name == "" {
			if col.required {
				return idx, errors.New("topic, question and answer columns are required")
			}
			*col.dst = -1
			continue
		}
		n, err := excelize.ColumnNameToNumber(col.name)
		if err != nil {
			return idx, errors.Wrapf(err, "invalid column %q", col.name)
		}
		*col.dst = n - 1
	}
	return idx, nil
}

func (im *Importer) rowToItem(row []string, cols columnIndexes, userID int64, subject string) (*models.ReviewItem, error) {
	topic := cell(row, cols.topic)
	q := cell(row, cols.question)
	answer := cell(row, cols.answer)

	if topic == "" {
		return nil, errors.New("topic cannot be empty")
	}
	if q == "" {
		return nil, errors.New("question cannot be empty")
	}
	if answer == "" {
		return nil, errors.New("answer cannot be empty")
	}

	question := models.Question{
		Q:           q,
		Answer:      answer,
		Explanation: cell(row, cols.explanation),
		Type:        models.OpenEnded,
	}
	if options := splitList(cell(row, cols.options), "|"); len(options) > 0 {
		question.Options = options
		question.Type = models.MultipleChoice
	}

	now := im.now()
	initial := sr.NewState()
	return &models.ReviewItem{
		UserID:       userID,
		Subject:      subject,
		Topic:        topic,
		Question:     question,
		SRSLevel:     initial.Repetition,
		EaseFactor:   initial.EaseFactor,
		IntervalDays: initial.Interval,
		NextReviewAt: now,
		CreatedAt:    now,
		Tags:         models.Tags(splitList(cell(row, cols.tags), ",")).Merge(nil),
	}, nil
}

// readExcel returns every row of the sheet
func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open Excel file")
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get rows of sheet %q", sheet)
	}
	return rows, nil
}

// readCSV returns every record of the file
func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open CSV file")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "error reading CSV")
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func splitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
