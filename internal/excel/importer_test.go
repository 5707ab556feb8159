package excel

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/example/inquizitive/internal/database"
	"github.com/example/inquizitive/pkg/logger"
	"github.com/example/inquizitive/pkg/models"
)

var importTime = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

func newTestImporter(t *testing.T) (*Importer, *sqlx.DB) {
	t.Helper()
	db, err := database.Open("sqlite3", database.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	im := NewImporter(db, logger.NewNop())
	im.now = func() time.Time { return importTime }
	return im, db
}

func writeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", axis, &r))
	}
	path := filepath.Join(t.TempDir(), "questions.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestImportExcel(t *testing.T) {
	ctx := context.Background()
	im, db := newTestImporter(t)

	path := writeWorkbook(t, [][]interface{}{
		{"Topic", "Question", "Answer", "Explanation", "Options", "Tags"},
		{"capitals", "Capital of France?", "Paris", "Seine", "Paris | Lyon | Nice", "geo, europe"},
		{"capitals", "Capital of Peru?", "Lima", "", "", ""},
		{"", "No topic?", "x", "", "", ""},
		{"capitals", "Capital of France?", "Paris", "", "", ""},
		{},
		{"capitals", "No answer", "", "", "", ""},
	})

	config := DefaultImportConfig()
	config.FilePath = path
	config.Subject = "Geography"

	result, err := im.Import(ctx, 1, config)
	require.NoError(t, err)
	assert.Equal(t, 5, result.TotalProcessed)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Skipped)
	assert.Len(t, result.Errors, 2)

	items, err := database.NewReviewItemRepository(db).ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 2)

	var france models.ReviewItem
	for _, it := range items {
		if it.Question.Q == "Capital of France?" {
			france = it
		}
	}
	assert.Equal(t, "Geography", france.Subject)
	assert.Equal(t, models.MultipleChoice, france.Question.Type)
	assert.Equal(t, []string{"Paris", "Lyon", "Nice"}, france.Question.Options)
	assert.Equal(t, models.Tags{"geo", "europe"}, france.Tags)
	assert.Equal(t, 0, france.SRSLevel)
	assert.Equal(t, 1, france.IntervalDays)
	assert.True(t, france.NextReviewAt.Equal(importTime))

	// Importing the same file again creates nothing new
	again, err := im.Import(ctx, 1, config)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Created)
	assert.Equal(t, 3, again.Skipped)
}

func TestImportCSV(t *testing.T) {
	ctx := context.Background()
	im, db := newTestImporter(t)

	path := filepath.Join(t.TempDir(), "questions.csv")
	content := "topic,question,answer\n" +
		"cells,What is ATP?,energy\n" +
		"cells,\"What is a cell, really?\",unit of life\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config := DefaultImportConfig()
	config.FilePath = path
	config.Subject = ""

	result, err := im.Import(ctx, 3, config)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Empty(t, result.Errors)

	items, err := database.NewReviewItemRepository(db).ListByUser(ctx, 3)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		assert.Equal(t, models.DefaultSubject, it.Subject)
		assert.Equal(t, models.OpenEnded, it.Question.Type)
	}
}

func TestImportConfigColumns(t *testing.T) {
	cols, err := DefaultImportConfig().columns()
	require.NoError(t, err)
	assert.Equal(t, columnIndexes{topic: 0, question: 1, answer: 2, explanation: 3, options: 4, tags: 5}, cols)

	config := DefaultImportConfig()
	config.OptionsColumn = ""
	config.TagsColumn = "AA"
	cols, err = config.columns()
	require.NoError(t, err)
	assert.Equal(t, -1, cols.options)
	assert.Equal(t, 26, cols.tags)

	config.AnswerColumn = ""
	_, err = config.columns()
	assert.Error(t, err)

	config = DefaultImportConfig()
	config.TopicColumn = "1A"
	_, err = config.columns()
	assert.Error(t, err)
}

func TestImportMissingFile(t *testing.T) {
	im, _ := newTestImporter(t)
	config := DefaultImportConfig()
	config.FilePath = filepath.Join(t.TempDir(), "nope.xlsx")
	_, err := im.Import(context.Background(), 1, config)
	assert.Error(t, err)
}
