package app_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"mcq-queue-service/internal/app"
	"mcq-queue-service/internal/domain"
)

func buildWorkbook(t *testing.T, rows ...[]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", axis, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestImportSpreadsheet(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	resumer := &countingResumer{}
	importer := app.NewImporter(app.NewAdmissionService(store, resumer, nil), nil)

	book := buildWorkbook(t,
		[]interface{}{"Question", "Option A", "Option B", "Option C", "Correct", "Uploader"},
		[]interface{}{"2+2=?", "3", "4", "5", 2, ""},
		[]interface{}{"Largest planet?", "Mars", "Jupiter", "", "jupiter", "bob"},
		[]interface{}{},
		[]interface{}{"Broken", "only", "", "", 1, ""},
		[]interface{}{"Bad answer", "a", "b", "", "zzz", ""},
	)

	result, err := importer.ImportSpreadsheet(ctx, book, "sheet-admin")
	require.NoError(t, err)
	assert.Equal(t, 4, result.TotalRows)
	assert.Equal(t, []int64{1, 2}, result.Imported)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 5, result.Errors[0].Row)
	assert.Equal(t, "options", result.Errors[0].Field)
	assert.Equal(t, 6, result.Errors[1].Row)
	assert.Equal(t, "correct_index", result.Errors[1].Field)
	assert.Equal(t, 2, resumer.calls)

	first, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, first.CorrectIndex)
	assert.Equal(t, "sheet-admin", first.Uploader)

	second, err := store.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mars", "Jupiter"}, second.Options)
	assert.Equal(t, 1, second.CorrectIndex)
	assert.Equal(t, "bob", second.Uploader)
}

func TestImportSpreadsheetNumbersOptionColumnsAcrossBlanks(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	importer := app.NewImporter(app.NewAdmissionService(store, nil, nil), nil)

	book := buildWorkbook(t,
		[]interface{}{"Question", "Option A", "Option B", "Option C", "Option D", "Correct"},
		[]interface{}{"Pick C", "A", "", "C", "D", 3},
		[]interface{}{"Blank answer", "A", "", "C", "D", 2},
		[]interface{}{"Out of range", "A", "B", "", "", 5},
	)

	result, err := importer.ImportSpreadsheet(ctx, book, "")
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, result.Imported)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 3, result.Errors[0].Row)
	assert.Equal(t, "correct_index", result.Errors[0].Field)
	assert.Equal(t, 4, result.Errors[1].Row)
	assert.Equal(t, "correct_index", result.Errors[1].Field)

	item, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "D"}, item.Options)
	assert.Equal(t, "C", item.Options[item.CorrectIndex])
}

func TestImportSpreadsheetRejectsBadInput(t *testing.T) {
	store, _ := newTestStore()
	importer := app.NewImporter(app.NewAdmissionService(store, nil, nil), nil)

	_, err := importer.ImportSpreadsheet(context.Background(), bytes.NewBufferString("not a workbook"), "")
	assert.True(t, domain.IsValidation(err))

	book := buildWorkbook(t,
		[]interface{}{"Prompt", "Option A", "Option B", "Correct"},
		[]interface{}{"Q", "a", "b", 1},
	)
	_, err = importer.ImportSpreadsheet(context.Background(), book, "")
	assert.True(t, domain.IsValidation(err))

	book = buildWorkbook(t, []interface{}{"Question", "Option A", "Correct"})
	_, err = importer.ImportSpreadsheet(context.Background(), book, "")
	assert.True(t, domain.IsValidation(err))
}
