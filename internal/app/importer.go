package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"mcq-queue-service/internal/domain"
)

// ImportResult summarizes a spreadsheet import.
type ImportResult struct {
	TotalRows int           `json:"total_rows"`
	Imported  []int64       `json:"imported"`
	Errors    []ImportError `json:"errors,omitempty"`
}

// ImportError points at a rejected spreadsheet row.
type ImportError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Importer enqueues MCQs from the first sheet of an .xlsx workbook. The header row must contain a
// "question" column, one or more "option..." columns and a "correct" column holding the 1-based
// option column number or the option text. Blank option cells are dropped. An "uploader" column
// is optional.
type Importer struct {
	admission *AdmissionService
	logger    *zap.Logger
}

func NewImporter(admission *AdmissionService, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{admission: admission, logger: logger}
}

func (im *Importer) ImportSpreadsheet(ctx context.Context, r io.Reader, uploader string) (ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return ImportResult{}, domain.NewValidationError("file", "not a readable xlsx workbook", nil)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ImportResult{}, domain.NewValidationError("file", "workbook has no sheets", nil)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return ImportResult{}, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) < 2 {
		return ImportResult{}, domain.NewValidationError("file", "needs a header row and at least one data row", len(rows))
	}

	layout, err := parseHeader(rows[0])
	if err != nil {
		return ImportResult{}, err
	}

	result := ImportResult{TotalRows: len(rows) - 1}
	for i, row := range rows[1:] {
		rowNum := i + 2
		if blankRow(row) {
			result.TotalRows--
			continue
		}
		sub, err := layout.submission(row, uploader)
		if err == nil {
			var item domain.MCQ
			item, err = im.admission.Submit(ctx, sub)
			if err == nil {
				result.Imported = append(result.Imported, item.ID)
				continue
			}
		}
		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			// Persistence failures stop the import; rows already queued stay queued.
			return result, err
		}
		result.Errors = append(result.Errors, ImportError{Row: rowNum, Field: ve.Field, Message: ve.Message})
	}

	im.logger.Info("spreadsheet import completed",
		zap.Int("total_rows", result.TotalRows),
		zap.Int("imported", len(result.Imported)),
		zap.Int("rejected", len(result.Errors)))
	return result, nil
}

type sheetLayout struct {
	question int
	options  []int
	correct  int
	uploader int
}

func parseHeader(header []string) (sheetLayout, error) {
	layout := sheetLayout{question: -1, correct: -1, uploader: -1}
	for i, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		switch {
		case name == "question":
			layout.question = i
		case strings.HasPrefix(name, "option"):
			layout.options = append(layout.options, i)
		case name == "correct" || name == "answer":
			layout.correct = i
		case name == "uploader":
			layout.uploader = i
		}
	}
	if layout.question < 0 {
		return layout, domain.NewValidationError("header", "missing question column", header)
	}
	if layout.correct < 0 {
		return layout, domain.NewValidationError("header", "missing correct column", header)
	}
	if len(layout.options) == 0 {
		return layout, domain.NewValidationError("header", "missing option columns", header)
	}
	return layout, nil
}

func (l sheetLayout) submission(row []string, uploader string) (domain.Submission, error) {
	sub := domain.Submission{Question: cell(row, l.question), Uploader: uploader}
	if l.uploader >= 0 {
		if v := cell(row, l.uploader); v != "" {
			sub.Uploader = v
		}
	}
	// kept maps an option column's position to its index once blank cells are dropped.
	kept := make([]int, len(l.options))
	for i, idx := range l.options {
		kept[i] = -1
		if v := cell(row, idx); v != "" {
			kept[i] = len(sub.Options)
			sub.Options = append(sub.Options, v)
		}
	}

	raw := cell(row, l.correct)
	if n, err := strconv.Atoi(raw); err == nil {
		// The number counts option columns, blank ones included.
		if n < 1 || n > len(kept) {
			sub.CorrectIndex = n - 1
			return sub, nil
		}
		if kept[n-1] < 0 {
			return sub, domain.NewValidationError("correct_index", "points at a blank option", n)
		}
		sub.CorrectIndex = kept[n-1]
		return sub, nil
	}
	for i, opt := range sub.Options {
		if raw != "" && strings.EqualFold(opt, raw) {
			sub.CorrectIndex = i
			return sub, nil
		}
	}
	return sub, domain.NewValidationError("correct_index", "must be an option number or option text", raw)
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
