package export

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/examgen/internal/i18n"
	"github.com/pavelanni/examgen/internal/model"
)

var xlsxColumns = []string{
	"question_id", "title", "subject_area", "difficulty", "points", "scenario", "question",
	"choices", "correct_answer", "alternative_answers", "model_answer", "grading_criteria",
	"explanation", "visual_type", "visual_image", "generated_at",
}

// WriteXLSX writes one sheet per question type that has questions. Diagram
// images are replaced by a placeholder that points to the PDF.
func WriteXLSX(ctx context.Context, w io.Writer, res model.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DCE6F1"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	wrap, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}})
	if err != nil {
		return fmt.Errorf("create cell style: %w", err)
	}
	placeholder := i18n.T(ctx, "XLSXVisualPlaceholder")

	const defaultSheet = "Sheet1"
	used := false
	for _, qt := range model.QuestionTypes {
		var rows []model.Question
		for _, q := range res.Questions {
			if q.Type == qt {
				rows = append(rows, q)
			}
		}
		if len(rows) == 0 {
			continue
		}
		sheet := sheetName(TypeLabel(ctx, qt))
		if !used {
			if err := f.SetSheetName(defaultSheet, sheet); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
			used = true
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("add sheet %s: %w", sheet, err)
		}
		if err := writeSheet(f, sheet, rows, placeholder, header, wrap); err != nil {
			return err
		}
	}
	if !used {
		// Keep the file valid and self-describing when there is nothing to list.
		if err := writeSheet(f, defaultSheet, nil, placeholder, header, wrap); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, rows []model.Question, placeholder string, header, wrap int) error {
	hdr := make([]any, len(xlsxColumns))
	for i, c := range xlsxColumns {
		hdr[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(xlsxColumns), 1)
	if err := f.SetCellStyle(sheet, "A1", last, header); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	for i, q := range rows {
		visual := ""
		if q.HasVisual() {
			visual = placeholder
		}
		choices := make([]string, len(q.Choices))
		for j, c := range q.Choices {
			choices[j] = ChoiceMarker(j+1) + " " + c
		}
		row := []any{
			q.ID, q.Title, q.SubjectArea, string(q.Difficulty), q.Points, q.Scenario, q.Prompt,
			strings.Join(choices, "\n"), q.CorrectAnswer, strings.Join(q.AlternativeAnswers, ", "),
			q.ModelAnswer, strings.Join(q.GradingCriteria, "\n"), q.Explanation,
			string(q.VisualKind), visual, q.GeneratedAt.Format(time.RFC3339),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if len(rows) > 0 {
		end, _ := excelize.CoordinatesToCellName(len(xlsxColumns), len(rows)+1)
		if err := f.SetCellStyle(sheet, "A2", end, wrap); err != nil {
			return fmt.Errorf("style rows: %w", err)
		}
	}
	if err := f.SetColWidth(sheet, "B", "M", 30); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

// sheetName strips characters Excel rejects and enforces the 31-rune limit.
func sheetName(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, s)
	if r := []rune(s); len(r) > 31 {
		s = string(r[:31])
	}
	return s
}
