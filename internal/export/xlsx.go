// Package export renders an owner's tasks and notes as an XLSX workbook.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ropl-btc/project-tasks/internal/model"
)

const (
	TasksSheet = "Tasks"
	NotesSheet = "Notes"

	previewLength = 80
)

var (
	taskHeader = []any{"Order", "Task", "Status", "Priority", "Created", "Updated"}
	noteHeader = []any{"Preview", "Content", "Created", "Updated"}
)

// Write streams a workbook with one sheet for tasks (in the given order) and one for notes.
func Write(w io.Writer, tasks []model.Task, notes []model.Note) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TasksSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(NotesSheet); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	taskRows := make([][]any, 0, len(tasks))
	for _, t := range tasks {
		taskRows = append(taskRows, []any{
			t.Order, t.Text, string(t.Status), string(t.Priority), stamp(t.CreatedAt), stamp(t.UpdatedAt),
		})
	}
	if err := writeSheet(f, TasksSheet, bold, taskHeader, taskRows); err != nil {
		return err
	}

	noteRows := make([][]any, 0, len(notes))
	for _, n := range notes {
		noteRows = append(noteRows, []any{
			model.Truncate(model.PreviewText(n.Content), previewLength), n.Content, stamp(n.CreatedAt), stamp(n.UpdatedAt),
		})
	}
	if err := writeSheet(f, NotesSheet, bold, noteHeader, noteRows); err != nil {
		return err
	}

	return f.Write(w)
}

func writeSheet(f *excelize.File, sheet string, headerStyle int, header []any, rows [][]any) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to create stream writer for sheet %s: %w", sheet, err)
	}
	if err := sw.SetRow("A1", header, excelize.RowOpts{StyleID: headerStyle}); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	return sw.Flush()
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
