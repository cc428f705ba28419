package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ropl-btc/project-tasks/internal/model"
)

func TestWrite(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	tasks := []model.Task{
		{ID: "a", Text: "buy milk", Status: model.StatusNotStarted, Priority: model.PriorityLow, Order: 0, CreatedAt: created},
		{ID: "b", Text: "call mom", Status: model.StatusCompleted, Priority: model.PriorityUrgent, Order: 1},
	}
	notes := []model.Note{
		{ID: "n", Content: "<b>Groceries</b>\nmilk, eggs", CreatedAt: created},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, tasks, notes))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{TasksSheet, NotesSheet}, f.GetSheetList())

	rows, err := f.GetRows(TasksSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Order", "Task", "Status", "Priority", "Created", "Updated"}, rows[0])
	assert.Equal(t, []string{"0", "buy milk", "not-started", "low", "2024-03-01T09:30:00Z"}, rows[1])
	assert.Equal(t, []string{"1", "call mom", "completed", "urgent"}, rows[2])

	rows, err = f.GetRows(NotesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Groceries", rows[1][0])
	assert.Equal(t, "<b>Groceries</b>\nmilk, eggs", rows[1][1])
}

func TestWrite_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(TasksSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
