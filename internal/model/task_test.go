package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCycling(t *testing.T) {
	tests := []struct {
		name     string
		current  Status
		wantNext Status
		wantPrev Status
	}{
		{"not started", StatusNotStarted, StatusInProgress, StatusCompleted},
		{"in progress", StatusInProgress, StatusCompleted, StatusNotStarted},
		{"completed", StatusCompleted, StatusNotStarted, StatusInProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantNext, NextStatus(tt.current))
			assert.Equal(t, tt.wantPrev, PreviousStatus(tt.current))
		})
	}
}

func TestPriorityValue(t *testing.T) {
	assert.Equal(t, 4, PriorityUrgent.Value())
	assert.Equal(t, 3, PriorityHigh.Value())
	assert.Equal(t, 2, PriorityMedium.Value())
	assert.Equal(t, 1, PriorityLow.Value())
	assert.Equal(t, 0, PriorityNone.Value())
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority("")
	require.NoError(t, err)
	assert.Equal(t, PriorityNone, p)

	p, err = ParsePriority("urgent")
	require.NoError(t, err)
	assert.Equal(t, PriorityUrgent, p)

	_, err = ParsePriority("critical")
	assert.Error(t, err)
}

func TestSortTasks_PriorityIsStable(t *testing.T) {
	tasks := []Task{
		{ID: "a", Priority: PriorityLow, Order: 0},
		{ID: "b", Priority: PriorityUrgent, Order: 1},
		{ID: "c", Priority: PriorityNone, Order: 2},
		{ID: "d", Priority: PriorityLow, Order: 3},
		{ID: "e", Priority: PriorityHigh, Order: 4},
		{ID: "f", Priority: PriorityMedium, Order: 5},
		{ID: "g", Priority: PriorityUrgent, Order: 6},
	}

	sorted := SortTasks(tasks, SortPriority)

	ids := make([]string, 0, len(sorted))
	for _, task := range sorted {
		ids = append(ids, task.ID)
	}
	assert.Equal(t, []string{"b", "g", "e", "f", "a", "d", "c"}, ids)
	assert.Equal(t, "a", tasks[0].ID, "input must not be reordered")
}

func TestSortTasks_StatusAndManual(t *testing.T) {
	tasks := []Task{
		{ID: "a", Status: StatusCompleted, Order: 2},
		{ID: "b", Status: StatusNotStarted, Order: 0},
		{ID: "c", Status: StatusInProgress, Order: 1},
	}

	byStatus := SortTasks(tasks, SortStatus)
	assert.Equal(t, "b", byStatus[0].ID)
	assert.Equal(t, "c", byStatus[1].ID)
	assert.Equal(t, "a", byStatus[2].ID)

	manual := SortTasks(tasks, SortManual)
	for i, task := range manual {
		assert.Equal(t, i, task.Order)
	}
}

func TestVisibleTasks(t *testing.T) {
	tasks := []Task{
		{ID: "a", Status: StatusCompleted},
		{ID: "b", Status: StatusNotStarted},
	}

	assert.Len(t, VisibleTasks(tasks, true), 2)
	visible := VisibleTasks(tasks, false)
	require.Len(t, visible, 1)
	assert.Equal(t, "b", visible[0].ID)
}

func TestTaskPatch(t *testing.T) {
	text := "buy milk"
	bad := Status("done")
	patch := TaskPatch{Text: &text}

	assert.False(t, patch.Empty())
	assert.True(t, TaskPatch{}.Empty())
	assert.NoError(t, patch.Validate())
	assert.Error(t, TaskPatch{Status: &bad}.Validate())

	got := patch.Apply(Task{ID: "1", Text: "old", Priority: PriorityHigh})
	assert.Equal(t, "buy milk", got.Text)
	assert.Equal(t, PriorityHigh, got.Priority)
}

func TestPreviewText(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"markup stripped", "<p>Groceries</p>\n<p>eggs</p>", "Groceries"},
		{"leading blank lines", "\n   \nsecond", "second"},
		{"empty", "<br>", "Empty note..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PreviewText(tt.content))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcd…", Truncate("abcdefgh", 5))
}
