package model

import (
	"fmt"
	"sort"
	"time"
)

type Status string

const (
	StatusNotStarted Status = "not-started"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

var statusOrder = []Status{StatusNotStarted, StatusInProgress, StatusCompleted}

// Value is the position of s in the not-started -> in-progress -> completed cycle.
func (s Status) Value() int {
	for i, st := range statusOrder {
		if st == s {
			return i
		}
	}
	return -1
}

func (s Status) Valid() bool { return s.Value() >= 0 }

// NextStatus wraps completed back to not-started.
func NextStatus(s Status) Status {
	i := s.Value()
	if i < 0 {
		return StatusNotStarted
	}
	return statusOrder[(i+1)%len(statusOrder)]
}

// PreviousStatus wraps not-started back to completed.
func PreviousStatus(s Status) Status {
	i := s.Value()
	if i < 0 {
		return StatusNotStarted
	}
	return statusOrder[(i-1+len(statusOrder))%len(statusOrder)]
}

func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", v)
	}
	return s, nil
}

type Priority string

const (
	PriorityNone   Priority = "none"
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var priorityValues = map[Priority]int{
	PriorityUrgent: 4,
	PriorityHigh:   3,
	PriorityMedium: 2,
	PriorityLow:    1,
	PriorityNone:   0,
}

// Value is the ranking weight, urgent=4 down to none=0. Unknown priorities rank as none.
func (p Priority) Value() int {
	return priorityValues[p]
}

func (p Priority) Valid() bool {
	_, ok := priorityValues[p]
	return ok
}

// ParsePriority treats an empty string as none.
func ParsePriority(v string) (Priority, error) {
	if v == "" {
		return PriorityNone, nil
	}
	p := Priority(v)
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q", v)
	}
	return p, nil
}

type Task struct {
	ID        string    `json:"id"`
	Owner     string    `json:"user_id"`
	Text      string    `json:"text"`
	Status    Status    `json:"status"`
	Priority  Priority  `json:"priority"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskPatch carries the fields of a partial update. Nil fields are left alone.
type TaskPatch struct {
	Text     *string   `json:"text,omitempty"`
	Status   *Status   `json:"status,omitempty"`
	Priority *Priority `json:"priority,omitempty"`
	Order    *int      `json:"order,omitempty"`
}

func (p TaskPatch) Empty() bool {
	return p.Text == nil && p.Status == nil && p.Priority == nil && p.Order == nil
}

func (p TaskPatch) Apply(t Task) Task {
	if p.Text != nil {
		t.Text = *p.Text
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Order != nil {
		t.Order = *p.Order
	}
	return t
}

func (p TaskPatch) Validate() error {
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("unknown status %q", *p.Status)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return fmt.Errorf("unknown priority %q", *p.Priority)
	}
	if p.Order != nil && *p.Order < 0 {
		return fmt.Errorf("negative order %d", *p.Order)
	}
	return nil
}

// OrderChange is a single "set order for id" command.
type OrderChange struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
}

// ExtractedTask is one item read off a photographed list.
type ExtractedTask struct {
	Title    string   `json:"title"`
	Priority Priority `json:"priority"`
}

type SortType string

const (
	SortManual   SortType = "manual"
	SortPriority SortType = "priority"
	SortStatus   SortType = "status"
)

func ParseSortType(v string) (SortType, error) {
	switch SortType(v) {
	case "", SortManual:
		return SortManual, nil
	case SortPriority, SortStatus:
		return SortType(v), nil
	}
	return "", fmt.Errorf("unknown sort %q", v)
}

// SortTasks returns a sorted copy. The sort is stable, so equal keys keep their input order.
func SortTasks(tasks []Task, by SortType) []Task {
	out := make([]Task, len(tasks))
	copy(out, tasks)

	var less func(a, b Task) bool
	switch by {
	case SortPriority:
		less = func(a, b Task) bool { return a.Priority.Value() > b.Priority.Value() }
	case SortStatus:
		less = func(a, b Task) bool { return a.Status.Value() < b.Status.Value() }
	default:
		less = func(a, b Task) bool { return a.Order < b.Order }
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// VisibleTasks hides completed tasks unless showCompleted is set.
func VisibleTasks(tasks []Task, showCompleted bool) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if !showCompleted && t.Status == StatusCompleted {
			continue
		}
		out = append(out, t)
	}
	return out
}
