// Package vision turns a photo of a handwritten list into tasks.
package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ropl-btc/project-tasks/internal/model"
)

// ErrMalformedResponse means the model answered with something that is not a task array.
var ErrMalformedResponse = errors.New("malformed extraction response")

// Extractor reads tasks off a base64 encoded JPEG.
type Extractor interface {
	Extract(ctx context.Context, imageBase64 string) ([]model.ExtractedTask, error)
}

const prompt = `Analyze this handwritten todo list and extract active tasks. Rules:
1. Ignore any titles (like "To Do", "Tasks", "List", etc)
2. Skip any crossed-out or strikethrough items
3. Extract only actionable tasks
4. Set priority based on visual cues (underlining = high, exclamation marks = urgent)

Respond with ONLY a JSON array. Format: [{"title":"buy milk","priority":"low"}]. Priority levels: none, low, medium, high, urgent.`

// ParseTasks decodes the model's answer. Markdown code fences are stripped, unknown priorities
// become none and items without a title are dropped.
func ParseTasks(text string) ([]model.ExtractedTask, error) {
	cleaned := stripFences(text)

	var raw []struct {
		Title    string `json:"title"`
		Priority string `json:"priority"`
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	tasks := make([]model.ExtractedTask, 0, len(raw))
	for _, item := range raw {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		priority, err := model.ParsePriority(strings.ToLower(strings.TrimSpace(item.Priority)))
		if err != nil {
			priority = model.PriorityNone
		}
		tasks = append(tasks, model.ExtractedTask{Title: title, Priority: priority})
	}
	return tasks, nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	// Drop the opening fence line, including any language tag.
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	} else {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
