package model

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

type Note struct {
	ID        string    `json:"id"`
	Owner     string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const emptyNotePreview = "Empty note..."

var markupTag = regexp.MustCompile(`<[^>]*>`)

// PreviewText returns the first non-blank line of the note with markup removed.
func PreviewText(content string) string {
	plain := markupTag.ReplaceAllString(content, "")
	for _, line := range strings.Split(plain, "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return emptyNotePreview
}

func Truncate(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	if max <= 0 {
		return ""
	}
	runes := []rune(text)
	return string(runes[:max-1]) + "…"
}
