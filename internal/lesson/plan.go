package lesson

import (
	"regexp"
	"strings"
)

// numberedLine matches plan lines like "1. Title - goal" or "3) Title: goal".
var numberedLine = regexp.MustCompile(`^\s*(\d+)[.)]\s+(.+)$`)

// kindMarkers maps keywords found in a plan line to an item kind. The first
// match wins; lines without a marker default to "content".
var kindMarkers = []struct {
	keyword string
	kind    string
}{
	{"quiz", "quiz"},
	{"question", "quiz"},
	{"game", "game"},
	{"exercise", "exercise"},
	{"practice", "exercise"},
	{"activity", "exercise"},
	{"recap", "summary"},
	{"summary", "summary"},
	{"intro", "intro"},
	{"introduction", "intro"},
}

// ParsePlan extracts slide descriptions from an approved plan text. Numbered
// lines become items; the text after a "-" or ":" separator becomes the goal.
// Indexing is 1-based to match how users refer to slides.
func ParsePlan(planText string) []ItemDescription {
	var items []ItemDescription

	for _, line := range strings.Split(planText, "\n") {
		m := numberedLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		title, goal := splitTitleGoal(m[2])
		items = append(items, ItemDescription{
			Index:   len(items) + 1,
			Title:   title,
			Kind:    detectKind(m[2]),
			Goal:    goal,
			Content: strings.TrimSpace(m[2]),
		})
	}

	return items
}

// InitialProgress builds the progress slice for a batch. Entries are created
// once here and never added to afterward.
func InitialProgress(items []ItemDescription) []ItemProgress {
	progress := make([]ItemProgress, len(items))
	for i, item := range items {
		progress[i] = ItemProgress{
			Index:  item.Index,
			Title:  item.Title,
			Status: StatusPending,
		}
	}
	return progress
}

func splitTitleGoal(s string) (title, goal string) {
	for _, sep := range []string{" - ", " — ", ": "} {
		if idx := strings.Index(s, sep); idx > 0 {
			return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+len(sep):])
		}
	}
	return strings.TrimSpace(s), ""
}

func detectKind(s string) string {
	lower := strings.ToLower(s)
	for _, m := range kindMarkers {
		if strings.Contains(lower, m.keyword) {
			return m.kind
		}
	}
	return "content"
}
