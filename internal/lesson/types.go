package lesson

import (
	"time"

	"github.com/google/uuid"
)

// ItemStatus tracks the lifecycle of a single slide generation task.
// Transitions are monotonic: pending -> generating -> completed|error.
type ItemStatus string

const (
	StatusPending    ItemStatus = "pending"
	StatusGenerating ItemStatus = "generating"
	StatusCompleted  ItemStatus = "completed"
	StatusError      ItemStatus = "error"
)

// ItemDescription describes one slide to generate. Immutable once extracted
// from an approved plan.
type ItemDescription struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Kind    string `json:"kind"`
	Goal    string `json:"goal"`
	Content string `json:"content"`
}

// ItemProgress reports the state of one generation task. Only the engine's
// aggregator writes to it.
type ItemProgress struct {
	Index   int        `json:"index"`
	Title   string     `json:"title"`
	Status  ItemStatus `json:"status"`
	Percent int        `json:"percent"`
	Error   string     `json:"error,omitempty"`
}

// GeneratedItem is one completed slide. Created exactly once per successful
// generation task; edits produce a new version rather than patching in place.
type GeneratedItem struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Kind            string     `json:"kind"`
	RenderedContent string     `json:"rendered_content"`
	Status          ItemStatus `json:"status"`
}

// Lesson is the aggregate the orchestration layer appends completed items to.
type Lesson struct {
	ID    string          `json:"id"`
	Title string          `json:"title"`
	Items []GeneratedItem `json:"items"`
}

// NewLesson creates an empty lesson with a fresh ID.
func NewLesson(title string) *Lesson {
	return &Lesson{
		ID:    uuid.New().String(),
		Title: title,
	}
}

// NewGeneratedItem builds a completed item from a finished generation task.
func NewGeneratedItem(desc ItemDescription, rendered string) GeneratedItem {
	return GeneratedItem{
		ID:              uuid.New().String(),
		Title:           desc.Title,
		Kind:            desc.Kind,
		RenderedContent: rendered,
		Status:          StatusCompleted,
	}
}

// Stats summarizes a finished generation batch. Completed+Failed always
// equals Total once the batch settles.
type Stats struct {
	Total     int           `json:"total"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"elapsed"`
}
