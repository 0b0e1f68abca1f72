package chat

import (
	"github.com/vampirenirmal/lessonflow/internal/lesson"
)

// Step names where the conversation currently is. Every handler returns a
// step consistent with what it just did.
type Step string

const (
	StepPlanning        Step = "planning"
	StepDataCollection  Step = "data_collection"
	StepPlanEditing     Step = "plan_editing"
	StepSlideGeneration Step = "slide_generation"
	StepBulkGeneration  Step = "bulk_generation"
)

// ConversationState is threaded through every turn. Handlers never mutate it
// in place; they return a new copy. It belongs to one session and is
// discarded when the session ends.
type ConversationState struct {
	Step      Step   `json:"step"`
	PlanText  string `json:"plan_text,omitempty"`
	Topic     string `json:"topic,omitempty"`
	TargetAge string `json:"target_age,omitempty"`
	Language  string `json:"language,omitempty"`

	// Populated only while Step == data_collection.
	PendingIntent      string   `json:"pending_intent,omitempty"`
	OriginalMessage    string   `json:"original_message,omitempty"`
	MissingSlots       []string `json:"missing_slots,omitempty"`
	ClarifyingQuestion string   `json:"clarifying_question,omitempty"`
	ClarifyTurns       int      `json:"clarify_turns,omitempty"`

	Lesson           *lesson.Lesson           `json:"lesson,omitempty"`
	ItemDescriptions []lesson.ItemDescription `json:"item_descriptions,omitempty"`
	ItemProgress     []lesson.ItemProgress    `json:"item_progress,omitempty"`

	// Replaced wholesale by the compressor, never hand-edited.
	ContextSummary string `json:"context_summary,omitempty"`
}

// NewState creates the state for a fresh session.
func NewState() ConversationState {
	return ConversationState{Step: StepPlanning, Language: "en"}
}

// Clone returns a deep copy so a handler can build its new state without
// touching the caller's.
func (s ConversationState) Clone() ConversationState {
	out := s

	if s.MissingSlots != nil {
		out.MissingSlots = append([]string(nil), s.MissingSlots...)
	}
	if s.ItemDescriptions != nil {
		out.ItemDescriptions = append([]lesson.ItemDescription(nil), s.ItemDescriptions...)
	}
	if s.ItemProgress != nil {
		out.ItemProgress = append([]lesson.ItemProgress(nil), s.ItemProgress...)
	}
	if s.Lesson != nil {
		copied := *s.Lesson
		copied.Items = append([]lesson.GeneratedItem(nil), s.Lesson.Items...)
		out.Lesson = &copied
	}

	return out
}

// clearPending drops the data_collection bookkeeping once slot filling ends,
// whichever way it ends.
func (s *ConversationState) clearPending() {
	s.PendingIntent = ""
	s.OriginalMessage = ""
	s.MissingSlots = nil
	s.ClarifyingQuestion = ""
	s.ClarifyTurns = 0
}

// Action is a suggested follow-up the caller may present to the user.
type Action struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// Response is one finished conversational turn. Clarifications and softened
// failures are successful responses; Success is false only when something
// went wrong and could not be rewritten.
type Response struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	State   ConversationState `json:"state"`
	Actions []Action          `json:"actions,omitempty"`
	Err     error             `json:"-"`
}
