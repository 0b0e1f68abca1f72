package agent

import (
	"context"

	"github.com/vampirenirmal/lessonflow/internal/lesson"
)

// IntentResult is the classifier's structured verdict for one user message.
// It is transient and never persisted.
type IntentResult struct {
	Intent            string            `json:"intent"`
	Confidence        float64           `json:"confidence"`
	Parameters        map[string]string `json:"parameters"`
	Language          string            `json:"language"`
	IsDataSufficient  bool              `json:"is_data_sufficient"`
	MissingSlots      []string          `json:"missing_slots,omitempty"`
	SuggestedQuestion string            `json:"suggested_question,omitempty"`
}

// ClassifyHint carries the slice of conversation state the classifier may
// use. Kept flat so the collaborator boundary stays narrow.
type ClassifyHint struct {
	Step           string
	Topic          string
	TargetAge      string
	ContextSummary string
}

// IntentClassifier turns raw user text into a structured intent.
type IntentClassifier interface {
	Classify(ctx context.Context, text string, hint ClassifyHint) (IntentResult, error)
}

// ContentGenerator produces lesson plans and rendered slide content.
type ContentGenerator interface {
	GeneratePlan(ctx context.Context, topic, age, language, contextSummary string) (string, error)
	GenerateItem(ctx context.Context, desc lesson.ItemDescription, topic, age string) (string, error)
	RewritePlan(ctx context.Context, currentPlan, changeRequest string) (string, error)
}

// ClarifyContext gives the rewriter what it needs to phrase a warm
// clarification: which slides exist and what the user asked for.
type ClarifyContext struct {
	Language   string
	ItemTitles []string
	ItemCount  int
	Requested  string
}

// SoftenContext accompanies a failure being rewritten for the user.
type SoftenContext struct {
	Language        string
	OriginalMessage string
	Intent          string
	LessonTitle     string
}

// TextRewriter authors user-facing text the core cannot write itself:
// clarifications, softened failures, and context summaries.
type TextRewriter interface {
	Clarify(ctx context.Context, scenario string, cc ClarifyContext) (string, error)
	Soften(ctx context.Context, failure string, sc SoftenContext) (string, error)
	Summarize(ctx context.Context, text string) (string, error)
}
