package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/vampirenirmal/lessonflow/internal/lesson"
)

// MockCollaborator provides fake AI responses for testing. Every contract
// method has a Func override; unset methods fall back to canned, keyword-
// driven responses the way a cooperative collaborator would answer.
type MockCollaborator struct {
	ClassifyFunc     func(ctx context.Context, text string, hint ClassifyHint) (IntentResult, error)
	GeneratePlanFunc func(ctx context.Context, topic, age, language, contextSummary string) (string, error)
	GenerateItemFunc func(ctx context.Context, desc lesson.ItemDescription, topic, age string) (string, error)
	RewritePlanFunc  func(ctx context.Context, currentPlan, changeRequest string) (string, error)
	ClarifyFunc      func(ctx context.Context, scenario string, cc ClarifyContext) (string, error)
	SoftenFunc       func(ctx context.Context, failure string, sc SoftenContext) (string, error)
	SummarizeFunc    func(ctx context.Context, text string) (string, error)

	mu    sync.Mutex
	calls map[string]int
}

// NewMockCollaborator creates a mock that answers every call successfully.
func NewMockCollaborator() *MockCollaborator {
	return &MockCollaborator{calls: make(map[string]int)}
}

// Calls reports how many times the named method was invoked.
func (m *MockCollaborator) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MockCollaborator) record(method string) {
	m.mu.Lock()
	m.calls[method]++
	m.mu.Unlock()
}

func (m *MockCollaborator) Classify(ctx context.Context, text string, hint ClassifyHint) (IntentResult, error) {
	m.record("Classify")
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, text, hint)
	}

	lower := strings.ToLower(text)
	result := IntentResult{
		Intent:           "free_chat",
		Confidence:       0.9,
		Parameters:       map[string]string{},
		Language:         "en",
		IsDataSufficient: true,
	}

	switch {
	case strings.Contains(lower, "help"):
		result.Intent = "help"
	case strings.Contains(lower, "lesson about"):
		result.Intent = "create_lesson"
		if idx := strings.Index(lower, "lesson about "); idx >= 0 {
			result.Parameters["topic"] = strings.TrimSpace(text[idx+len("lesson about "):])
		}
		if !strings.Contains(lower, "year") {
			result.IsDataSufficient = false
			result.MissingSlots = []string{"target_age"}
			result.SuggestedQuestion = "Sounds great! How old are the learners?"
		} else {
			result.Parameters["target_age"] = "7"
		}
	case strings.Contains(lower, "year old"):
		result.Intent = "create_lesson"
		result.Parameters["target_age"] = "7"
	}

	return result, nil
}

func (m *MockCollaborator) GeneratePlan(ctx context.Context, topic, age, language, contextSummary string) (string, error) {
	m.record("GeneratePlan")
	if m.GeneratePlanFunc != nil {
		return m.GeneratePlanFunc(ctx, topic, age, language, contextSummary)
	}
	return fmt.Sprintf("Lesson plan: %s (age %s)\n1. Introduction - meet the topic\n2. Main ideas - core content\n3. Quiz - check understanding", topic, age), nil
}

func (m *MockCollaborator) GenerateItem(ctx context.Context, desc lesson.ItemDescription, topic, age string) (string, error) {
	m.record("GenerateItem")
	if m.GenerateItemFunc != nil {
		return m.GenerateItemFunc(ctx, desc, topic, age)
	}
	return fmt.Sprintf("<slide index=%d>%s</slide>", desc.Index, desc.Title), nil
}

func (m *MockCollaborator) RewritePlan(ctx context.Context, currentPlan, changeRequest string) (string, error) {
	m.record("RewritePlan")
	if m.RewritePlanFunc != nil {
		return m.RewritePlanFunc(ctx, currentPlan, changeRequest)
	}
	return currentPlan + "\n4. Added slide - " + changeRequest, nil
}

func (m *MockCollaborator) Clarify(ctx context.Context, scenario string, cc ClarifyContext) (string, error) {
	m.record("Clarify")
	if m.ClarifyFunc != nil {
		return m.ClarifyFunc(ctx, scenario, cc)
	}
	return fmt.Sprintf("Which slide did you mean? You have %d so far.", cc.ItemCount), nil
}

func (m *MockCollaborator) Soften(ctx context.Context, failure string, sc SoftenContext) (string, error) {
	m.record("Soften")
	if m.SoftenFunc != nil {
		return m.SoftenFunc(ctx, failure, sc)
	}
	return "Let's give that another try in a moment - your lesson is safe.", nil
}

func (m *MockCollaborator) Summarize(ctx context.Context, text string) (string, error) {
	m.record("Summarize")
	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, text)
	}
	if len(text) > 80 {
		text = text[:80]
	}
	return "summary: " + text, nil
}
