package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vampirenirmal/lessonflow/internal/agent"
)

// Clarification scenarios. Each maps to an AI-authored message with a
// deterministic per-language fallback.
const (
	ScenarioMissingLesson    = "missing-lesson-context"
	ScenarioUnclearSelection = "unclear-selection"
	ScenarioInvalidIndex     = "invalid-index"
)

// Clarification replaces a hard error when a request about existing slides
// is ambiguous or under-specified. It is a normal conversational turn.
type Clarification struct {
	Scenario string
	Message  string
}

// Validator checks preconditions for operations that touch existing
// generated items and turns violations into friendly guidance.
type Validator struct {
	rewriter agent.TextRewriter
	logger   *slog.Logger
}

func NewValidator(rewriter agent.TextRewriter, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default().With("component", "validator")
	}
	return &Validator{rewriter: rewriter, logger: logger}
}

// Validate resolves which slide an operation targets. Rules are checked in
// order; the first failing rule wins. requestedIndex is 1-based; nil means
// the user did not name a slide, which defaults to 1 when that is
// unambiguous.
func (v *Validator) Validate(ctx context.Context, requestedIndex *int, state ConversationState) (int, *Clarification) {
	if state.Lesson == nil {
		return 0, v.clarify(ctx, ScenarioMissingLesson, state, requestedIndex)
	}

	count := len(state.Lesson.Items)
	if requestedIndex == nil && count > 1 {
		return 0, v.clarify(ctx, ScenarioUnclearSelection, state, requestedIndex)
	}

	resolved := 1
	if requestedIndex != nil {
		resolved = *requestedIndex
	}
	if resolved < 1 || resolved > count {
		return 0, v.clarify(ctx, ScenarioInvalidIndex, state, requestedIndex)
	}

	return resolved, nil
}

func (v *Validator) clarify(ctx context.Context, scenario string, state ConversationState, requestedIndex *int) *Clarification {
	cc := agent.ClarifyContext{
		Language:   state.Language,
		ItemTitles: itemTitles(state),
		ItemCount:  itemCount(state),
	}
	if requestedIndex != nil {
		cc.Requested = fmt.Sprintf("slide %d", *requestedIndex)
	}

	message, err := v.rewriter.Clarify(ctx, scenario, cc)
	if err != nil || strings.TrimSpace(message) == "" {
		v.logger.Warn("clarification rewrite unavailable, using template",
			"scenario", scenario,
			"error", err)
		message = fallbackClarification(scenario, state.Language, cc)
	}

	return &Clarification{Scenario: scenario, Message: message}
}

// fallbackTemplates holds the deterministic per-language wording used when
// the rewriter is unavailable. Unknown languages fall back to English.
var fallbackTemplates = map[string]map[string]string{
	"en": {
		ScenarioMissingLesson:    "Let's create a lesson first! Tell me the topic and the age of your learners, and I'll put one together.",
		ScenarioUnclearSelection: "You have %d slides: %s. Which one would you like to work on?",
		ScenarioInvalidIndex:     "Your lesson has slides 1 to %d: %s. Pick one of those and we'll keep going.",
	},
	"es": {
		ScenarioMissingLesson:    "¡Primero creemos una lección! Dime el tema y la edad de tus estudiantes y la preparo.",
		ScenarioUnclearSelection: "Tienes %d diapositivas: %s. ¿Con cuál quieres trabajar?",
		ScenarioInvalidIndex:     "Tu lección tiene diapositivas de 1 a %d: %s. Elige una de esas y seguimos.",
	},
}

func fallbackClarification(scenario, language string, cc agent.ClarifyContext) string {
	templates, ok := fallbackTemplates[language]
	if !ok {
		templates = fallbackTemplates["en"]
	}

	tmpl := templates[scenario]
	if scenario == ScenarioMissingLesson {
		return tmpl
	}
	return fmt.Sprintf(tmpl, cc.ItemCount, strings.Join(cc.ItemTitles, ", "))
}

func itemTitles(state ConversationState) []string {
	if state.Lesson == nil {
		return nil
	}
	titles := make([]string, len(state.Lesson.Items))
	for i, item := range state.Lesson.Items {
		titles[i] = item.Title
	}
	return titles
}

func itemCount(state ConversationState) int {
	if state.Lesson == nil {
		return 0
	}
	return len(state.Lesson.Items)
}
