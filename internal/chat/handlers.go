package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/vampirenirmal/lessonflow/internal/agent"
	"github.com/vampirenirmal/lessonflow/internal/generate"
	"github.com/vampirenirmal/lessonflow/internal/lesson"
)

// ConfidenceThreshold is the floor below which a classifier verdict is not
// acted upon; such turns always route to the catch-all handler.
const ConfidenceThreshold = 0.5

// Intent labels the classifier may return.
const (
	IntentCreateLesson   = "create_lesson"
	IntentEditPlan       = "edit_plan"
	IntentGenerateSlides = "generate_slides"
	IntentEditSlide      = "edit_slide"
	IntentHelp           = "help"
	IntentFreeChat       = "free_chat"
)

// Handler services one kind of conversational turn. Priority makes the
// chain's ordering explicit: higher values are consulted first, and the
// catch-all sits at zero.
type Handler interface {
	Name() string
	Priority() int
	CanHandle(intent agent.IntentResult, state ConversationState) bool
	Handle(ctx context.Context, message string, intent agent.IntentResult, state ConversationState) (Response, error)
}

// Chain holds handlers in explicit priority order.
type Chain struct {
	handlers []Handler
}

// NewChain sorts the given handlers by descending priority. Registration
// order never matters.
func NewChain(handlers ...Handler) *Chain {
	sorted := append([]Handler(nil), handlers...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() > sorted[j].Priority()
	})
	return &Chain{handlers: sorted}
}

// Handlers exposes the evaluation order.
func (c *Chain) Handlers() []Handler {
	return c.handlers
}

// Select returns the first handler that accepts the turn. With a catch-all
// registered this never returns ErrNoHandlerFound.
func (c *Chain) Select(intent agent.IntentResult, state ConversationState) (Handler, error) {
	for _, h := range c.handlers {
		if h.CanHandle(intent, state) {
			return h, nil
		}
	}
	return nil, ErrNoHandlerFound
}

// DefaultChain wires the standard handler set.
func DefaultChain(generator agent.ContentGenerator, engine *generate.Engine, validator *Validator, cb generate.Callbacks, logger *slog.Logger) *Chain {
	return NewChain(
		&CreateLessonHandler{generator: generator, logger: logger},
		&EditPlanHandler{generator: generator, logger: logger},
		&EditSlideHandler{generator: generator, validator: validator, logger: logger},
		&GenerateSlidesHandler{engine: engine, callbacks: cb, logger: logger},
		&HelpHandler{},
		&FreeConversationHandler{},
	)
}

// CreateLessonHandler produces a fresh plan when the user asks for a lesson
// and none is in progress.
type CreateLessonHandler struct {
	generator agent.ContentGenerator
	logger    *slog.Logger
}

func (h *CreateLessonHandler) Name() string  { return "create_lesson" }
func (h *CreateLessonHandler) Priority() int { return 50 }

func (h *CreateLessonHandler) CanHandle(intent agent.IntentResult, state ConversationState) bool {
	return intent.Confidence >= ConfidenceThreshold &&
		intent.Intent == IntentCreateLesson &&
		state.PlanText == ""
}

func (h *CreateLessonHandler) Handle(ctx context.Context, message string, intent agent.IntentResult, state ConversationState) (Response, error) {
	newState := state.Clone()

	plan, err := h.generator.GeneratePlan(ctx, newState.Topic, newState.TargetAge, newState.Language, newState.ContextSummary)
	if err != nil {
		return Response{State: newState}, NewTurnError(h.Name(), fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err))
	}

	newState.PlanText = plan
	newState.Step = StepPlanning

	return Response{
		Success: true,
		Message: plan,
		State:   newState,
		Actions: planActions(newState.Language),
	}, nil
}

// EditPlanHandler merges a requested change into the working plan while the
// conversation is in plan-editing mode. The predicate is step-driven: the
// user entered this mode explicitly, so the raw message is the change
// request regardless of how it classifies.
type EditPlanHandler struct {
	generator agent.ContentGenerator
	logger    *slog.Logger
}

func (h *EditPlanHandler) Name() string  { return "edit_plan" }
func (h *EditPlanHandler) Priority() int { return 40 }

func (h *EditPlanHandler) CanHandle(intent agent.IntentResult, state ConversationState) bool {
	return state.Step == StepPlanEditing && state.PlanText != ""
}

func (h *EditPlanHandler) Handle(ctx context.Context, message string, intent agent.IntentResult, state ConversationState) (Response, error) {
	newState := state.Clone()

	plan, err := h.generator.RewritePlan(ctx, newState.PlanText, message)
	if err != nil {
		return Response{State: newState}, NewTurnError(h.Name(), fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err))
	}

	newState.PlanText = plan
	newState.Step = StepPlanning

	return Response{
		Success: true,
		Message: plan,
		State:   newState,
		Actions: planActions(newState.Language),
	}, nil
}

// EditSlideHandler regenerates one existing slide. Preconditions go through
// the validator, so ambiguous or out-of-range requests come back as
// clarifications rather than errors.
type EditSlideHandler struct {
	generator agent.ContentGenerator
	validator *Validator
	logger    *slog.Logger
}

func (h *EditSlideHandler) Name() string  { return "edit_slide" }
func (h *EditSlideHandler) Priority() int { return 30 }

func (h *EditSlideHandler) CanHandle(intent agent.IntentResult, state ConversationState) bool {
	return intent.Confidence >= ConfidenceThreshold && intent.Intent == IntentEditSlide
}

func (h *EditSlideHandler) Handle(ctx context.Context, message string, intent agent.IntentResult, state ConversationState) (Response, error) {
	newState := state.Clone()

	requested := parseSlideIndex(intent.Parameters)
	resolved, clarification := h.validator.Validate(ctx, requested, newState)
	if clarification != nil {
		return Response{
			Success: true,
			Message: clarification.Message,
			State:   newState,
		}, nil
	}

	current := newState.Lesson.Items[resolved-1]
	desc := lesson.ItemDescription{
		Index: resolved,
		Title: current.Title,
		Kind:  current.Kind,
		Goal:  message,
	}

	content, err := h.generator.GenerateItem(ctx, desc, newState.Topic, newState.TargetAge)
	if err != nil {
		return Response{State: newState}, NewTurnError(h.Name(), fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err))
	}

	// Edits produce a new version; unrelated fields are never patched.
	newState.Lesson.Items[resolved-1] = lesson.NewGeneratedItem(desc, content)
	newState.Step = StepSlideGeneration

	return Response{
		Success: true,
		Message: localized(newState.Language, "slide_updated", resolved),
		State:   newState,
	}, nil
}

// GenerateSlidesHandler turns the approved plan into slides via the
// parallel generation engine.
type GenerateSlidesHandler struct {
	engine    *generate.Engine
	callbacks generate.Callbacks
	logger    *slog.Logger
}

func (h *GenerateSlidesHandler) Name() string  { return "generate_slides" }
func (h *GenerateSlidesHandler) Priority() int { return 20 }

func (h *GenerateSlidesHandler) CanHandle(intent agent.IntentResult, state ConversationState) bool {
	return intent.Confidence >= ConfidenceThreshold &&
		intent.Intent == IntentGenerateSlides &&
		state.PlanText != ""
}

func (h *GenerateSlidesHandler) Handle(ctx context.Context, message string, intent agent.IntentResult, state ConversationState) (Response, error) {
	return runGeneration(ctx, h.engine, h.callbacks, state)
}

// HelpHandler answers help requests with a static, language-matched message
// and no state change.
type HelpHandler struct{}

func (h *HelpHandler) Name() string  { return "help" }
func (h *HelpHandler) Priority() int { return 10 }

func (h *HelpHandler) CanHandle(intent agent.IntentResult, state ConversationState) bool {
	return intent.Confidence >= ConfidenceThreshold && intent.Intent == IntentHelp
}

func (h *HelpHandler) Handle(ctx context.Context, message string, intent agent.IntentResult, state ConversationState) (Response, error) {
	return Response{
		Success: true,
		Message: localized(state.Language, "help"),
		State:   state,
	}, nil
}

// FreeConversationHandler is the catch-all. It accepts everything, so the
// chain never comes up empty, and answers low-confidence or off-topic turns
// with gentle redirection.
type FreeConversationHandler struct{}

func (h *FreeConversationHandler) Name() string  { return "free_conversation" }
func (h *FreeConversationHandler) Priority() int { return 0 }

func (h *FreeConversationHandler) CanHandle(intent agent.IntentResult, state ConversationState) bool {
	return true
}

func (h *FreeConversationHandler) Handle(ctx context.Context, message string, intent agent.IntentResult, state ConversationState) (Response, error) {
	return Response{
		Success: true,
		Message: localized(state.Language, "not_understood"),
		State:   state,
		Actions: []Action{helpAction(state.Language)},
	}, nil
}

// runGeneration is shared by the generate_slides intent and the
// approve_plan action.
func runGeneration(ctx context.Context, engine *generate.Engine, cb generate.Callbacks, state ConversationState) (Response, error) {
	items := lesson.ParsePlan(state.PlanText)
	if len(items) == 0 {
		return Response{State: state},
			NewTurnError("generate_slides", fmt.Errorf("plan has no numbered slides"))
	}

	newState := state.Clone()
	title := newState.Topic
	if title == "" {
		title = "Lesson"
	}
	newState.Lesson = lesson.NewLesson(title)
	newState.ItemDescriptions = items
	newState.Step = StepBulkGeneration

	stats, progress := engine.GenerateAll(ctx, newState.Lesson, items, newState.Topic, newState.TargetAge, cb)

	newState.ItemProgress = progress
	newState.Step = StepSlideGeneration

	if stats.Completed == 0 {
		return Response{State: newState},
			NewTurnError("generate_slides", fmt.Errorf("%w: no slides could be generated", ErrCollaboratorUnavailable))
	}

	return Response{
		Success: true,
		Message: localized(newState.Language, "batch_done", stats.Completed, stats.Total),
		State:   newState,
		Actions: []Action{helpAction(newState.Language)},
	}, nil
}

func parseSlideIndex(params map[string]string) *int {
	raw, ok := params["slide_index"]
	if !ok || raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &n
}

func planActions(language string) []Action {
	switch language {
	case "es":
		return []Action{
			{ID: "approve_plan", Label: "Aprobar plan", Description: "Generar las diapositivas de este plan"},
			{ID: "edit_plan", Label: "Editar plan", Description: "Pedir cambios antes de generar"},
		}
	default:
		return []Action{
			{ID: "approve_plan", Label: "Approve plan", Description: "Generate the slides for this plan"},
			{ID: "edit_plan", Label: "Edit plan", Description: "Ask for changes before generating"},
		}
	}
}

func helpAction(language string) Action {
	if language == "es" {
		return Action{ID: "show_help", Label: "Ayuda", Description: "Ver lo que puedo hacer"}
	}
	return Action{ID: "show_help", Label: "Help", Description: "See what I can do"}
}

// messages holds the static language-matched texts. Unknown languages fall
// back to English.
var messages = map[string]map[string]string{
	"en": {
		"help":           "I build lessons with you. Tell me a topic and your learners' age, approve or edit the plan I draft, and I'll generate the slides.",
		"not_understood": "I'm not sure what you'd like to do. Try asking for a lesson about a topic, for example: \"create a lesson about volcanoes for 7 year olds\".",
		"batch_done":     "Your lesson is ready! %d of %d slides were generated.",
		"slide_updated":  "Slide %d has been refreshed. Take a look!",
		"edit_prompt":    "Sure - what would you like to change in the plan?",
	},
	"es": {
		"help":           "Construyo lecciones contigo. Dime un tema y la edad de tus estudiantes, aprueba o edita el plan y genero las diapositivas.",
		"not_understood": "No estoy seguro de qué quieres hacer. Prueba pedir una lección sobre un tema, por ejemplo: \"crea una lección sobre volcanes para niños de 7 años\".",
		"batch_done":     "¡Tu lección está lista! Se generaron %d de %d diapositivas.",
		"slide_updated":  "La diapositiva %d se actualizó. ¡Échale un vistazo!",
		"edit_prompt":    "Claro, ¿qué quieres cambiar en el plan?",
	},
}

func localized(language, key string, args ...any) string {
	texts, ok := messages[language]
	if !ok {
		texts = messages["en"]
	}
	if len(args) == 0 {
		return texts[key]
	}
	return fmt.Sprintf(texts[key], args...)
}
