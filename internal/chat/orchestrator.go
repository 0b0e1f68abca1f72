package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vampirenirmal/lessonflow/internal/agent"
	"github.com/vampirenirmal/lessonflow/internal/generate"
)

// Action IDs the caller may dispatch directly, bypassing classification.
const (
	ActionApprovePlan = "approve_plan"
	ActionEditPlan    = "edit_plan"
	ActionShowHelp    = "show_help"
)

// Orchestrator processes one user turn at a time: action dispatch or intent
// classification, slot filling, handler-chain dispatch, and failure
// interception. It is synchronous per turn; concurrency lives inside the
// generation engine.
type Orchestrator struct {
	classifier      agent.IntentClassifier
	chain           *Chain
	engine          *generate.Engine
	compressor      *Compressor
	observer        *Observer
	generationCB    generate.Callbacks
	maxClarifyTurns int
	sessionID       string
	logger          *slog.Logger
}

type Option func(*Orchestrator)

func WithCompressor(c *Compressor) Option {
	return func(o *Orchestrator) { o.compressor = c }
}

func WithObserver(obs *Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithGenerationCallbacks lets the caller stream per-slide progress while a
// batch runs.
func WithGenerationCallbacks(cb generate.Callbacks) Option {
	return func(o *Orchestrator) { o.generationCB = cb }
}

// WithMaxClarifyTurns bounds how many clarifying questions a slot-filling
// loop may ask before giving up.
func WithMaxClarifyTurns(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxClarifyTurns = n
		}
	}
}

func WithSessionID(sessionID string) Option {
	return func(o *Orchestrator) { o.sessionID = sessionID }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

func New(classifier agent.IntentClassifier, chain *Chain, engine *generate.Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		classifier:      classifier,
		chain:           chain,
		engine:          engine,
		maxClarifyTurns: 3,
		sessionID:       uuid.New().String(),
		logger:          slog.Default().With("component", "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) SessionID() string {
	return o.sessionID
}

// Handle processes one turn. A non-empty action bypasses classification.
// The returned error is non-nil only for true failures: an unknown action
// or a misconfigured chain; everything else comes back as a conversational
// response.
func (o *Orchestrator) Handle(ctx context.Context, message, action string, state ConversationState) (Response, error) {
	if action != "" {
		return o.dispatchAction(ctx, action, message, state)
	}

	if o.compressor != nil {
		raw := appendTranscript(state.ContextSummary, message)
		prepared, compressed := o.compressor.Prepare(ctx, raw)
		state.ContextSummary = prepared
		if compressed {
			o.logger.Debug("conversation context compressed",
				"session_id", o.sessionID,
				"prepared_tokens", EstimateTokens(prepared))
		}
	}

	// While collecting slots, the stored original request and the new
	// message classify together.
	text := message
	if state.Step == StepDataCollection && state.OriginalMessage != "" {
		text = state.OriginalMessage + "\n" + message
	}

	intent, err := o.classifier.Classify(ctx, text, classifyHint(state))
	if err != nil {
		failed := Response{
			State:   state,
			Message: err.Error(),
			Err:     fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err),
		}
		return o.intercept(ctx, failed, message, state, ""), nil
	}

	o.logger.Debug("turn classified",
		"session_id", o.sessionID,
		"intent", intent.Intent,
		"confidence", intent.Confidence,
		"step", state.Step)

	absorbIntent(&state, intent)

	// Low-confidence verdicts never start slot filling: acting on their
	// structured data is exactly what the threshold exists to prevent.
	contentTurn := isContentIntent(intent.Intent) && intent.Confidence >= ConfidenceThreshold
	if contentTurn || state.Step == StepDataCollection {
		if missing := missingSlots(state, intent); len(missing) > 0 {
			return o.collectData(ctx, message, text, intent, missing, state)
		}
	}

	if state.Step == StepDataCollection {
		// Slots are filled; resume the pending request with the combined text.
		if state.PendingIntent != "" {
			intent.Intent = state.PendingIntent
			if intent.Confidence < ConfidenceThreshold {
				intent.Confidence = ConfidenceThreshold
			}
		}
		state.clearPending()
		state.Step = StepPlanning
	}

	handler, err := o.chain.Select(intent, state)
	if err != nil {
		return Response{Success: false, Message: err.Error(), State: state, Err: err}, err
	}

	resp, err := handler.Handle(ctx, text, intent, state)
	if err != nil {
		if resp.State.Step == "" {
			resp.State = state
		}
		resp.Success = false
		resp.Err = err
		if resp.Message == "" {
			resp.Message = err.Error()
		}
		o.logger.Warn("handler failed",
			"session_id", o.sessionID,
			"handler", handler.Name(),
			"error", err)
	}

	return o.intercept(ctx, resp, message, state, intent.Intent), nil
}

// dispatchAction services the fixed action table.
func (o *Orchestrator) dispatchAction(ctx context.Context, action, message string, state ConversationState) (Response, error) {
	o.logger.Debug("action dispatched",
		"session_id", o.sessionID,
		"action", action)

	switch action {
	case ActionApprovePlan:
		if state.PlanText == "" {
			return Response{
				Success: true,
				Message: fallbackClarification(ScenarioMissingLesson, state.Language, agent.ClarifyContext{}),
				State:   state,
			}, nil
		}
		resp, err := runGeneration(ctx, o.engine, o.generationCB, state)
		if err != nil {
			resp.Success = false
			resp.Err = err
			if resp.Message == "" {
				resp.Message = err.Error()
			}
		}
		return o.intercept(ctx, resp, message, state, "action:"+action), nil

	case ActionEditPlan:
		if state.PlanText == "" {
			return Response{
				Success: true,
				Message: fallbackClarification(ScenarioMissingLesson, state.Language, agent.ClarifyContext{}),
				State:   state,
			}, nil
		}
		newState := state.Clone()
		newState.Step = StepPlanEditing
		return Response{
			Success: true,
			Message: localized(newState.Language, "edit_prompt"),
			State:   newState,
		}, nil

	case ActionShowHelp:
		return Response{
			Success: true,
			Message: localized(state.Language, "help"),
			State:   state,
		}, nil

	default:
		err := fmt.Errorf("%w: %q", ErrUnknownAction, action)
		return Response{Success: false, Message: err.Error(), State: state, Err: err}, err
	}
}

// collectData enters or continues the slot-filling loop. The clarifying
// question is a normal successful response, never an error.
func (o *Orchestrator) collectData(ctx context.Context, message, combined string, intent agent.IntentResult, missing []string, state ConversationState) (Response, error) {
	newState := state.Clone()

	if newState.Step == StepDataCollection {
		newState.ClarifyTurns++
		if newState.ClarifyTurns > o.maxClarifyTurns {
			// The loop is exhausted; drop the pending request and let the
			// catch-all suggest a fresh start.
			o.logger.Info("slot filling abandoned",
				"session_id", o.sessionID,
				"pending_intent", newState.PendingIntent,
				"turns", newState.ClarifyTurns)
			newState.clearPending()
			newState.Step = StepPlanning

			catchAll := agent.IntentResult{Intent: IntentFreeChat, Confidence: 1, Language: newState.Language}
			handler, err := o.chain.Select(catchAll, newState)
			if err != nil {
				return Response{Success: false, Message: err.Error(), State: newState, Err: err}, err
			}
			resp, _ := handler.Handle(ctx, message, catchAll, newState)
			return resp, nil
		}
	} else {
		newState.Step = StepDataCollection
		newState.PendingIntent = intent.Intent
		newState.ClarifyTurns = 1
	}

	newState.OriginalMessage = combined
	newState.MissingSlots = missing

	question := intent.SuggestedQuestion
	if question == "" {
		question = fallbackQuestion(newState.Language, missing)
	}
	newState.ClarifyingQuestion = question

	return Response{
		Success: true,
		Message: question,
		State:   newState,
	}, nil
}

func (o *Orchestrator) intercept(ctx context.Context, resp Response, message string, state ConversationState, intent string) Response {
	if resp.Success || o.observer == nil {
		return resp
	}
	return o.observer.Intercept(ctx, resp, message, state, intent)
}

func isContentIntent(intent string) bool {
	switch intent {
	case IntentCreateLesson, IntentGenerateSlides, IntentEditSlide:
		return true
	}
	return false
}

// missingSlots reports which required slots are still empty after the
// classifier's parameters were absorbed. The merged state wins over the
// classifier's own sufficiency verdict: a slot already known from an
// earlier turn never counts as missing.
func missingSlots(state ConversationState, intent agent.IntentResult) []string {
	var missing []string
	if state.Topic == "" {
		missing = append(missing, "topic")
	}
	if state.TargetAge == "" {
		missing = append(missing, "target_age")
	}
	if len(missing) == 0 {
		return nil
	}
	if !intent.IsDataSufficient && len(intent.MissingSlots) > 0 {
		return intent.MissingSlots
	}
	return missing
}

func absorbIntent(state *ConversationState, intent agent.IntentResult) {
	if topic := intent.Parameters["topic"]; topic != "" {
		state.Topic = topic
	}
	if age := intent.Parameters["target_age"]; age != "" {
		state.TargetAge = age
	}
	if intent.Language != "" {
		state.Language = intent.Language
	}
}

func classifyHint(state ConversationState) agent.ClassifyHint {
	return agent.ClassifyHint{
		Step:           string(state.Step),
		Topic:          state.Topic,
		TargetAge:      state.TargetAge,
		ContextSummary: state.ContextSummary,
	}
}

func appendTranscript(summary, message string) string {
	if summary == "" {
		return "user: " + message
	}
	return summary + "\n\nuser: " + message
}

func fallbackQuestion(language string, missing []string) string {
	wantsAge := false
	wantsTopic := false
	for _, slot := range missing {
		switch slot {
		case "target_age":
			wantsAge = true
		case "topic":
			wantsTopic = true
		}
	}

	switch {
	case wantsTopic && wantsAge:
		if language == "es" {
			return "¡Con gusto! ¿Sobre qué tema es la lección y qué edad tienen tus estudiantes?"
		}
		return "Happy to help! What topic is the lesson about, and how old are your learners?"
	case wantsAge:
		if language == "es" {
			return "¡Suena genial! ¿Qué edad tienen tus estudiantes?"
		}
		return "Sounds great! How old are your learners?"
	default:
		if language == "es" {
			return "¿Sobre qué tema te gustaría la lección?"
		}
		return "What topic would you like the lesson to be about?"
	}
}
