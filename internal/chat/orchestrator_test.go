package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vampirenirmal/lessonflow/internal/agent"
	"github.com/vampirenirmal/lessonflow/internal/generate"
)

func testOrchestrator(mock *agent.MockCollaborator, opts ...Option) *Orchestrator {
	engine := generate.NewEngine(mock, generate.WithWorkers(2))
	return New(mock, testChain(mock), engine, opts...)
}

func TestHandleLowConfidenceRoutesToCatchAll(t *testing.T) {
	mock := agent.NewMockCollaborator()
	mock.ClassifyFunc = func(ctx context.Context, text string, hint agent.ClassifyHint) (agent.IntentResult, error) {
		return agent.IntentResult{
			Intent:     IntentCreateLesson,
			Confidence: 0.3,
			Parameters: map[string]string{"topic": "volcanoes"},
			Language:   "en",
		}, nil
	}
	o := testOrchestrator(mock)

	resp, err := o.Handle(context.Background(), "vlcano lesn mk??", "", NewState())
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if resp.Message != messages["en"]["not_understood"] {
		t.Errorf("message = %q, want catch-all redirection", resp.Message)
	}
	if resp.State.Step != StepPlanning {
		t.Errorf("step = %s, want planning untouched", resp.State.Step)
	}
	if mock.Calls("GeneratePlan") != 0 {
		t.Error("low-confidence verdict still triggered plan generation")
	}
}

func TestHandleMissingSlotsEntersDataCollection(t *testing.T) {
	mock := agent.NewMockCollaborator()
	o := testOrchestrator(mock)

	resp, err := o.Handle(context.Background(), "create a lesson about volcanoes", "", NewState())
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if !resp.Success {
		t.Error("clarifying question must be a successful turn")
	}
	if resp.State.Step != StepDataCollection {
		t.Errorf("step = %s, want data_collection", resp.State.Step)
	}
	if len(resp.State.MissingSlots) == 0 {
		t.Error("missing slots not recorded")
	}
	if resp.State.PendingIntent != IntentCreateLesson {
		t.Errorf("pending intent = %q, want create_lesson", resp.State.PendingIntent)
	}
	if resp.State.ClarifyTurns != 1 {
		t.Errorf("clarify turns = %d, want 1", resp.State.ClarifyTurns)
	}
	if resp.Message == "" {
		t.Error("no clarifying question asked")
	}
	if mock.Calls("GeneratePlan") != 0 {
		t.Error("plan generated before slots were filled")
	}
}

func TestHandleVolcanoFlow(t *testing.T) {
	mock := agent.NewMockCollaborator()
	mock.ClassifyFunc = func(ctx context.Context, text string, hint agent.ClassifyHint) (agent.IntentResult, error) {
		result := agent.IntentResult{
			Intent:     IntentCreateLesson,
			Confidence: 0.9,
			Parameters: map[string]string{"topic": "volcanoes"},
			Language:   "en",
		}
		if strings.Contains(text, "7 year") {
			result.Parameters["target_age"] = "7"
			result.IsDataSufficient = true
		} else {
			result.IsDataSufficient = false
			result.MissingSlots = []string{"target_age"}
			result.SuggestedQuestion = "Sounds exciting! How old are your learners?"
		}
		return result, nil
	}
	o := testOrchestrator(mock)
	ctx := context.Background()

	// Turn 1: topic only; the engine asks instead of erroring.
	resp, err := o.Handle(ctx, "create a lesson about volcanoes", "", NewState())
	if err != nil {
		t.Fatalf("turn 1 error = %v", err)
	}
	if resp.Message != "Sounds exciting! How old are your learners?" {
		t.Errorf("turn 1 message = %q, want the classifier's suggested question verbatim", resp.Message)
	}
	if resp.State.Step != StepDataCollection {
		t.Fatalf("turn 1 step = %s, want data_collection", resp.State.Step)
	}

	// Turn 2: the answer combines with the stored request and yields a plan.
	resp, err = o.Handle(ctx, "for 7 year olds", "", resp.State)
	if err != nil {
		t.Fatalf("turn 2 error = %v", err)
	}
	if !resp.Success {
		t.Fatalf("turn 2 failed: %q", resp.Message)
	}
	if resp.State.Step != StepPlanning {
		t.Errorf("turn 2 step = %s, want planning", resp.State.Step)
	}
	if resp.State.PlanText == "" {
		t.Error("turn 2 produced no plan")
	}
	if resp.State.PendingIntent != "" || resp.State.ClarifyTurns != 0 {
		t.Errorf("slot-filling bookkeeping not cleared: %+v", resp.State)
	}
	if resp.State.Topic != "volcanoes" || resp.State.TargetAge != "7" {
		t.Errorf("slots not absorbed: topic=%q age=%q", resp.State.Topic, resp.State.TargetAge)
	}
	if len(resp.Actions) != 2 {
		t.Fatalf("turn 2 actions = %+v, want approve and edit", resp.Actions)
	}

	// Turn 3: approving the plan generates the whole batch.
	resp, err = o.Handle(ctx, "", ActionApprovePlan, resp.State)
	if err != nil {
		t.Fatalf("turn 3 error = %v", err)
	}
	if !resp.Success {
		t.Fatalf("turn 3 failed: %q", resp.Message)
	}
	if resp.State.Lesson == nil || len(resp.State.Lesson.Items) != 3 {
		t.Fatalf("lesson not generated: %+v", resp.State.Lesson)
	}
	if resp.State.Step != StepSlideGeneration {
		t.Errorf("turn 3 step = %s, want slide_generation", resp.State.Step)
	}
}

func TestHandleActionTable(t *testing.T) {
	planned := NewState()
	planned.Topic = "volcanoes"
	planned.PlanText = "1. Intro - hello\n2. Quiz - check"

	tests := []struct {
		name     string
		action   string
		state    ConversationState
		wantStep Step
		wantErr  error
	}{
		{name: "approve runs batch", action: ActionApprovePlan, state: planned, wantStep: StepSlideGeneration},
		{name: "edit enters editing mode", action: ActionEditPlan, state: planned, wantStep: StepPlanEditing},
		{name: "help leaves step alone", action: ActionShowHelp, state: planned, wantStep: StepPlanning},
		{name: "unknown action", action: "reboot_everything", state: planned, wantErr: ErrUnknownAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := testOrchestrator(agent.NewMockCollaborator())

			resp, err := o.Handle(context.Background(), "", tt.action, tt.state)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if !resp.Success {
				t.Errorf("response failed: %q", resp.Message)
			}
			if resp.State.Step != tt.wantStep {
				t.Errorf("step = %s, want %s", resp.State.Step, tt.wantStep)
			}
		})
	}
}

func TestHandleApproveWithoutPlan(t *testing.T) {
	o := testOrchestrator(agent.NewMockCollaborator())

	resp, err := o.Handle(context.Background(), "", ActionApprovePlan, NewState())
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !resp.Success {
		t.Error("approving with no plan must come back as a clarification, not a failure")
	}
	if resp.Message == "" {
		t.Error("clarification message empty")
	}
}

func TestHandleClarifyExhaustionRoutesToCatchAll(t *testing.T) {
	mock := agent.NewMockCollaborator()
	mock.ClassifyFunc = func(ctx context.Context, text string, hint agent.ClassifyHint) (agent.IntentResult, error) {
		// Every answer remains insufficient.
		return agent.IntentResult{
			Intent:           IntentCreateLesson,
			Confidence:       0.9,
			Parameters:       map[string]string{},
			Language:         "en",
			IsDataSufficient: false,
			MissingSlots:     []string{"topic", "target_age"},
		}, nil
	}
	o := testOrchestrator(mock, WithMaxClarifyTurns(2))

	state := NewState()
	var resp Response
	var err error
	for turn := 0; turn < 3; turn++ {
		resp, err = o.Handle(context.Background(), "hmm not sure", "", state)
		if err != nil {
			t.Fatalf("turn %d error = %v", turn+1, err)
		}
		state = resp.State
	}

	if resp.State.Step != StepPlanning {
		t.Errorf("step = %s, want planning after abandonment", resp.State.Step)
	}
	if resp.State.PendingIntent != "" || resp.State.ClarifyTurns != 0 {
		t.Errorf("pending request not dropped: %+v", resp.State)
	}
	if resp.Message != messages["en"]["not_understood"] {
		t.Errorf("message = %q, want catch-all redirection", resp.Message)
	}
}

func TestHandleClassifierFailureIsSoftened(t *testing.T) {
	mock := agent.NewMockCollaborator()
	mock.ClassifyFunc = func(ctx context.Context, text string, hint agent.ClassifyHint) (agent.IntentResult, error) {
		return agent.IntentResult{}, errors.New("upstream timeout")
	}
	mock.SoftenFunc = func(ctx context.Context, failure string, sc agent.SoftenContext) (string, error) {
		return "I'm having a moment - give me a few seconds and ask again.", nil
	}
	o := testOrchestrator(mock, WithObserver(NewObserver(mock, nil)))

	resp, err := o.Handle(context.Background(), "make a lesson", "", NewState())
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !resp.Success {
		t.Error("softened failure should read as a normal turn")
	}
	if resp.Message != "I'm having a moment - give me a few seconds and ask again." {
		t.Errorf("message = %q, want softened text", resp.Message)
	}
}

func TestHandleClassifierFailureWithoutObserver(t *testing.T) {
	mock := agent.NewMockCollaborator()
	mock.ClassifyFunc = func(ctx context.Context, text string, hint agent.ClassifyHint) (agent.IntentResult, error) {
		return agent.IntentResult{}, errors.New("upstream timeout")
	}
	o := testOrchestrator(mock)

	resp, err := o.Handle(context.Background(), "make a lesson", "", NewState())
	if err != nil {
		t.Fatalf("Handle() returned a turn error = %v; failures belong in the response", err)
	}
	if resp.Success {
		t.Error("unrewritten failure must not claim success")
	}
	if !IsCollaboratorUnavailable(resp.Err) {
		t.Errorf("response error = %v, want collaborator-unavailable", resp.Err)
	}
}

func TestHandleCompressesLongContext(t *testing.T) {
	mock := agent.NewMockCollaborator()
	mock.SummarizeFunc = func(ctx context.Context, text string) (string, error) {
		return "talked at length about volcano lessons", nil
	}
	var gotHint agent.ClassifyHint
	mock.ClassifyFunc = func(ctx context.Context, text string, hint agent.ClassifyHint) (agent.IntentResult, error) {
		gotHint = hint
		return agent.IntentResult{Intent: IntentFreeChat, Confidence: 0.9, Language: "en"}, nil
	}
	o := testOrchestrator(mock, WithCompressor(NewCompressor(mock, 20, 2, nil)))

	state := NewState()
	state.ContextSummary = strings.Repeat("a very chatty exchange about rocks\n\n", 30)

	resp, err := o.Handle(context.Background(), "anything else?", "", state)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if resp.State.ContextSummary != "talked at length about volcano lessons" {
		t.Errorf("context not replaced by summary: %q", resp.State.ContextSummary)
	}
	if gotHint.ContextSummary != "talked at length about volcano lessons" {
		t.Errorf("classifier saw stale context: %q", gotHint.ContextSummary)
	}
}

func TestHandleResumesPendingIntentAtThreshold(t *testing.T) {
	mock := agent.NewMockCollaborator()
	mock.ClassifyFunc = func(ctx context.Context, text string, hint agent.ClassifyHint) (agent.IntentResult, error) {
		// A bare "7" classifies poorly on its own; the stored request must
		// still resume once the slot is filled.
		return agent.IntentResult{
			Intent:           IntentFreeChat,
			Confidence:       0.4,
			Parameters:       map[string]string{"target_age": "7"},
			Language:         "en",
			IsDataSufficient: true,
		}, nil
	}
	o := testOrchestrator(mock)

	state := NewState()
	state.Step = StepDataCollection
	state.Topic = "volcanoes"
	state.PendingIntent = IntentCreateLesson
	state.OriginalMessage = "create a lesson about volcanoes"
	state.MissingSlots = []string{"target_age"}
	state.ClarifyTurns = 1

	resp, err := o.Handle(context.Background(), "7", "", state)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !resp.Success {
		t.Fatalf("resume failed: %q", resp.Message)
	}
	if resp.State.PlanText == "" {
		t.Error("pending create_lesson did not resume into a plan")
	}
	if resp.State.Step != StepPlanning {
		t.Errorf("step = %s, want planning", resp.State.Step)
	}
	if mock.Calls("GeneratePlan") != 1 {
		t.Errorf("GeneratePlan called %d times, want 1", mock.Calls("GeneratePlan"))
	}
}

func TestSessionIDStable(t *testing.T) {
	o := testOrchestrator(agent.NewMockCollaborator(), WithSessionID("session-42"))
	if o.SessionID() != "session-42" {
		t.Errorf("SessionID() = %q", o.SessionID())
	}

	auto := testOrchestrator(agent.NewMockCollaborator())
	if auto.SessionID() == "" {
		t.Error("orchestrator without explicit session ID must mint one")
	}
}
