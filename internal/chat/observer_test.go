package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vampirenirmal/lessonflow/internal/agent"
)

func TestInterceptLeavesSuccessUntouched(t *testing.T) {
	mock := agent.NewMockCollaborator()
	o := NewObserver(mock, nil)

	resp := Response{
		Success: true,
		Message: "Here is your plan",
		State:   NewState(),
		Actions: []Action{{ID: "approve_plan", Label: "Approve plan"}},
	}

	got := o.Intercept(context.Background(), resp, "make a lesson", NewState(), IntentCreateLesson)

	if got.Message != resp.Message || !got.Success || len(got.Actions) != 1 {
		t.Errorf("successful response altered: %+v", got)
	}
	if mock.Calls("Soften") != 0 {
		t.Error("rewriter consulted for a successful response")
	}
}

func TestInterceptSoftensFailure(t *testing.T) {
	mock := agent.NewMockCollaborator()
	mock.SoftenFunc = func(ctx context.Context, failure string, sc agent.SoftenContext) (string, error) {
		if !strings.Contains(failure, "connection refused") {
			t.Errorf("rewriter did not receive the technical failure: %q", failure)
		}
		if sc.OriginalMessage != "make slides" {
			t.Errorf("rewriter missing original message: %q", sc.OriginalMessage)
		}
		return "Let's take a short breather and try that again in a moment.", nil
	}
	o := NewObserver(mock, nil)

	failed := Response{
		Success: false,
		Message: "dial tcp: connection refused",
		State:   NewState(),
		Err:     errors.New("dial tcp: connection refused"),
	}

	got := o.Intercept(context.Background(), failed, "make slides", NewState(), IntentGenerateSlides)

	if !got.Success {
		t.Error("softened response should read as a normal turn")
	}
	if got.Message != "Let's take a short breather and try that again in a moment." {
		t.Errorf("message = %q, want softened text", got.Message)
	}
}

func TestInterceptReturnsOriginalWhenRewriteFails(t *testing.T) {
	mock := agent.NewMockCollaborator()
	mock.SoftenFunc = func(ctx context.Context, failure string, sc agent.SoftenContext) (string, error) {
		return "", errors.New("rewriter down too")
	}
	o := NewObserver(mock, nil)

	failed := Response{
		Success: false,
		Message: "original technical message",
		State:   NewState(),
		Err:     errors.New("boom"),
	}

	got := o.Intercept(context.Background(), failed, "hi", NewState(), IntentFreeChat)

	if got.Success {
		t.Error("failed rewrite must not fabricate a success")
	}
	if got.Message != "original technical message" {
		t.Errorf("message = %q, want original passed through", got.Message)
	}
	if got.Err == nil {
		t.Error("original error dropped")
	}
}
