package chat

import (
	"context"
	"log/slog"
	"strings"

	"github.com/vampirenirmal/lessonflow/internal/agent"
)

// Observer sits between anything that produced a failed response and the
// caller, rewriting technical failures into encouraging, actionable text.
// Successful responses pass through untouched.
type Observer struct {
	rewriter agent.TextRewriter
	logger   *slog.Logger
}

func NewObserver(rewriter agent.TextRewriter, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default().With("component", "error_observer")
	}
	return &Observer{rewriter: rewriter, logger: logger}
}

// Intercept rewrites a failed response into a friendly conversational turn.
// If the rewrite itself fails, the original response is returned unchanged
// so nothing is lost and nothing recurses.
func (o *Observer) Intercept(ctx context.Context, resp Response, originalMessage string, state ConversationState, intent string) Response {
	if resp.Success {
		return resp
	}

	failure := resp.Message
	if resp.Err != nil {
		failure = resp.Err.Error()
	}

	sc := agent.SoftenContext{
		Language:        state.Language,
		OriginalMessage: originalMessage,
		Intent:          intent,
	}
	if state.Lesson != nil {
		sc.LessonTitle = state.Lesson.Title
	}

	softened, err := o.rewriter.Soften(ctx, failure, sc)
	if err != nil || strings.TrimSpace(softened) == "" {
		o.logger.Warn("failure rewrite unavailable, passing original through",
			"intent", intent,
			"error", err)
		return resp
	}

	o.logger.Debug("failure softened for user",
		"intent", intent,
		"original_failure", failure)

	return Response{
		Success: true,
		Message: softened,
		State:   resp.State,
		Actions: resp.Actions,
	}
}
