package chat

import (
	"context"
	"log/slog"
	"strings"

	"github.com/vampirenirmal/lessonflow/internal/agent"
)

// charsPerToken is the fixed character-to-token ratio used for estimates.
const charsPerToken = 4

// Compressor keeps the accumulated conversation context under a token
// budget before it is sent to any collaborator. Summarization is delegated
// to the AI collaborator; when that call fails, a deterministic keep-the-
// edges truncation guarantees a bounded result anyway.
type Compressor struct {
	rewriter  agent.TextRewriter
	maxTokens int
	keepTail  int
	logger    *slog.Logger
}

// NewCompressor creates a compressor with the given token ceiling and
// fallback tail size.
func NewCompressor(rewriter agent.TextRewriter, maxTokens, keepTail int, logger *slog.Logger) *Compressor {
	if logger == nil {
		logger = slog.Default().With("component", "compressor")
	}
	return &Compressor{
		rewriter:  rewriter,
		maxTokens: maxTokens,
		keepTail:  keepTail,
		logger:    logger,
	}
}

// EstimateTokens approximates the token cost of a string from its length.
func EstimateTokens(s string) int {
	return len(s) / charsPerToken
}

// Prepare returns the context to send onward and whether it was compressed.
// Context under the ceiling passes through untouched.
func (c *Compressor) Prepare(ctx context.Context, raw string) (string, bool) {
	estimate := EstimateTokens(raw)
	if estimate <= c.maxTokens {
		return raw, false
	}

	c.logger.Debug("context over budget, compressing",
		"estimated_tokens", estimate,
		"max_tokens", c.maxTokens)

	summary, err := c.rewriter.Summarize(ctx, raw)
	if err == nil && summary != "" && EstimateTokens(summary) <= c.maxTokens {
		return summary, true
	}
	if err != nil {
		c.logger.Warn("summarization unavailable, using deterministic truncation", "error", err)
	}

	return c.truncate(raw), true
}

// truncate keeps the first segment (the system/topic anchor) plus the last
// keepTail segments, discarding the middle. The result is hard-capped at the
// byte budget so it is bounded even for degenerate single-segment input.
func (c *Compressor) truncate(raw string) string {
	segments := splitSegments(raw)

	if len(segments) > c.keepTail+1 {
		kept := append([]string{segments[0]}, segments[len(segments)-c.keepTail:]...)
		raw = strings.Join(kept, "\n\n")
	}

	budget := c.maxTokens * charsPerToken
	if len(raw) > budget {
		raw = raw[:budget]
	}
	return raw
}

func splitSegments(raw string) []string {
	var segments []string
	for _, s := range strings.Split(raw, "\n\n") {
		if strings.TrimSpace(s) != "" {
			segments = append(segments, s)
		}
	}
	return segments
}
