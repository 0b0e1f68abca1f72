package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/vampirenirmal/lessonflow/internal/lesson"
)

// Client talks to the AI collaborator over HTTP. One client serves all three
// contracts: classification, content generation, and text rewriting.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	maxRetries int
	limiter    *rate.Limiter
	apiType    string // "anthropic" or "openai"
	logger     *slog.Logger
}

type Option func(*Client)

func WithRetry(maxRetries int) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		transport := c.httpClient.Transport
		c.httpClient = &http.Client{
			Timeout:   timeout,
			Transport: transport,
		}
	}
}

func WithRateLimit(requestsPerMinute, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
	}
}

func WithAPIConfig(baseURL, model string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
		c.model = model
		if strings.Contains(baseURL, "openai") {
			c.apiType = "openai"
		} else {
			c.apiType = "anthropic"
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	c := &Client{
		apiKey:  apiKey,
		baseURL: "https://api.anthropic.com/v1",
		model:   "claude-3-5-sonnet-20241022",
		httpClient: &http.Client{
			Timeout:   60 * time.Second,
			Transport: transport,
		},
		maxRetries: 3,
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
		apiType:    "anthropic",
		logger:     slog.Default().With("component", "ai_client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger.Debug("AI client initialized",
		"api_type", c.apiType,
		"base_url", c.baseURL,
		"model", c.model,
		"max_retries", c.maxRetries)

	return c
}

// Classify implements IntentClassifier.
func (c *Client) Classify(ctx context.Context, text string, hint ClassifyHint) (IntentResult, error) {
	prompt := buildClassifyPrompt(text, hint)

	raw, err := c.complete(ctx, prompt, true)
	if err != nil {
		return IntentResult{}, fmt.Errorf("classifying intent: %w", err)
	}

	var result IntentResult
	if err := parseJSONResponse(raw, &result); err != nil {
		return IntentResult{}, fmt.Errorf("parsing classifier response: %w", err)
	}
	if result.Parameters == nil {
		result.Parameters = make(map[string]string)
	}

	c.logger.Debug("intent classified",
		"intent", result.Intent,
		"confidence", result.Confidence,
		"sufficient", result.IsDataSufficient,
		"missing_slots", len(result.MissingSlots))

	return result, nil
}

// GeneratePlan implements ContentGenerator.
func (c *Client) GeneratePlan(ctx context.Context, topic, age, language, contextSummary string) (string, error) {
	prompt := fmt.Sprintf(
		"Write a numbered lesson plan about %q for learners aged %s, in language %q. "+
			"One line per slide, format: \"N. Title - goal\". 5 to 8 slides, mix content, exercises, a game, and a quiz.",
		topic, age, language)
	if contextSummary != "" {
		prompt += "\n\nConversation so far:\n" + contextSummary
	}

	plan, err := c.complete(ctx, prompt, false)
	if err != nil {
		return "", fmt.Errorf("generating plan: %w", err)
	}
	return plan, nil
}

// GenerateItem implements ContentGenerator.
func (c *Client) GenerateItem(ctx context.Context, desc lesson.ItemDescription, topic, age string) (string, error) {
	prompt := fmt.Sprintf(
		"Create the content for one lesson slide.\nLesson topic: %s\nLearner age: %s\n"+
			"Slide %d: %s\nKind: %s\nGoal: %s\n\nReturn the finished slide content only.",
		topic, age, desc.Index, desc.Title, desc.Kind, desc.Goal)

	content, err := c.complete(ctx, prompt, false)
	if err != nil {
		return "", fmt.Errorf("generating item %d: %w", desc.Index, err)
	}
	return content, nil
}

// RewritePlan implements ContentGenerator.
func (c *Client) RewritePlan(ctx context.Context, currentPlan, changeRequest string) (string, error) {
	prompt := fmt.Sprintf(
		"Rewrite this lesson plan applying the requested change. Keep the numbered one-line-per-slide format.\n\n"+
			"Current plan:\n%s\n\nRequested change:\n%s",
		currentPlan, changeRequest)

	plan, err := c.complete(ctx, prompt, false)
	if err != nil {
		return "", fmt.Errorf("rewriting plan: %w", err)
	}
	return plan, nil
}

// Clarify implements TextRewriter.
func (c *Client) Clarify(ctx context.Context, scenario string, cc ClarifyContext) (string, error) {
	prompt := fmt.Sprintf(
		"You help a teacher use a lesson builder. Situation: %s.\n"+
			"Existing slides: %s (count %d). The teacher asked: %q.\n"+
			"Write 1-2 warm sentences in language %q asking them to pick or adjust. "+
			"Never sound technical and never blame the teacher.",
		scenario, strings.Join(cc.ItemTitles, "; "), cc.ItemCount, cc.Requested, cc.Language)

	msg, err := c.complete(ctx, prompt, false)
	if err != nil {
		return "", fmt.Errorf("clarifying %s: %w", scenario, err)
	}
	return msg, nil
}

// Soften implements TextRewriter.
func (c *Client) Soften(ctx context.Context, failure string, sc SoftenContext) (string, error) {
	prompt := fmt.Sprintf(
		"A lesson builder hit a technical problem: %q.\n"+
			"The teacher had asked: %q (intent %s, lesson %q).\n"+
			"Write 1-3 encouraging sentences in language %q suggesting what to try next. "+
			"Do not use words like error, failure, or problem.",
		failure, sc.OriginalMessage, sc.Intent, sc.LessonTitle, sc.Language)

	msg, err := c.complete(ctx, prompt, false)
	if err != nil {
		return "", fmt.Errorf("softening failure: %w", err)
	}
	return msg, nil
}

// Summarize implements TextRewriter.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	prompt := "Summarize this conversation history concisely, preserving the topic, learner age, " +
		"decisions made, and pending requests:\n\n" + text

	summary, err := c.complete(ctx, prompt, false)
	if err != nil {
		return "", fmt.Errorf("summarizing context: %w", err)
	}
	return summary, nil
}

func buildClassifyPrompt(text string, hint ClassifyHint) string {
	var b strings.Builder
	b.WriteString("Classify the user's request for a lesson builder. Respond with JSON only:\n")
	b.WriteString(`{"intent":"create_lesson|edit_plan|generate_slides|edit_slide|help|free_chat",` +
		`"confidence":0.0,"parameters":{"topic":"","target_age":""},"language":"en",` +
		`"is_data_sufficient":true,"missing_slots":[],"suggested_question":""}` + "\n\n")
	b.WriteString("Required slots for content intents: topic, target_age. ")
	b.WriteString("If a slot is missing, set is_data_sufficient=false, list it in missing_slots, ")
	b.WriteString("and write one friendly clarifying question in the user's language.\n\n")

	if hint.Step != "" {
		fmt.Fprintf(&b, "Conversation step: %s\n", hint.Step)
	}
	if hint.Topic != "" {
		fmt.Fprintf(&b, "Known topic: %s\n", hint.Topic)
	}
	if hint.TargetAge != "" {
		fmt.Fprintf(&b, "Known target age: %s\n", hint.TargetAge)
	}
	if hint.ContextSummary != "" {
		fmt.Fprintf(&b, "Conversation summary: %s\n", hint.ContextSummary)
	}

	fmt.Fprintf(&b, "\nUser message: %q", text)
	return b.String()
}

func (c *Client) complete(ctx context.Context, prompt string, forceJSON bool) (string, error) {
	requestID := fmt.Sprintf("api_%d", time.Now().UnixNano())
	start := time.Now()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait failed: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		attemptStart := time.Now()
		response, err := c.doRequest(ctx, prompt, forceJSON)
		if err == nil {
			c.logger.Debug("API request successful",
				"request_id", requestID,
				"attempt", attempt,
				"duration_ms", time.Since(attemptStart).Milliseconds(),
				"response_length", len(response))
			return response, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.logger.Warn("API request failed, will retry",
			"request_id", requestID,
			"attempt", attempt,
			"error", err)
	}

	c.logger.Error("API request failed after max retries",
		"request_id", requestID,
		"max_retries", c.maxRetries,
		"total_duration_ms", time.Since(start).Milliseconds(),
		"last_error", lastErr)

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) doRequest(ctx context.Context, prompt string, forceJSON bool) (string, error) {
	if c.apiType == "openai" {
		return c.doOpenAIRequest(ctx, prompt, forceJSON)
	}
	return c.doAnthropicRequest(ctx, prompt, forceJSON)
}

func (c *Client) doOpenAIRequest(ctx context.Context, prompt string, forceJSON bool) (string, error) {
	messages := []map[string]string{{"role": "user", "content": prompt}}
	if forceJSON {
		messages = append([]map[string]string{{
			"role":    "system",
			"content": "Respond with a single valid JSON object only. No markdown, no extra text.",
		}}, messages...)
	}

	requestBody := map[string]interface{}{
		"model":      c.model,
		"messages":   messages,
		"max_tokens": 4096,
	}
	if forceJSON {
		requestBody["response_format"] = map[string]string{"type": "json_object"}
	}

	respBody, err := c.post(ctx, "/chat/completions", requestBody, map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	})
	if err != nil {
		return "", err
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return response.Choices[0].Message.Content, nil
}

func (c *Client) doAnthropicRequest(ctx context.Context, prompt string, forceJSON bool) (string, error) {
	requestBody := map[string]interface{}{
		"model":      c.model,
		"messages":   []map[string]string{{"role": "user", "content": prompt}},
		"max_tokens": 4096,
	}
	if forceJSON {
		requestBody["system"] = "Respond with a single valid JSON object only. No markdown, no extra text."
	}

	respBody, err := c.post(ctx, "/messages", requestBody, map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": "2023-06-01",
	})
	if err != nil {
		return "", err
	}

	var response struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if len(response.Content) == 0 {
		return "", fmt.Errorf("no content in response")
	}
	return response.Content[0].Text, nil
}

func (c *Client) post(ctx context.Context, path string, requestBody any, headers map[string]string) ([]byte, error) {
	body, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
