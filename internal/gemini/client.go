// Package gemini turns free form text into task drafts using Google's Gemini
// API. It backs the /quick-task command and is optional.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/taskbot/internal/config"
	"github.com/edgard/taskbot/internal/resilience"
)

const (
	defaultMaxRetries = 2
	defaultRetryDelay = 2 * time.Second

	breakerFailures = 5
	breakerCooldown = time.Minute
)

// Client parses natural language into task drafts.
type Client interface {
	// ParseTask extracts a task from text. now anchors relative dates such as
	// "tomorrow" and its location is the user's timezone.
	ParseTask(ctx context.Context, text string, now time.Time) (*TaskDraft, error)
}

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

type sdkClient struct {
	generate      generateFunc
	breaker       *resilience.CircuitBreaker
	log           *slog.Logger
	contentConfig *genai.GenerateContentConfig
	modelName     string
	timeout       time.Duration
	maxRetries    int
	retryDelay    time.Duration
}

// NewClient creates a Gemini client for cfg.
func NewClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	temperature := cfg.Temperature
	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized successfully", "model", cfg.ModelName)
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:        "gemini",
		MaxFailures: breakerFailures,
		OpenTimeout: breakerCooldown,
	}, log)
	return &sdkClient{
		generate: gi.Models.GenerateContent,
		breaker:  breaker,
		log:      logger,
		contentConfig: &genai.GenerateContentConfig{
			Temperature:       &temperature,
			SystemInstruction: genai.NewContentFromText(TaskParserSystemInstruction, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    taskDraftSchema,
		},
		modelName:  cfg.ModelName,
		timeout:    cfg.Timeout,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}, nil
}

var taskDraftSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title":           {Type: genai.TypeString, Description: "Short imperative task title."},
		"description":     {Type: genai.TypeString, Description: "Extra details from the text. Empty if none."},
		"priority":        {Type: genai.TypeString, Enum: []string{"low", "medium", "high", "urgent"}},
		"due_date":        {Type: genai.TypeString, Description: "Due date as YYYY-MM-DD HH:MM in the user's timezone, or YYYY-MM-DD. Empty if none."},
		"tags":            {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}, Description: "Lowercase single word labels."},
		"estimated_hours": {Type: genai.TypeNumber, Description: "Estimated effort in hours. 0 if not stated."},
	},
	Required: []string{"title", "description", "priority", "due_date", "tags", "estimated_hours"},
}

func (c *sdkClient) ParseTask(ctx context.Context, text string, now time.Time) (*TaskDraft, error) {
	if text == "" {
		return nil, ErrEmptyDraft
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.log.DebugContext(ctx, "Parsing task text", "length", len(text))
	contents := []*genai.Content{genai.NewContentFromText(buildTaskPrompt(text, now), genai.RoleUser)}

	var resp *genai.GenerateContentResponse
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.generateContentWithRetries(ctx, contents)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse task: %w", err)
	}

	jsonText, err := c.extractText(ctx, resp)
	if err != nil {
		return nil, err
	}

	draft, err := parseDraft(jsonText, now)
	if err != nil {
		c.log.WarnContext(ctx, "Unusable task draft from Gemini", "error", err, "response_text", jsonText)
		return nil, err
	}
	return draft, nil
}

func (c *sdkClient) generateContentWithRetries(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	for i := 0; ; i++ {
		resp, err := c.generate(ctx, c.modelName, contents, c.contentConfig)
		if err == nil {
			return resp, nil
		}

		code, retry := retriable(err)
		if !retry {
			c.log.ErrorContext(ctx, "Gemini API call failed with non-retriable error", "error", err)
			return nil, fmt.Errorf("gemini API call failed: %w", err)
		}
		if i >= c.maxRetries {
			c.log.ErrorContext(ctx, "Gemini API call failed after max retries", "error", err, "code", code)
			return nil, fmt.Errorf("gemini API call failed after %d retries (code %d): %w", c.maxRetries, code, err)
		}

		c.log.InfoContext(ctx, "Retrying Gemini API call", "attempt", i+1, "delay", c.retryDelay, "code", code)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
}

// retriable reports whether err is a server side Gemini error worth retrying.
func retriable(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Code == 500 || apiErr.Code == 503
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Code == 500 || apiErrPtr.Code == 503
	}
	return 0, false
}

func (c *sdkClient) extractText(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini returned no response")
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reason := string(resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reason = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.ErrorContext(ctx, "Gemini request blocked", "reason", reason)
		return "", fmt.Errorf("task parsing blocked by safety filter: %s", reason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finish := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finish = string(resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response missing content", "finish_reason", finish)
		return "", fmt.Errorf("gemini returned no content, finish reason: %s", finish)
	}

	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini returned empty text")
	}
	return text, nil
}
