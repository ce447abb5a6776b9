package gemini

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/edgard/taskbot/internal/model"
	"github.com/edgard/taskbot/internal/resilience"
)

var parseNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func TestParseDraft(t *testing.T) {
	t.Parallel()

	t.Run("full draft", func(t *testing.T) {
		t.Parallel()
		d, err := parseDraft(`{"title":" Review budget ","description":"Q3 numbers","priority":"HIGH",
			"due_date":"2025-03-11 17:00","tags":["Finance","finance","q3"],"estimated_hours":2.5}`, parseNow)
		require.NoError(t, err)
		assert.Equal(t, "Review budget", d.Title)
		assert.Equal(t, "Q3 numbers", d.Description)
		assert.Equal(t, model.PriorityHigh, d.Priority)
		assert.Equal(t, model.Tags{"finance", "q3"}, d.Tags)
		require.NotNil(t, d.EstimatedHours)
		assert.InDelta(t, 2.5, *d.EstimatedHours, 0.001)
		require.NotNil(t, d.DueDate)
		assert.Equal(t, time.Date(2025, 3, 11, 17, 0, 0, 0, time.UTC), *d.DueDate)
	})

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		d, err := parseDraft(`{"title":"Water plants","description":"","priority":"whenever","due_date":"","tags":[],"estimated_hours":0}`, parseNow)
		require.NoError(t, err)
		assert.Equal(t, model.PriorityMedium, d.Priority)
		assert.Nil(t, d.DueDate)
		assert.Nil(t, d.EstimatedHours)
		assert.Empty(t, d.Tags)
	})

	t.Run("bare day is end of day", func(t *testing.T) {
		t.Parallel()
		d, err := parseDraft(`{"title":"x","due_date":"2025-03-12"}`, parseNow)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 3, 12, 23, 59, 0, 0, time.UTC), *d.DueDate)
	})

	t.Run("errors", func(t *testing.T) {
		t.Parallel()
		_, err := parseDraft(`{"title":"  "}`, parseNow)
		assert.ErrorIs(t, err, ErrEmptyDraft)
		_, err = parseDraft(`not json`, parseNow)
		assert.Error(t, err)
		_, err = parseDraft(`{"title":"x","due_date":"soon"}`, parseNow)
		assert.Error(t, err)
	})
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      genai.NewContentFromText(text, genai.RoleModel),
			FinishReason: genai.FinishReasonStop,
		}},
	}
}

func newTestClient(gen generateFunc) *sdkClient {
	return &sdkClient{
		generate:      gen,
		breaker:       resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "test", MaxFailures: 2, OpenTimeout: time.Hour}, nil),
		log:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		contentConfig: &genai.GenerateContentConfig{},
		modelName:     "test-model",
		maxRetries:    2,
		retryDelay:    time.Millisecond,
	}
}

func TestParseTask_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	calls := 0
	c := newTestClient(func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		calls++
		if calls < 3 {
			return nil, genai.APIError{Code: 503, Message: "overloaded"}
		}
		return textResponse(`{"title":"Call supplier","priority":"low"}`), nil
	})

	d, err := c.ParseTask(context.Background(), "call the supplier sometime", parseNow)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, "Call supplier", d.Title)
	assert.Equal(t, model.PriorityLow, d.Priority)
}

func TestParseTask_GivesUp(t *testing.T) {
	t.Parallel()

	t.Run("retries exhausted", func(t *testing.T) {
		t.Parallel()
		calls := 0
		c := newTestClient(func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			calls++
			return nil, genai.APIError{Code: 500}
		})
		_, err := c.ParseTask(context.Background(), "anything", parseNow)
		require.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("client error is not retried", func(t *testing.T) {
		t.Parallel()
		calls := 0
		c := newTestClient(func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			calls++
			return nil, genai.APIError{Code: 400}
		})
		_, err := c.ParseTask(context.Background(), "anything", parseNow)
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("plain error is not retried", func(t *testing.T) {
		t.Parallel()
		calls := 0
		c := newTestClient(func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			calls++
			return nil, errors.New("dial tcp: refused")
		})
		_, err := c.ParseTask(context.Background(), "anything", parseNow)
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("empty text", func(t *testing.T) {
		t.Parallel()
		c := newTestClient(nil)
		_, err := c.ParseTask(context.Background(), "", parseNow)
		assert.ErrorIs(t, err, ErrEmptyDraft)
	})
}

func TestParseTask_BreakerOpens(t *testing.T) {
	t.Parallel()

	calls := 0
	c := newTestClient(func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		calls++
		return nil, genai.APIError{Code: 400}
	})
	for range 2 {
		_, err := c.ParseTask(context.Background(), "anything", parseNow)
		require.Error(t, err)
	}
	_, err := c.ParseTask(context.Background(), "anything", parseNow)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 2, calls)
}

func TestExtractText_Blocked(t *testing.T) {
	t.Parallel()

	c := newTestClient(nil)
	_, err := c.extractText(context.Background(), &genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "safety")

	_, err = c.extractText(context.Background(), &genai.GenerateContentResponse{})
	assert.Error(t, err)
}

func TestBuildTaskPrompt(t *testing.T) {
	t.Parallel()

	p := buildTaskPrompt("finish report by friday", parseNow)
	assert.Contains(t, p, "2025-03-10 09:00")
	assert.Contains(t, p, "Monday")
	assert.Contains(t, p, "finish report by friday")
}
