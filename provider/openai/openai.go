package openai_provider

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/mohammad-safakhou/newsgpt/models"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
)

// client implements provider.Provider on top of go-openai's chat completions
type client struct {
	api             *openai.Client
	completionModel string
	temperature     float32
	maxTokens       int
	logger          *log.Logger
}

// NewOpenAIClient creates a new OpenAI client. A zero temperature leaves the model default.
func NewOpenAIClient(apiKey, baseURL, completionModel string, temperature float64, maxTokens int, timeout time.Duration, logger *log.Logger) *client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[OPENAI] ", log.LstdFlags)
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &client{
		api:             openai.NewClientWithConfig(cfg),
		completionModel: completionModel,
		temperature:     float32(temperature),
		maxTokens:       maxTokens,
		logger:          logger,
	}
}

func toMessages(turns []models.Turn) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		m := openai.ChatCompletionMessage{Role: string(t.Role), Content: t.Content, ToolCallID: t.ToolCallID}
		for _, tc := range t.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
				ID:       tc.ID,
				Type:     openai.ToolTypeFunction,
				Function: openai.FunctionCall{Name: tc.Name, Arguments: tc.Arguments},
			})
		}
		out = append(out, m)
	}
	return out
}

func toTools(specs []models.ToolSpec) []openai.Tool {
	if len(specs) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(specs))
	for _, spec := range specs {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.Parameters,
			},
		})
	}
	return out
}

func fromMessage(m openai.ChatCompletionMessage) models.Turn {
	t := models.Turn{Role: models.Role(m.Role), Content: m.Content, ToolCallID: m.ToolCallID}
	for _, tc := range m.ToolCalls {
		t.ToolCalls = append(t.ToolCalls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return t
}

// classify maps go-openai failures onto the shared sentinels. Anything that
// is not a transport or HTTP status failure is a malformed upstream reply.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: API returned status %d: %s", models.ErrNetwork, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("%w: API returned status: %d", models.ErrNetwork, reqErr.HTTPStatusCode)
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: failed to send request: %v", models.ErrNetwork, err)
	}
	return fmt.Errorf("%w: failed to parse response: %v", models.ErrUpstream, err)
}

// Complete sends one chat completion request. Tools are advertised only when given.
func (c *client) Complete(ctx context.Context, turns []models.Turn, tools []models.ToolSpec) (models.Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.completionModel,
		Messages:    toMessages(turns),
		Tools:       toTools(tools),
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	c.logger.Printf("chat completion model=%s messages=%d tools=%d", c.completionModel, len(turns), len(tools))

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return models.Completion{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return models.Completion{}, fmt.Errorf("%w: no choices in response", models.ErrUpstream)
	}

	choice := resp.Choices[0]
	return models.Completion{
		FinishReason:     string(choice.FinishReason),
		Message:          fromMessage(choice.Message),
		PromptTokens:     int64(resp.Usage.PromptTokens),
		CompletionTokens: int64(resp.Usage.CompletionTokens),
	}, nil
}
