package provider

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mohammad-safakhou/newsgpt/config"
	"github.com/mohammad-safakhou/newsgpt/models"
	openai_provider "github.com/mohammad-safakhou/newsgpt/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI Client = "openai"
)

// ErrNotConfigured is returned when the provider credential is missing.
var ErrNotConfigured = errors.New("llm provider not configured")

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	// Complete runs one chat completion. A nil tools slice means no tool may be called.
	Complete(ctx context.Context, turns []models.Turn, tools []models.ToolSpec) (models.Completion, error)
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(cfg config.LLMConfig, logger *log.Logger) (Provider, error) {
	switch Client(cfg.Provider) {
	case OpenAI, "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY not set", ErrNotConfigured)
		}
		return openai_provider.NewOpenAIClient(
			cfg.APIKey,
			cfg.BaseURL,
			cfg.Model,
			cfg.Temperature,
			cfg.MaxTokens,
			cfg.Timeout,
			logger,
		), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// Unavailable answers every call with the construction error, so a missing
// credential degrades the chat feature instead of stopping the process.
type Unavailable struct{ Err error }

func (u Unavailable) Complete(context.Context, []models.Turn, []models.ToolSpec) (models.Completion, error) {
	return models.Completion{}, u.Err
}
