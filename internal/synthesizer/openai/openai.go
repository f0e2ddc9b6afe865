// Package openai answers through an OpenAI-compatible /chat/completions
// endpoint such as OpenRouter.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"legalrag/internal/domain"
	"legalrag/internal/logger"
	"legalrag/internal/synthesizer"
)

// Default configuration values.
const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "deepseek/deepseek-r1-0528:free"
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the chat synthesizer.
type Config struct {
	// BaseURL is the API base URL (default: OpenRouter).
	BaseURL string

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string

	// Model is the chat model to use.
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration

	// MaxPromptTokens caps the estimated prompt size (default: 1024).
	MaxPromptTokens int

	// MaxTokens caps the completion length; zero leaves it to the server.
	MaxTokens int

	// Referer and Title are sent as OpenRouter attribution headers when set.
	Referer string
	Title   string
}

// Synthesizer implements domain.Synthesizer over chat completions.
type Synthesizer struct {
	client          *http.Client
	baseURL         string
	apiKey          string
	model           string
	maxPromptTokens int
	maxTokens       int
	referer         string
	title           string
}

var _ domain.Synthesizer = (*Synthesizer)(nil)

type chatCompletionRequest struct {
	Model     string              `json:"model"`
	Messages  []chatCompletionMsg `json:"messages"`
	MaxTokens int                 `json:"max_tokens,omitempty"`
}

type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// New creates a chat synthesizer.
func New(cfg Config) (*Synthesizer, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w: missing API key in env %q", domain.ErrInvalidConfig, cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxPromptTokens <= 0 {
		cfg.MaxPromptTokens = synthesizer.DefaultMaxPromptTokens
	}
	return &Synthesizer{
		client:          &http.Client{Timeout: cfg.Timeout},
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:          key,
		model:           cfg.Model,
		maxPromptTokens: cfg.MaxPromptTokens,
		maxTokens:       cfg.MaxTokens,
		referer:         cfg.Referer,
		title:           cfg.Title,
	}, nil
}

// Name returns the identifier of this synthesizer.
func (s *Synthesizer) Name() string { return "openai" }

// Generate asks the model to answer query from passages. An oversized prompt
// and an empty completion produce fixed answers rather than errors.
func (s *Synthesizer) Generate(ctx context.Context, query, passages string) (string, error) {
	if n := synthesizer.PromptTokens(query, passages); n > s.maxPromptTokens {
		logger.Warn("prompt has ~%d tokens, budget is %d", n, s.maxPromptTokens)
		return synthesizer.ContextTooLong, nil
	}

	reqBody := chatCompletionRequest{
		Model: s.model,
		Messages: []chatCompletionMsg{
			{Role: "system", Content: synthesizer.SystemPrompt},
			{Role: "user", Content: synthesizer.BuildPrompt(query, passages)},
		},
		MaxTokens: s.maxTokens,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %w", domain.ErrSynthesis, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %w", domain.ErrSynthesis, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	if s.referer != "" {
		req.Header.Set("HTTP-Referer", s.referer)
	}
	if s.title != "" {
		req.Header.Set("X-Title", s.title)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: send request: %w", domain.ErrSynthesis, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", domain.ErrSynthesis, err)
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("%w: decode response (status %d): %w", domain.ErrSynthesis, resp.StatusCode, err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrSynthesis, chatResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrSynthesis, resp.StatusCode, string(body))
	}

	if len(chatResp.Choices) == 0 {
		return synthesizer.NoAnswer, nil
	}
	answer := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if answer == "" {
		return synthesizer.NoAnswer, nil
	}
	return answer, nil
}
