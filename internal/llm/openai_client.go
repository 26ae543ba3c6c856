package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	agenterrors "github.com/aaaa47080/stock-agent-sub002/internal/errors"
	"github.com/aaaa47080/stock-agent-sub002/internal/logging"
)

// OpenAI API compatible client
type openaiClient struct {
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewOpenAIClient constructs a Client that speaks the OpenAI-compatible chat
// completions API using the provided configuration.
func NewOpenAIClient(config Config, logger *logging.Logger) (Client, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}

	timeout := 120 * time.Second
	if config.Timeout > 0 {
		timeout = time.Duration(config.Timeout) * time.Second
	}

	return &openaiClient{
		model:      config.Model,
		apiKey:     config.APIKey,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.OrNop(logger).WithComponent("llm-openai"),
	}, nil
}

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	Temperature float64      `json:"temperature,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Stream      bool         `json:"stream"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *openaiClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	messages := make([]oaiMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, oaiMessage{Role: msg.Role, Content: msg.Content})
	}

	body, err := json.Marshal(oaiRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, agenterrors.NewTransient(fmt.Errorf("llm request: %w", err), 0)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, agenterrors.NewTransient(fmt.Errorf("read response: %w", err), resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("llm status %d: %s", resp.StatusCode, truncate(string(data), 256))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, agenterrors.NewTransient(err, resp.StatusCode)
		}
		return nil, agenterrors.NewPermanent(err, resp.StatusCode)
	}

	var parsed oaiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return nil, agenterrors.NewPermanent(fmt.Errorf("llm error: %s", parsed.Error.Message), resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("llm returned no choices")
	}

	c.logger.Debug("completion",
		"model", c.model,
		"duration", time.Since(start),
		"tokens", parsed.Usage.TotalTokens,
	)

	return &CompletionResponse{
		Content:    parsed.Choices[0].Message.Content,
		StopReason: parsed.Choices[0].FinishReason,
		Usage: TokenUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}

func (c *openaiClient) Model() string {
	return c.model
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
