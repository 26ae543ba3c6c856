package llm

import (
	"context"

	agenterrors "github.com/aaaa47080/stock-agent-sub002/internal/errors"
	"github.com/aaaa47080/stock-agent-sub002/internal/logging"
)

// retryClient wraps a Client with retry logic
type retryClient struct {
	underlying  Client
	retryConfig agenterrors.RetryConfig
	logger      *logging.Logger
}

// NewRetryClient wraps an LLM client with exponential-backoff retries on
// transient failures.
func NewRetryClient(client Client, retryConfig agenterrors.RetryConfig, logger *logging.Logger) Client {
	return &retryClient{
		underlying:  client,
		retryConfig: retryConfig,
		logger:      logging.OrNop(logger).WithComponent("llm-retry"),
	}
}

func (c *retryClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return agenterrors.RetryWithResultAndLog(ctx, c.retryConfig, func(ctx context.Context) (*CompletionResponse, error) {
		return c.underlying.Complete(ctx, req)
	}, c.logger)
}

func (c *retryClient) Model() string {
	return c.underlying.Model()
}
