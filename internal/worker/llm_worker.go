package worker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aaaa47080/stock-agent-sub002/internal/llm"
	"github.com/aaaa47080/stock-agent-sub002/internal/logging"
	"github.com/aaaa47080/stock-agent-sub002/pkg/types"
)

// LLMWorker is a generic completion-backed worker. The default "chat" worker
// and the analysis personas (technical, news, region-specific market agents)
// are instances of this type with different system prompts.
type LLMWorker struct {
	name         string
	capabilities []string
	systemPrompt string
	client       llm.Client
	logger       *logging.Logger

	mu  sync.Mutex
	ask AskFunc
}

// NewLLMWorker builds a completion-backed worker.
func NewLLMWorker(name, systemPrompt string, capabilities []string, client llm.Client, logger *logging.Logger) *LLMWorker {
	return &LLMWorker{
		name:         name,
		capabilities: capabilities,
		systemPrompt: systemPrompt,
		client:       client,
		logger:       logging.OrNop(logger).WithComponent("worker-" + name),
	}
}

// NewChatWorker builds the general-purpose fallback worker.
func NewChatWorker(client llm.Client, logger *logging.Logger) *LLMWorker {
	return NewLLMWorker(
		"chat",
		"You are a helpful financial assistant. Answer the user's request directly and concisely.",
		[]string{"chat", "general", "conversation"},
		client,
		logger,
	)
}

func (w *LLMWorker) Name() string { return w.name }

func (w *LLMWorker) Capabilities() []string { return w.capabilities }

// SetAsk installs or clears the ask-the-user callback.
func (w *LLMWorker) SetAsk(ask AskFunc) {
	w.mu.Lock()
	w.ask = ask
	w.mu.Unlock()
}

func (w *LLMWorker) Execute(ctx context.Context, task *types.SubTask) (*types.WorkerResult, error) {
	if w.client == nil {
		return nil, fmt.Errorf("worker %s has no llm client", w.name)
	}

	resp, err := w.client.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: w.systemPrompt},
			{Role: "user", Content: buildTaskPrompt(task)},
		},
		Temperature: 0.4,
		MaxTokens:   1500,
	})
	if err != nil {
		return nil, fmt.Errorf("worker %s completion: %w", w.name, err)
	}

	message := strings.TrimSpace(resp.Content)
	if message == "" {
		return &types.WorkerResult{
			Success: false,
			Message: "empty response from model",
			Worker:  w.name,
		}, nil
	}

	return &types.WorkerResult{
		Success: true,
		Message: message,
		Worker:  w.name,
	}, nil
}

func buildTaskPrompt(task *types.SubTask) string {
	var b strings.Builder
	b.WriteString(task.Description)

	if len(task.Context) > 0 {
		keys := make([]string, 0, len(task.Context))
		for key := range task.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		b.WriteString("\n\nContext:\n")
		for _, key := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", key, task.Context[key])
		}
	}
	return b.String()
}
