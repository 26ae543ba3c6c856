package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/aaaa47080/stock-agent-sub002/internal/codebook"
	agenterrors "github.com/aaaa47080/stock-agent-sub002/internal/errors"
	"github.com/aaaa47080/stock-agent-sub002/internal/llm"
	"github.com/aaaa47080/stock-agent-sub002/internal/logging"
	"github.com/aaaa47080/stock-agent-sub002/internal/orchestrator"
	"github.com/aaaa47080/stock-agent-sub002/internal/registry"
	"github.com/aaaa47080/stock-agent-sub002/internal/session"
	"github.com/aaaa47080/stock-agent-sub002/internal/worker"
)

const (
	technicalPrompt = "You are a technical analyst for financial markets. Work only from the task " +
		"description and the provided context. Report indicators, levels, and trend structure concisely."
	newsPrompt = "You summarize market-moving news for a financial assistant. Stick to the task's " +
		"subject, order items by impact, and state clearly when nothing notable is known to you."
	marketPrompt = "You are a market analyst covering regional markets and macro conditions. Answer " +
		"the task directly with the key drivers and its current state."
)

// serverContainer is the server's wired engine. No gateway is attached: every
// user question suspends the run, and the client answers via /v1/resume.
type serverContainer struct {
	Engine *orchestrator.Engine
}

// marketClockResource reports the current UTC time and whether the US regular
// session is open. Holidays are not modeled.
func marketClockResource() registry.ResourceFunc {
	return registry.ResourceFunc{
		ResourceName: "market-clock",
		Fn: func(_ context.Context, _ map[string]any) (any, error) {
			now := time.Now().UTC()
			weekday := now.Weekday() >= time.Monday && now.Weekday() <= time.Friday
			afterOpen := now.Hour() > 13 || (now.Hour() == 13 && now.Minute() >= 30)
			state := "closed"
			if weekday && afterOpen && now.Hour() < 20 {
				state = "open"
			}
			return fmt.Sprintf("utc=%s us_regular_session=%s", now.Format(time.RFC3339), state), nil
		},
	}
}

func buildContainer(ctx context.Context, cfg serverConfig, logger *logging.Logger) (*serverContainer, error) {
	client, err := llm.NewOpenAIClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}
	client = llm.NewRetryClient(client, agenterrors.DefaultRetryConfig(), logger)

	reg := registry.NewCapabilityRegistry()
	workers := []worker.Worker{
		worker.NewChatWorker(client, logger),
		worker.NewLLMWorker("technical", technicalPrompt,
			[]string{"technical-analysis", "indicators", "charts"}, client, logger),
		worker.NewLLMWorker("news", newsPrompt,
			[]string{"news-search", "headlines", "sentiment"}, client, logger),
		worker.NewLLMWorker("market", marketPrompt,
			[]string{"market-analysis", "macro", "sectors"}, client, logger),
	}
	for _, w := range workers {
		if err := reg.Register(w); err != nil {
			return nil, fmt.Errorf("register worker: %w", err)
		}
	}

	resources := registry.NewResourceRegistry()
	if err := resources.Register(marketClockResource(), "technical", "market"); err != nil {
		return nil, fmt.Errorf("register resource: %w", err)
	}

	sessions, err := session.NewFileStore(filepath.Join(cfg.DataDir, "sessions"))
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}

	backend, err := codebook.NewFileBackend(filepath.Join(cfg.DataDir, "codebook"))
	if err != nil {
		return nil, fmt.Errorf("codebook backend: %w", err)
	}
	book, err := codebook.New(ctx, backend, codebook.Options{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("codebook: %w", err)
	}

	checkpoints, err := orchestrator.NewFileCheckpointStore(filepath.Join(cfg.DataDir, "checkpoints"))
	if err != nil {
		return nil, fmt.Errorf("checkpoint store: %w", err)
	}

	engine, err := orchestrator.New(client, reg, sessions, orchestrator.Options{
		Resources:   resources,
		Codebook:    book,
		Checkpoints: checkpoints,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	return &serverContainer{Engine: engine}, nil
}
