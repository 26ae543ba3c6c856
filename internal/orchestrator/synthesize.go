package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/aaaa47080/stock-agent-sub002/internal/llm"
	"github.com/aaaa47080/stock-agent-sub002/pkg/types"
)

// synthesize folds the step results into one answer. Single-result runs pass
// the worker output through untouched; multi-step complex runs get a model
// synthesis, with a plain concatenation as the fallback.
func (e *Engine) synthesize(ctx context.Context, state *State) Node {
	successes := state.successfulResults()

	if len(state.Results) == 0 {
		state.Response = "I could not produce a result for that request."
		return NodeSaveMessages
	}

	if len(state.Results) == 1 || state.Complexity != ComplexityComplex {
		res := state.Results[0]
		if res.Success && res.Quality != types.QualityFail {
			state.Response = res.Message
		} else {
			state.Response = fmt.Sprintf("The request could not be completed: %s", res.Message)
		}
		return NodeSaveMessages
	}

	if len(successes) == 0 {
		state.Response = "None of the analysis steps completed successfully:\n" + renderResults(state.Results)
		return NodeSaveMessages
	}

	input := fmt.Sprintf("Original question: %s\n\nStep results:\n%s", state.Query, renderResults(state.Results))
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: synthesizeSystemPrompt},
			{Role: "user", Content: input},
		},
		Temperature: 0.4,
		MaxTokens:   1500,
	})
	if err != nil {
		e.logger.Warn("synthesis failed, returning concatenated results",
			"session_id", state.SessionID, "error", err)
		state.Response = renderResults(successes)
		return NodeSaveMessages
	}

	state.Response = strings.TrimSpace(resp.Content)
	if state.Response == "" {
		state.Response = renderResults(successes)
	}
	return NodeSaveMessages
}

func renderResults(results []types.WorkerResult) string {
	var b strings.Builder
	for i, res := range results {
		marker := ""
		if !res.Success || res.Quality == types.QualityFail {
			marker = " (failed)"
			if res.QualityReason != "" {
				marker = fmt.Sprintf(" (rejected: %s)", res.QualityReason)
			}
		}
		fmt.Fprintf(&b, "[%d] %s%s:\n%s\n\n", i+1, res.Worker, marker, res.Message)
	}
	return strings.TrimSpace(b.String())
}
