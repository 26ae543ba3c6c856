package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/aaaa47080/stock-agent-sub002/internal/hitl"
	"github.com/aaaa47080/stock-agent-sub002/internal/llm"
)

const (
	intentConfirm  = "confirm"
	intentCancel   = "cancel"
	intentModify   = "modify"
	intentQuestion = "question"
)

// confirm presents the plan and suspends for the user's verdict.
func (e *Engine) confirm(state *State) (Node, *hitl.Question) {
	var b strings.Builder
	b.WriteString("Here is the plan:\n")
	b.WriteString(renderPlan(state.Tasks))
	if state.DiscussAnswer != "" {
		fmt.Fprintf(&b, "\n%s\n", state.DiscussAnswer)
		state.DiscussAnswer = ""
	}
	b.WriteString("\nProceed?")

	return NodeConfirmDecision, &hitl.Question{
		Type:     hitl.QuestionConfirmPlan,
		Question: b.String(),
		Options:  []string{"yes", "no"},
	}
}

// confirmDecision routes the user's reply to one of four intents. The model
// classifies free-form replies; a keyword heuristic covers the common cases
// and serves as the fallback when the model is unavailable.
func (e *Engine) confirmDecision(ctx context.Context, state *State) (Node, error) {
	answer := strings.TrimSpace(state.takeAnswer())

	intent := heuristicConfirmIntent(answer)
	if intent == "" {
		intent = e.classifyConfirmIntent(ctx, answer)
	}

	switch intent {
	case intentConfirm:
		return NodeExecute, nil
	case intentCancel:
		state.Cancelled = true
		state.Response = "Request cancelled."
		return NodeSaveMessages, nil
	case intentQuestion:
		return e.discuss(ctx, state, answer)
	default: // modify
		state.PlanModification = answer
		state.SeededEntryID = ""
		return NodePlan, nil
	}
}

func heuristicConfirmIntent(answer string) string {
	lowered := strings.ToLower(answer)
	switch lowered {
	case "", "y", "yes", "ok", "okay", "sure", "go", "go ahead", "proceed", "confirm":
		return intentConfirm
	case "n", "no", "cancel", "stop", "abort", "nevermind", "never mind":
		return intentCancel
	}
	if strings.HasSuffix(lowered, "?") {
		return intentQuestion
	}
	return ""
}

type confirmIntent struct {
	Intent string `json:"intent"`
}

func (e *Engine) classifyConfirmIntent(ctx context.Context, answer string) string {
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: confirmIntentSystemPrompt},
			{Role: "user", Content: answer},
		},
		Temperature: 0.0,
		MaxTokens:   60,
	})
	if err != nil {
		e.logger.Warn("confirm intent classification failed, treating reply as modification", "error", err)
		return intentModify
	}
	var parsed confirmIntent
	if err := llm.DecodeJSON(resp.Content, &parsed); err != nil {
		return intentModify
	}
	switch parsed.Intent {
	case intentConfirm, intentCancel, intentModify, intentQuestion:
		return parsed.Intent
	}
	return intentModify
}

type discussReply struct {
	Answer          string `json:"answer"`
	ReplanRequested bool   `json:"replan_requested"`
}

// discuss answers a question about the pending plan. If the discussion
// surfaces a change request, the plan is rebuilt; otherwise the answer is
// shown alongside the plan on the next confirmation round.
func (e *Engine) discuss(ctx context.Context, state *State, question string) (Node, error) {
	input := fmt.Sprintf("Plan:\n%s\nUser question: %s", renderPlan(state.Tasks), question)
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: discussSystemPrompt},
			{Role: "user", Content: input},
		},
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		e.logger.Warn("plan discussion failed", "error", err)
		state.DiscussAnswer = "I could not answer that right now."
		return NodeConfirm, nil
	}

	var parsed discussReply
	if err := llm.DecodeJSON(resp.Content, &parsed); err != nil {
		state.DiscussAnswer = strings.TrimSpace(resp.Content)
		return NodeConfirm, nil
	}

	if parsed.ReplanRequested {
		state.PlanModification = question
		state.SeededEntryID = ""
		return NodePlan, nil
	}
	state.DiscussAnswer = parsed.Answer
	return NodeConfirm, nil
}
