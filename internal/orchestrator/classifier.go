package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/aaaa47080/stock-agent-sub002/internal/hitl"
	"github.com/aaaa47080/stock-agent-sub002/internal/llm"
	"github.com/aaaa47080/stock-agent-sub002/internal/session"
)

// classification is the parsed model output.
type classification struct {
	Complexity        string   `json:"complexity"`
	Intent            string   `json:"intent"`
	TargetWorker      string   `json:"target_worker"`
	Topics            []string `json:"topics"`
	Entities          []string `json:"entities"`
	AmbiguityQuestion string   `json:"ambiguity_question"`
}

// classify labels the working query. A classification error is never fatal:
// any model or parse failure falls open to a simple chat run.
func (e *Engine) classify(ctx context.Context, state *State, sess *session.Session) (Node, *hitl.Question, error) {
	result := e.runClassification(ctx, state.WorkingQuery, sess)

	state.Complexity = result.Complexity
	state.Intent = result.Intent
	state.TargetWorker = result.TargetWorker
	state.Topics = result.Topics
	state.Entities = result.Entities
	state.AmbiguityQuestion = result.AmbiguityQuestion

	if state.Complexity == ComplexityAmbiguous {
		if state.ClarifyRounds >= e.cfg.MaxClarifyRounds {
			e.logger.Warn("clarification rounds exhausted, proceeding as simple chat",
				"session_id", state.SessionID, "rounds", state.ClarifyRounds)
			state.Complexity = ComplexitySimple
			state.TargetWorker = e.cfg.DefaultWorker
			return NodePlan, nil, nil
		}
		return NodeClarify, &hitl.Question{
			Type:     hitl.QuestionClarify,
			Question: state.AmbiguityQuestion,
		}, nil
	}

	return NodePlan, nil, nil
}

func (e *Engine) runClassification(ctx context.Context, query string, sess *session.Session) classification {
	fallback := classification{
		Complexity:   ComplexitySimple,
		Intent:       "chat",
		TargetWorker: e.cfg.DefaultWorker,
	}

	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: classifierSystemPrompt},
			{Role: "user", Content: e.buildClassifierInput(query, sess)},
		},
		Temperature: 0.1,
		MaxTokens:   400,
	})
	if err != nil {
		e.logger.Warn("classification failed, falling open to simple chat", "error", err)
		return fallback
	}

	var result classification
	if err := llm.DecodeJSON(resp.Content, &result); err != nil {
		e.logger.Warn("classification parse failed, falling open to simple chat", "error", err)
		return fallback
	}

	switch result.Complexity {
	case ComplexitySimple, ComplexityComplex, ComplexityAmbiguous:
	default:
		result.Complexity = ComplexitySimple
	}
	if strings.TrimSpace(result.TargetWorker) == "" {
		result.TargetWorker = e.cfg.DefaultWorker
	}
	if strings.TrimSpace(result.Intent) == "" {
		result.Intent = "chat"
	}
	if result.Complexity == ComplexityAmbiguous && strings.TrimSpace(result.AmbiguityQuestion) == "" {
		result.AmbiguityQuestion = "Could you clarify what you would like me to analyze?"
	}
	return result
}

func (e *Engine) buildClassifierInput(query string, sess *session.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Available workers: %s\n", strings.Join(e.registry.Names(), ", "))

	if sess != nil {
		if recent := sess.RecentWindow(6); len(recent) > 0 {
			b.WriteString("Recent conversation:\n")
			for _, msg := range recent {
				fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
			}
		}
		if facts := sess.FactMap(); len(facts) > 0 {
			b.WriteString("Known user facts:\n")
			for key, value := range facts {
				fmt.Fprintf(&b, "- %s: %s\n", key, value)
			}
		}
	}

	fmt.Fprintf(&b, "\nQuery: %s", query)
	return b.String()
}

// clarify consumes the user's clarification answer and re-enters
// classification with the answer appended to the working query.
func (e *Engine) clarify(state *State) Node {
	answer := strings.TrimSpace(state.takeAnswer())
	if answer != "" {
		state.WorkingQuery = fmt.Sprintf("%s\n(clarification: %s)", state.WorkingQuery, answer)
	}
	state.ClarifyRounds++
	return NodeClassify
}
