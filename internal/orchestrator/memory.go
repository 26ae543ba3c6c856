package orchestrator

import (
	"context"
	"strings"

	"github.com/aaaa47080/stock-agent-sub002/internal/codebook"
	"github.com/aaaa47080/stock-agent-sub002/internal/hitl"
	"github.com/aaaa47080/stock-agent-sub002/internal/llm"
	"github.com/aaaa47080/stock-agent-sub002/internal/session"
)

// saveMessages persists the turn to the session. Persistence errors are
// logged and swallowed: the user already has the answer.
func (e *Engine) saveMessages(ctx context.Context, state *State, sess *session.Session) Node {
	if sess == nil {
		if state.Cancelled {
			return NodeCancelled
		}
		return NodeExtractMemory
	}

	sess.AddMessage("user", state.Query)
	sess.AddMessage("assistant", state.Response)
	if err := e.sessions.Save(ctx, sess); err != nil {
		e.logger.Warn("session save failed", "session_id", state.SessionID, "error", err)
	}

	if state.Cancelled {
		return NodeCancelled
	}
	return NodeExtractMemory
}

type extractedFact struct {
	Key        string `json:"key"`
	Value      string `json:"value"`
	Confidence string `json:"confidence"` // high, medium, low
}

type extractedFacts struct {
	Facts []extractedFact `json:"facts"`
}

// extractMemory distills durable user facts from the latest exchange.
// Extraction is best effort and runs once at least one full turn exists.
func (e *Engine) extractMemory(ctx context.Context, state *State, sess *session.Session) Node {
	if sess == nil || sess.TurnCount() == 0 {
		return NodeAskSatisfaction
	}

	input := "user: " + state.Query + "\nassistant: " + state.Response
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: memoryExtractSystemPrompt},
			{Role: "user", Content: input},
		},
		Temperature: 0.0,
		MaxTokens:   400,
	})
	if err != nil {
		e.logger.Warn("memory extraction failed", "session_id", state.SessionID, "error", err)
		return NodeAskSatisfaction
	}

	var parsed extractedFacts
	if err := llm.DecodeJSON(resp.Content, &parsed); err != nil {
		return NodeAskSatisfaction
	}

	facts := make([]session.Fact, 0, len(parsed.Facts))
	for _, f := range parsed.Facts {
		if strings.TrimSpace(f.Key) == "" || strings.TrimSpace(f.Value) == "" {
			continue
		}
		if strings.EqualFold(f.Confidence, "low") {
			continue
		}
		facts = append(facts, session.Fact{
			Key:        f.Key,
			Value:      f.Value,
			SourceTurn: sess.TurnCount(),
			Confidence: f.Confidence,
		})
	}
	if len(facts) > 0 {
		sess.MergeFacts(facts)
		if err := e.sessions.Save(ctx, sess); err != nil {
			e.logger.Warn("session save after fact merge failed", "session_id", state.SessionID, "error", err)
		}
	}
	return NodeAskSatisfaction
}

// askSatisfaction requests feedback on complex runs. Simple runs, and runs
// that already burned both retries, skip straight to learning.
func (e *Engine) askSatisfaction(state *State) (Node, *hitl.Question) {
	if state.Complexity != ComplexityComplex {
		state.Satisfied = true
		return NodeSaveCodebook, nil
	}
	// No more retries are available; the verdict from the last round stands.
	if state.RetryCount >= e.cfg.MaxRetries && state.RetryCount > 0 {
		return NodeSaveCodebook, nil
	}
	return NodeSatisfactionDecision, &hitl.Question{
		Type:     hitl.QuestionSatisfaction,
		Question: "Was this answer helpful?",
		Options:  []string{"yes", "no"},
	}
}

// satisfactionDecision routes the feedback: satisfied runs go on to learn;
// dissatisfied ones re-execute the same plan with the criticism injected,
// up to the retry cap.
func (e *Engine) satisfactionDecision(state *State) Node {
	answer := strings.TrimSpace(state.takeAnswer())
	lowered := strings.ToLower(answer)

	satisfied := true
	switch {
	case lowered == "" || lowered == "y" || lowered == "yes" || lowered == "ok" || lowered == "helpful":
	case lowered == "n" || lowered == "no":
		satisfied = false
	default:
		// Free text is criticism.
		satisfied = false
		state.FeedbackText = answer
	}

	if satisfied {
		state.Satisfied = true
		return NodeSaveCodebook
	}

	if state.RetryCount >= e.cfg.MaxRetries {
		state.Satisfied = false
		return NodeSaveCodebook
	}

	state.RetryCount++
	state.Satisfied = false
	e.metrics.retriesTotal.Inc()
	e.logger.Info("re-executing plan after negative feedback",
		"session_id", state.SessionID, "retry", state.RetryCount)
	state.resetForRetry()
	return NodeExecute
}

// saveCodebook records what this run taught us. Fresh satisfied runs become
// new entries; seeded runs get their stats updated, and a seeded run that
// only satisfied the user after a retry supersedes its source entry with
// the corrected outcome. All learning errors are logged, never surfaced.
func (e *Engine) saveCodebook(ctx context.Context, state *State) Node {
	if e.codebook == nil || state.Complexity != ComplexityComplex || len(state.successfulResults()) == 0 {
		return NodeDone
	}

	rec := codebook.Record{
		Query:      state.WorkingQuery,
		Intent:     state.Intent,
		Topics:     state.Topics,
		Complexity: state.Complexity,
		Plan:       state.Tasks,
	}

	switch {
	case state.SeededEntryID != "" && state.RetryCount > 0 && state.Satisfied:
		newID, err := e.codebook.SaveCorrection(ctx, state.SeededEntryID, rec, state.FeedbackText)
		if err != nil {
			e.logger.Warn("codebook correction failed",
				"session_id", state.SessionID, "entry_id", state.SeededEntryID, "error", err)
			return NodeDone
		}
		e.logger.Info("codebook entry superseded",
			"session_id", state.SessionID, "old_id", state.SeededEntryID, "new_id", newID)
	case state.SeededEntryID != "":
		if err := e.codebook.RecordFeedback(ctx, state.SeededEntryID, state.Satisfied, state.FeedbackText); err != nil {
			e.logger.Warn("codebook feedback failed",
				"session_id", state.SessionID, "entry_id", state.SeededEntryID, "error", err)
		}
	case state.Satisfied:
		id, err := e.codebook.Save(ctx, rec)
		if err != nil {
			e.logger.Warn("codebook save failed", "session_id", state.SessionID, "error", err)
			return NodeDone
		}
		e.metrics.codebookSaves.Inc()
		e.logger.Debug("codebook entry saved", "session_id", state.SessionID, "entry_id", id)
	}
	return NodeDone
}
