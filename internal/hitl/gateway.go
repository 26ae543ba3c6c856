// Package hitl abstracts "ask the user a question and wait for an answer".
// In blocking mode the gateway parks the calling goroutine; the suspend/resume
// discipline lives in the orchestrator's state machine and does not need a
// gateway at all.
package hitl

import "context"

// Question types.
const (
	QuestionClarify      = "clarify"
	QuestionConfirmPlan  = "confirm_plan"
	QuestionWorker       = "worker"
	QuestionSatisfaction = "satisfaction"
)

// Question is a request for user input.
type Question struct {
	Type     string   `json:"type"`
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
}

// Gateway obtains one answer from the end user.
type Gateway interface {
	Ask(ctx context.Context, q Question) (string, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, q Question) (string, error)

func (f GatewayFunc) Ask(ctx context.Context, q Question) (string, error) {
	return f(ctx, q)
}
