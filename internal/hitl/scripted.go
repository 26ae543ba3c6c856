package hitl

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedGateway replays canned answers in order. Used in tests and as the
// non-interactive fallback when input is piped.
type ScriptedGateway struct {
	mu      sync.Mutex
	answers []string
	pos     int

	// Asked records every question for assertions.
	Asked []Question
}

// NewScriptedGateway builds a gateway that answers with the given strings.
func NewScriptedGateway(answers ...string) *ScriptedGateway {
	return &ScriptedGateway{answers: answers}
}

func (g *ScriptedGateway) Ask(_ context.Context, q Question) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Asked = append(g.Asked, q)
	if g.pos >= len(g.answers) {
		return "", fmt.Errorf("no scripted answer for question %q", q.Question)
	}
	answer := g.answers[g.pos]
	g.pos++
	return answer, nil
}
