package hitl

import (
	"context"
	"testing"
)

func TestScriptedGatewayReplaysInOrder(t *testing.T) {
	g := NewScriptedGateway("yes", "no")
	ctx := context.Background()

	first, err := g.Ask(ctx, Question{Type: QuestionConfirmPlan, Question: "Proceed?"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	second, err := g.Ask(ctx, Question{Type: QuestionSatisfaction, Question: "Helpful?"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if first != "yes" || second != "no" {
		t.Fatalf("answers = %q, %q", first, second)
	}

	if len(g.Asked) != 2 || g.Asked[0].Type != QuestionConfirmPlan {
		t.Fatalf("Asked = %+v", g.Asked)
	}

	if _, err := g.Ask(ctx, Question{Question: "one too many"}); err == nil {
		t.Fatal("exhausted gateway must error")
	}
}

func TestGatewayFunc(t *testing.T) {
	g := GatewayFunc(func(_ context.Context, q Question) (string, error) {
		return "echo: " + q.Question, nil
	})
	got, err := g.Ask(context.Background(), Question{Question: "hi"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if got != "echo: hi" {
		t.Fatalf("answer = %q", got)
	}
}
