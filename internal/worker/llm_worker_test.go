package worker

import (
	"context"
	"strings"
	"testing"

	"github.com/aaaa47080/stock-agent-sub002/internal/llm"
	"github.com/aaaa47080/stock-agent-sub002/pkg/types"
)

func TestLLMWorkerExecute(t *testing.T) {
	mock := llm.NewMockClient("RSI is 62, trending up")
	w := NewLLMWorker("technical", "You analyze charts.", []string{"technical-analysis"}, mock, nil)

	res, err := w.Execute(context.Background(), &types.SubTask{
		Step:        1,
		Description: "analyze AAPL momentum",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Success || res.Worker != "technical" {
		t.Fatalf("result %+v", res)
	}
	if res.Message != "RSI is 62, trending up" {
		t.Fatalf("Message = %q", res.Message)
	}
}

func TestLLMWorkerIncludesTaskContext(t *testing.T) {
	mock := llm.NewMockClient("ok")
	w := NewChatWorker(mock, nil)

	_, err := w.Execute(context.Background(), &types.SubTask{
		Step:        1,
		Description: "answer the question",
		Context: map[string]string{
			"language":      "en",
			"user_feedback": "be more specific",
		},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	prompt := mock.Requests[0].Messages[1].Content
	if !strings.Contains(prompt, "language: en") || !strings.Contains(prompt, "user_feedback: be more specific") {
		t.Fatalf("context not in prompt:\n%s", prompt)
	}
	// Context keys render in deterministic order.
	if strings.Index(prompt, "language") > strings.Index(prompt, "user_feedback") {
		t.Fatal("context keys should be sorted")
	}
}

func TestLLMWorkerEmptyResponse(t *testing.T) {
	mock := llm.NewMockClient("   ")
	w := NewChatWorker(mock, nil)

	res, err := w.Execute(context.Background(), &types.SubTask{Step: 1, Description: "x"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Success {
		t.Fatal("a blank completion must not count as success")
	}
}

func TestLLMWorkerWithoutClient(t *testing.T) {
	w := NewLLMWorker("broken", "", nil, nil, nil)
	if _, err := w.Execute(context.Background(), &types.SubTask{Step: 1}); err == nil {
		t.Fatal("expected an error without a client")
	}
}
