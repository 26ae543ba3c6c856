package llm

import (
	"context"
	"fmt"
	"testing"
	"time"

	agenterrors "github.com/aaaa47080/stock-agent-sub002/internal/errors"
)

func fastRetryConfig() agenterrors.RetryConfig {
	// Two retries after the initial attempt: three calls in total.
	return agenterrors.RetryConfig{
		MaxAttempts:  2,
		BaseDelay:    time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		JitterFactor: 0,
	}
}

func TestRetryClientRecoversFromTransientFailure(t *testing.T) {
	calls := 0
	mock := &MockClient{Fn: func(CompletionRequest) (string, error) {
		calls++
		if calls < 3 {
			return "", agenterrors.NewTransient(fmt.Errorf("rate limited"), 429)
		}
		return "recovered", nil
	}}

	client := NewRetryClient(mock, fastRetryConfig(), nil)
	resp, err := client.Complete(context.Background(), CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "recovered" {
		t.Fatalf("Content = %q", resp.Content)
	}
	if calls != 3 {
		t.Fatalf("made %d attempts, want 3", calls)
	}
}

func TestRetryClientStopsOnPermanentError(t *testing.T) {
	mock := &MockClient{Fn: func(CompletionRequest) (string, error) {
		return "", agenterrors.NewPermanent(fmt.Errorf("bad request"), 400)
	}}

	client := NewRetryClient(mock, fastRetryConfig(), nil)
	if _, err := client.Complete(context.Background(), CompletionRequest{}); err == nil {
		t.Fatal("expected the permanent error to surface")
	}
	if mock.CallCount() != 1 {
		t.Fatalf("made %d attempts, want 1 for a permanent error", mock.CallCount())
	}
}

func TestRetryClientExhaustsAttempts(t *testing.T) {
	mock := &MockClient{Fn: func(CompletionRequest) (string, error) {
		return "", agenterrors.NewTransient(fmt.Errorf("still down"), 503)
	}}

	client := NewRetryClient(mock, fastRetryConfig(), nil)
	if _, err := client.Complete(context.Background(), CompletionRequest{}); err == nil {
		t.Fatal("expected failure after exhausting attempts")
	}
	if mock.CallCount() != 3 {
		t.Fatalf("made %d attempts, want 3", mock.CallCount())
	}
}

func TestMockClientReplaysResponses(t *testing.T) {
	mock := NewMockClient("first", "second")
	for _, want := range []string{"first", "second", "second"} {
		resp, err := mock.Complete(context.Background(), CompletionRequest{})
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if resp.Content != want {
			t.Fatalf("Content = %q, want %q", resp.Content, want)
		}
	}
}
