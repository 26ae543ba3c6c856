package errors

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"marked transient", NewTransient(fmt.Errorf("x"), 0), true},
		{"marked permanent", NewPermanent(fmt.Errorf("x"), 500), false},
		{"wrapped transient", fmt.Errorf("outer: %w", NewTransient(fmt.Errorf("x"), 0)), true},
		{"http 429", NewTransient(fmt.Errorf("x"), 429), true},
		{"connection refused", fmt.Errorf("dial tcp: connection refused"), true},
		{"plain error", fmt.Errorf("something else"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Fatalf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestRetryStopsOnPermanent(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(context.Context) error {
		calls++
		return NewPermanent(fmt.Errorf("nope"), 400)
	})
	if err == nil {
		t.Fatal("expected the permanent error to surface")
	}
	if calls != 1 {
		t.Fatalf("made %d calls, want 1", calls)
	}
}

func TestRetryWithResultRecovers(t *testing.T) {
	calls := 0
	got, err := RetryWithResult(context.Background(), RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond}, func(context.Context) (int, error) {
		calls++
		if calls < 2 {
			return 0, NewTransient(fmt.Errorf("flaky"), 503)
		}
		return 7, nil
	})
	if err != nil {
		t.Fatalf("RetryWithResult: %v", err)
	}
	if got != 7 || calls != 2 {
		t.Fatalf("got %d after %d calls", got, calls)
	}
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, DefaultRetryConfig(), func(context.Context) error {
		return NewTransient(fmt.Errorf("flaky"), 503)
	})
	if err == nil {
		t.Fatal("expected a cancellation error")
	}
}

func TestCalculateBackoffBounds(t *testing.T) {
	config := RetryConfig{BaseDelay: time.Second, MaxDelay: 4 * time.Second, JitterFactor: 0}
	if got := calculateBackoff(0, config); got != time.Second {
		t.Fatalf("attempt 0 delay = %v, want 1s", got)
	}
	if got := calculateBackoff(1, config); got != 2*time.Second {
		t.Fatalf("attempt 1 delay = %v, want 2s", got)
	}
	// Exponential growth clamps at MaxDelay.
	if got := calculateBackoff(5, config); got != 4*time.Second {
		t.Fatalf("attempt 5 delay = %v, want the 4s cap", got)
	}
}
