// Package worker defines the capability contract consumed by the
// orchestration core. A worker receives a single SubTask (description plus
// injected context) and returns a WorkerResult; it must not reach into
// scheduler internals.
package worker

import (
	"context"

	"github.com/aaaa47080/stock-agent-sub002/pkg/types"
)

// Worker executes one SubTask and returns its result.
type Worker interface {
	// Name returns the capability name the worker is registered under.
	Name() string

	// Capabilities returns keyword tags used for capability search.
	Capabilities() []string

	// Execute runs the task. Errors are converted into failed results by the
	// scheduler; workers should prefer returning a WorkerResult with
	// Success=false for domain-level failures.
	Execute(ctx context.Context, task *types.SubTask) (*types.WorkerResult, error)
}

// AskFunc lets a worker ask the end user a question mid-task. It is supplied
// by the scheduler immediately before invocation and cleared after.
type AskFunc func(ctx context.Context, question string, options []string) (string, error)

// AskCapable is implemented by workers that accept an ask-the-user callback.
type AskCapable interface {
	SetAsk(ask AskFunc)
}
