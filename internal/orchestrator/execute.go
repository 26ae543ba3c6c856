package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aaaa47080/stock-agent-sub002/internal/hitl"
	"github.com/aaaa47080/stock-agent-sub002/internal/llm"
	"github.com/aaaa47080/stock-agent-sub002/internal/session"
	"github.com/aaaa47080/stock-agent-sub002/internal/worker"
	"github.com/aaaa47080/stock-agent-sub002/pkg/types"
)

// errNeedUserAnswer signals that a worker asked a question while no gateway
// is attached; the run must suspend and re-enter this step with the answer
// queued.
var errNeedUserAnswer = errors.New("worker question requires user answer")

type pendingAsk struct {
	question *hitl.Question
}

// execute runs the plan step by step starting at ExecIndex, so a resumed run
// picks up exactly where it suspended. Step failures are recorded, never
/// fatal: the synthesis stage reports what succeeded and what did not.
func (e *Engine) execute(ctx context.Context, state *State, sess *session.Session) (Node, *hitl.Question, error) {
	// An answer arriving for a suspended worker question is queued for the
	// step that asked it.
	if state.PendingWorkerAsk {
		answer := state.takeAnswer()
		if state.TaskAnswers == nil {
			state.TaskAnswers = make(map[int][]string)
		}
		state.TaskAnswers[state.ExecIndex] = append(state.TaskAnswers[state.ExecIndex], answer)
		state.PendingWorkerAsk = false
	}

	for state.ExecIndex < len(state.Tasks) {
		task := state.Tasks[state.ExecIndex]
		task.Status = types.TaskInProgress
		e.attachContext(task, state, sess)
		e.attachResource(ctx, task)

		result, ask := e.runStep(ctx, state, task)
		if ask != nil {
			state.PendingWorkerAsk = true
			task.Status = types.TaskPending
			return NodeExecute, ask.question, nil
		}

		e.gateQuality(ctx, state, task, result)
		if result.Success && result.Quality != types.QualityFail {
			task.Status = types.TaskCompleted
		} else {
			task.Status = types.TaskFailed
		}
		task.Result = result
		state.Results = append(state.Results, *result)
		e.metrics.stepsTotal.WithLabelValues(result.Worker, stepOutcome(result)).Inc()

		if follow := e.collaborate(ctx, state, task, result); follow != nil {
			state.Results = append(state.Results, *follow)
		}

		state.ExecIndex++
	}

	return NodeSynthesize, nil, nil
}

// runStep dispatches one sub-task with a per-step timeout and panic
// isolation. A non-nil pendingAsk means the step needs a user answer before
// it can run to completion.
func (e *Engine) runStep(ctx context.Context, state *State, task *types.SubTask) (result *types.WorkerResult, ask *pendingAsk) {
	w := e.resolveWorker(task.Worker)
	if w == nil {
		return &types.WorkerResult{
			Success: false,
			Worker:  task.Worker,
			Message: fmt.Sprintf("no worker available for %q", task.Worker),
		}, nil
	}

	if capable, ok := w.(worker.AskCapable); ok {
		capable.SetAsk(e.askFuncFor(state))
		defer capable.SetAsk(nil)
	}

	stepCtx, cancel := context.WithTimeout(ctx, e.cfg.StepTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("worker panicked", "worker", w.Name(), "step", task.Step, "panic", r)
			result = &types.WorkerResult{
				Success: false,
				Worker:  w.Name(),
				Message: fmt.Sprintf("worker %s panicked: %v", w.Name(), r),
			}
			ask = nil
		}
	}()

	res, err := w.Execute(stepCtx, task)
	if err != nil {
		var pending *suspendAskError
		if errors.As(err, &pending) {
			return nil, &pendingAsk{question: pending.question}
		}
		e.logger.Warn("worker step failed", "worker", w.Name(), "step", task.Step, "error", err)
		return &types.WorkerResult{
			Success: false,
			Worker:  w.Name(),
			Message: fmt.Sprintf("step %d failed: %v", task.Step, err),
		}, nil
	}
	if res == nil {
		res = &types.WorkerResult{Success: false, Worker: w.Name(), Message: "worker returned no result"}
	}
	if res.Worker == "" {
		res.Worker = w.Name()
	}
	return res, nil
}

// resolveWorker looks the worker up by name, then by capability, then falls
// back to the default worker.
func (e *Engine) resolveWorker(name string) worker.Worker {
	if w, err := e.registry.Get(name); err == nil {
		return w
	}
	if w, ok := e.registry.FindByCapability(name); ok {
		return w
	}
	w, err := e.registry.Get(e.cfg.DefaultWorker)
	if err != nil {
		return nil
	}
	return w
}

// suspendAskError carries a worker question out of Execute when the run must
// suspend for the answer.
type suspendAskError struct {
	question *hitl.Question
}

func (e *suspendAskError) Error() string { return errNeedUserAnswer.Error() }

func (e *suspendAskError) Unwrap() error { return errNeedUserAnswer }

// askFuncFor builds the callback a worker uses to ask the user something
// mid-task. Queued answers from a previous suspension are consumed first;
// with a gateway attached the question blocks inline; otherwise the run
// suspends.
func (e *Engine) askFuncFor(state *State) worker.AskFunc {
	return func(ctx context.Context, question string, options []string) (string, error) {
		if queued := state.TaskAnswers[state.ExecIndex]; len(queued) > 0 {
			answer := queued[0]
			state.TaskAnswers[state.ExecIndex] = queued[1:]
			return answer, nil
		}
		q := &hitl.Question{Type: hitl.QuestionWorker, Question: question, Options: options}
		if e.gateway != nil {
			answer, err := e.gateway.Ask(ctx, *q)
			if err != nil {
				return "", fmt.Errorf("ask user: %w", err)
			}
			return answer, nil
		}
		return "", &suspendAskError{question: q}
	}
}

// attachContext injects session memory and run feedback into the sub-task.
func (e *Engine) attachContext(task *types.SubTask, state *State, sess *session.Session) {
	if task.Context == nil {
		task.Context = make(map[string]string)
	}
	if sess != nil {
		if recent := sess.RecentWindow(6); len(recent) > 0 {
			var b strings.Builder
			for _, msg := range recent {
				fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
			}
			task.Context["recent_window"] = b.String()
		}
		for key, value := range sess.FactMap() {
			task.Context["fact:"+key] = value
		}
		if sess.Language != "" {
			task.Context["language"] = sess.Language
		}
	}
	if state.FeedbackText != "" {
		task.Context["user_feedback"] = state.FeedbackText
	}
	if state.PlanModification != "" {
		task.Context["modification"] = state.PlanModification
	}
}

// attachResource resolves the step's named resource, enforcing the
// allow-list against the executing worker. A denied or unknown resource
// shows up as "not available" in the task context; the worker decides what
// to do without it.
func (e *Engine) attachResource(ctx context.Context, task *types.SubTask) {
	if task.Resource == "" || e.resources == nil {
		return
	}
	if task.Context == nil {
		task.Context = make(map[string]string)
	}

	res, ok := e.resources.Lookup(task.Resource, task.Worker)
	if !ok {
		task.Context["resource:"+task.Resource] = "not available"
		return
	}

	resCtx, cancel := context.WithTimeout(ctx, e.cfg.StepTimeout)
	defer cancel()

	out, err := res.Invoke(resCtx, map[string]any{"task": task.Description})
	if err != nil {
		e.logger.Warn("resource invocation failed",
			"resource", task.Resource, "worker", task.Worker, "error", err)
		task.Context["resource:"+task.Resource] = "not available"
		return
	}
	task.Context["resource:"+task.Resource] = fmt.Sprint(out)
}

type qualityReply struct {
	Verdict string `json:"verdict"`
	Reason  string `json:"reason"`
}

// gateQuality asks the model to judge a successful result. Any gate failure
// falls open to pass.
func (e *Engine) gateQuality(ctx context.Context, state *State, task *types.SubTask, result *types.WorkerResult) {
	if !result.Success {
		return
	}
	input := fmt.Sprintf("Task: %s\nResult:\n%s", task.Description, result.Message)
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: qualitySystemPrompt},
			{Role: "user", Content: input},
		},
		Temperature: 0.0,
		MaxTokens:   200,
	})
	if err != nil {
		e.logger.Warn("quality gate unavailable, passing result", "step", task.Step, "error", err)
		result.Quality = types.QualityPass
		return
	}
	var parsed qualityReply
	if err := llm.DecodeJSON(resp.Content, &parsed); err != nil {
		result.Quality = types.QualityPass
		return
	}
	if parsed.Verdict == "fail" {
		result.Quality = types.QualityFail
		result.QualityReason = parsed.Reason
		e.logger.Info("quality gate rejected result",
			"session_id", state.SessionID, "step", task.Step, "reason", parsed.Reason)
		return
	}
	result.Quality = types.QualityPass
}

// collaborate honors at most one collaboration request per step: the step
// result may name another worker whose output should supplement its own.
// Unresolvable targets are dropped, never fatal.
func (e *Engine) collaborate(ctx context.Context, state *State, task *types.SubTask, result *types.WorkerResult) *types.WorkerResult {
	req := result.Collaboration
	if req == nil {
		return nil
	}

	target, err := e.registry.Get(req.TargetWorker)
	if err != nil {
		var ok bool
		target, ok = e.registry.FindByCapability(req.TargetWorker)
		if !ok {
			if req.Priority == types.PriorityRequired {
				e.logger.Warn("required collaboration target unavailable",
					"session_id", state.SessionID, "target", req.TargetWorker)
			}
			return nil
		}
	}

	follow := &types.SubTask{
		Step:        task.Step,
		Description: req.Context,
		Worker:      target.Name(),
		Status:      types.TaskPending,
		Context:     map[string]string{"requested_by": req.FromWorker},
	}

	stepCtx, cancel := context.WithTimeout(ctx, e.cfg.StepTimeout)
	defer cancel()

	res, err := target.Execute(stepCtx, follow)
	if err != nil || res == nil {
		e.logger.Warn("collaboration step failed",
			"session_id", state.SessionID, "target", target.Name(), "error", err)
		return nil
	}
	if res.Worker == "" {
		res.Worker = target.Name()
	}
	res.Quality = types.QualityPass
	return res
}

func stepOutcome(res *types.WorkerResult) string {
	if res.Success && res.Quality != types.QualityFail {
		return "success"
	}
	return "failure"
}
