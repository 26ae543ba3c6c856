package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/aaaa47080/stock-agent-sub002/internal/hitl"
	"github.com/aaaa47080/stock-agent-sub002/internal/llm"
	"github.com/aaaa47080/stock-agent-sub002/pkg/types"
)

type plannedStep struct {
	Description string `json:"description"`
	Worker      string `json:"worker"`
	Resource    string `json:"resource"`
}

type plannedSteps struct {
	Steps []plannedStep `json:"steps"`
}

// plan builds the task list. Simple queries get a single-step plan and go
// straight to execution; complex queries first consult the codebook, and
// only on a miss (or an explicit modification) call the planner model.
func (e *Engine) plan(ctx context.Context, state *State) (Node, *hitl.Question, error) {
	if state.Complexity != ComplexityComplex {
		worker := state.TargetWorker
		if worker == "" {
			worker = e.cfg.DefaultWorker
		}
		state.Tasks = []*types.SubTask{{
			Step:        1,
			Description: state.WorkingQuery,
			Worker:      worker,
			Status:      types.TaskPending,
		}}
		return NodeExecute, nil, nil
	}

	// Only a fresh complex plan may be seeded from experience. A re-plan
	// after "modify" always goes back to the model.
	if state.PlanModification == "" && e.codebook != nil {
		if entry, ok := e.codebook.FindMatch(state.WorkingQuery, state.Intent, state.Topics); ok {
			e.logger.Info("plan seeded from codebook",
				"session_id", state.SessionID, "entry_id", entry.ID, "intent", entry.Intent)
			e.metrics.codebookHits.Inc()
			state.Tasks = entry.InstantiatePlan()
			state.SeededEntryID = entry.ID
			return NodeConfirm, nil, nil
		}
		e.metrics.codebookMisses.Inc()
	}

	tasks, err := e.decompose(ctx, state)
	if err != nil {
		e.logger.Warn("plan decomposition failed, degrading to single-step run",
			"session_id", state.SessionID, "error", err)
		worker := state.TargetWorker
		if worker == "" {
			worker = e.cfg.DefaultWorker
		}
		state.Tasks = []*types.SubTask{{
			Step:        1,
			Description: state.WorkingQuery,
			Worker:      worker,
			Status:      types.TaskPending,
		}}
		state.SeededEntryID = ""
		return NodeExecute, nil, nil
	}

	state.Tasks = tasks
	state.SeededEntryID = ""
	state.PlanModification = ""
	return NodeConfirm, nil, nil
}

func (e *Engine) decompose(ctx context.Context, state *State) ([]*types.SubTask, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Available workers: %s\n", strings.Join(e.registry.Names(), ", "))
	if e.resources != nil {
		if names := e.resources.Names(); len(names) > 0 {
			fmt.Fprintf(&b, "Available resources: %s\n", strings.Join(names, ", "))
		}
	}
	fmt.Fprintf(&b, "Query: %s\n", state.WorkingQuery)
	if len(state.Entities) > 0 {
		fmt.Fprintf(&b, "Entities: %s\n", strings.Join(state.Entities, ", "))
	}
	if state.PlanModification != "" {
		fmt.Fprintf(&b, "Previous plan:\n%s", renderPlan(state.Tasks))
		fmt.Fprintf(&b, "Requested change: %s\n", state.PlanModification)
	}

	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: plannerSystemPrompt},
			{Role: "user", Content: b.String()},
		},
		Temperature: 0.2,
		MaxTokens:   800,
	})
	if err != nil {
		return nil, fmt.Errorf("planner completion: %w", err)
	}

	var parsed plannedSteps
	if err := llm.DecodeJSON(resp.Content, &parsed); err != nil {
		return nil, fmt.Errorf("planner output: %w", err)
	}
	if len(parsed.Steps) == 0 {
		return nil, fmt.Errorf("planner returned no steps")
	}
	if len(parsed.Steps) > maxPlanSteps {
		parsed.Steps = parsed.Steps[:maxPlanSteps]
	}

	tasks := make([]*types.SubTask, 0, len(parsed.Steps))
	for i, step := range parsed.Steps {
		worker := strings.TrimSpace(step.Worker)
		if worker == "" {
			worker = e.cfg.DefaultWorker
		}
		tasks = append(tasks, &types.SubTask{
			Step:        i + 1,
			Description: strings.TrimSpace(step.Description),
			Worker:      worker,
			Resource:    strings.TrimSpace(step.Resource),
			Status:      types.TaskPending,
		})
	}
	return tasks, nil
}

const maxPlanSteps = 6

func renderPlan(tasks []*types.SubTask) string {
	var b strings.Builder
	for _, t := range tasks {
		fmt.Fprintf(&b, "%d. [%s] %s\n", t.Step, t.Worker, t.Description)
	}
	return b.String()
}
