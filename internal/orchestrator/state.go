// Package orchestrator is the scheduling core: a serializable state machine
// that classifies a query, builds and confirms an execution plan, dispatches
// sub-tasks to workers, synthesizes results, and learns from successful runs.
package orchestrator

import (
	"github.com/aaaa47080/stock-agent-sub002/internal/hitl"
	"github.com/aaaa47080/stock-agent-sub002/pkg/types"
)

// Node identifies one state-machine node. Nodes are pure with respect to the
// State: each consumes the state (plus at most one pending HITL answer) and
// returns the next node, so the whole machine can be checkpointed between
// steps.
type Node string

const (
	NodeClassify             Node = "classify"
	NodeClarify              Node = "clarify"
	NodePlan                 Node = "plan"
	NodeConfirm              Node = "confirm"
	NodeConfirmDecision      Node = "confirm_decision"
	NodeExecute              Node = "execute"
	NodeSynthesize           Node = "synthesize"
	NodeSaveMessages         Node = "save_messages"
	NodeExtractMemory        Node = "extract_memory"
	NodeAskSatisfaction      Node = "ask_satisfaction"
	NodeSatisfactionDecision Node = "satisfaction_decision"
	NodeSaveCodebook         Node = "save_codebook"
	NodeDone                 Node = "done"
	NodeCancelled            Node = "cancelled"
)

// Complexity labels.
const (
	ComplexitySimple    = "simple"
	ComplexityComplex   = "complex"
	ComplexityAmbiguous = "ambiguous"
)

// Run outcome statuses.
const (
	StatusDone      = "done"
	StatusCancelled = "cancelled"
	StatusSuspended = "suspended"
)

// State is the whole run-level aggregate. It must round-trip through JSON
// losslessly: a suspended run is resumed from nothing but this structure.
type State struct {
	SessionID    string `json:"session_id"`
	Query        string `json:"query"`
	WorkingQuery string `json:"working_query"` // query plus accumulated clarifications

	Node    Node           `json:"node"`
	Answer  string         `json:"answer,omitempty"` // pending HITL answer
	Pending *hitl.Question `json:"pending,omitempty"`

	Complexity        string   `json:"complexity,omitempty"`
	Intent            string   `json:"intent,omitempty"`
	TargetWorker      string   `json:"target_worker,omitempty"`
	Topics            []string `json:"topics,omitempty"`
	Entities          []string `json:"entities,omitempty"`
	AmbiguityQuestion string   `json:"ambiguity_question,omitempty"`
	ClarifyRounds     int      `json:"clarify_rounds,omitempty"`

	PlanModification string           `json:"plan_modification,omitempty"`
	DiscussAnswer    string           `json:"discuss_answer,omitempty"`
	Tasks            []*types.SubTask `json:"tasks,omitempty"`

	Results   []types.WorkerResult `json:"results,omitempty"`
	ExecIndex int                  `json:"exec_index,omitempty"`

	// Worker-question bookkeeping for mid-execute suspension: queued answers
	// are keyed by step index and consumed in order by the ask callback.
	TaskAnswers      map[int][]string `json:"task_answers,omitempty"`
	PendingWorkerAsk bool             `json:"pending_worker_ask,omitempty"`

	RetryCount   int    `json:"retry_count,omitempty"`
	FeedbackText string `json:"feedback_text,omitempty"`
	Satisfied    bool   `json:"satisfied,omitempty"`

	SeededEntryID string `json:"seeded_entry_id,omitempty"`

	Response  string `json:"response,omitempty"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

// Outcome is what a drive of the machine produced: a terminal response, a
// cancellation, or a suspension carrying the question to surface.
type Outcome struct {
	SessionID string         `json:"session_id"`
	Status    string         `json:"status"`
	Response  string         `json:"response,omitempty"`
	Question  *hitl.Question `json:"question,omitempty"`
}

// takeAnswer consumes the pending HITL answer.
func (s *State) takeAnswer() string {
	answer := s.Answer
	s.Answer = ""
	return answer
}

// successfulResults filters results that passed both execution and the
// quality gate.
func (s *State) successfulResults() []types.WorkerResult {
	var out []types.WorkerResult
	for _, res := range s.Results {
		if res.Success && res.Quality != types.QualityFail {
			out = append(out, res)
		}
	}
	return out
}

// resetForRetry clears execution state while keeping the step list intact.
func (s *State) resetForRetry() {
	for _, task := range s.Tasks {
		task.Status = types.TaskPending
		task.Result = nil
	}
	s.Results = nil
	s.ExecIndex = 0
	s.PendingWorkerAsk = false
	s.TaskAnswers = nil
}
