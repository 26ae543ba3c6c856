package types

// TaskStatus tracks the lifecycle of a planned unit of work.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// QualityVerdict is the post-hoc quality gate attached to a worker result.
type QualityVerdict string

const (
	QualityPass QualityVerdict = "pass"
	QualityFail QualityVerdict = "fail"
)

// Collaboration priorities.
const (
	PriorityRequired = "required"
	PriorityOptional = "optional"
)

// SubTask is one planned unit of work. It is owned by the plan that contains
// it and destroyed with the plan.
type SubTask struct {
	Step        int               `json:"step"` // 1-based ordering
	Description string            `json:"description"`
	Worker      string            `json:"worker"`
	Resource    string            `json:"resource,omitempty"`
	Status      TaskStatus        `json:"status"`
	Result      *WorkerResult     `json:"result,omitempty"`
	Context     map[string]string `json:"context,omitempty"`
}

// WorkerResult is the outcome of executing one SubTask. Immutable once
// produced.
type WorkerResult struct {
	Success       bool                  `json:"success"`
	Message       string                `json:"message"`
	Worker        string                `json:"worker"`
	Data          map[string]any        `json:"data,omitempty"`
	Quality       QualityVerdict        `json:"quality,omitempty"`
	QualityReason string                `json:"quality_reason,omitempty"`
	Collaboration *CollaborationRequest `json:"collaboration,omitempty"`
}

// CollaborationRequest is emitted by a worker that cannot complete alone. It
// is consumed at most once, immediately after the requesting task completes.
type CollaborationRequest struct {
	FromWorker   string `json:"from_worker"`
	TargetWorker string `json:"target_worker"`
	Context      string `json:"context"`
	Priority     string `json:"priority"` // required or optional
}

// CloneStripped returns a copy of the task with execution state removed,
// suitable for storing as a reusable plan step.
func (t *SubTask) CloneStripped() *SubTask {
	return &SubTask{
		Step:        t.Step,
		Description: t.Description,
		Worker:      t.Worker,
		Resource:    t.Resource,
		Status:      TaskPending,
	}
}
