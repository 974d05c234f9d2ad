// Package monitor schedules script executions through a priority queue
// with a bounded concurrency cap, tracks every task through its
// lifecycle, and keeps a capped history of terminal tasks.
package monitor

import (
	"fmt"
	"time"

	"convoke/internal/executor"
	"convoke/internal/safety"
)

// Priority orders tasks in the queue. Higher runs first; equal
// priorities run in submit order.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

func priorityRank(p Priority) int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	default:
		return 0
	}
}

func rankPriority(r int) Priority {
	switch {
	case r >= 2:
		return PriorityHigh
	case r == 1:
		return PriorityNormal
	default:
		return PriorityLow
	}
}

// KnownPriority reports whether p is a recognized priority level.
func KnownPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

// TaskState is a position in the task lifecycle. Transitions are
// monotone: queued, preparing, running, then one terminal state.
// Cancelled is reachable from any non-terminal state.
type TaskState string

const (
	StateQueued    TaskState = "queued"
	StatePreparing TaskState = "preparing"
	StateRunning   TaskState = "running"
	StateCompleted TaskState = "completed"
	StateFailed    TaskState = "failed"
	StateCancelled TaskState = "cancelled"
	StateTimedOut  TaskState = "timedOut"
)

// Terminal reports whether s is an end state.
func (s TaskState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled, StateTimedOut:
		return true
	}
	return false
}

// Task-level error kinds beyond the executor's.
const (
	ErrPolicyDenied = "policyDenied"
	ErrInternal     = "internal"
)

// Request describes a script to run.
type Request struct {
	Platform       string            `json:"platform"`
	Script         string            `json:"script"`
	Policy         safety.Policy     `json:"policy"`
	WorkingDir     string            `json:"workingDir,omitempty"`
	Env            map[string]string `json:"env,omitempty"`
	Parameters     []string          `json:"parameters,omitempty"`
	TimeoutSeconds int               `json:"timeoutSeconds"`
}

// Task is the full record of one submitted execution.
type Task struct {
	ID          string     `json:"id"`
	SubmittedAt time.Time  `json:"submittedAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	Request  Request  `json:"request"`
	Priority Priority `json:"priority"`
	// EffectivePriority reflects aging bumps; equals Priority until the
	// task has waited past the aging threshold.
	EffectivePriority Priority  `json:"effectivePriority"`
	State             TaskState `json:"state"`

	// ErrorKind is set on failed, cancelled, and timedOut tasks.
	ErrorKind string `json:"errorKind,omitempty"`

	Result       *executor.Result `json:"result,omitempty"`
	SafetyReport *safety.Report   `json:"safetyReport,omitempty"`
}

// Callbacks are bound at submission and fired after each state is
// recorded in the registry. Handlers receive a snapshot copy.
type Callbacks struct {
	OnStateChange func(Task)
	OnComplete    func(Task)
}

// CancelOutcome is the result of a cancel request.
type CancelOutcome string

const (
	CancelDone            CancelOutcome = "cancelled"
	CancelAlreadyTerminal CancelOutcome = "alreadyTerminal"
	CancelNotFound        CancelOutcome = "notFound"
)

// recognizedPlatforms mirrors the executor's interpreter table.
var recognizedPlatforms = map[string]bool{
	"bash":        true,
	"powershell":  true,
	"applescript": true,
}

func validateRequest(req Request, maxTimeoutSeconds int) error {
	if req.Script == "" {
		return fmt.Errorf("script must not be empty")
	}
	if !recognizedPlatforms[req.Platform] {
		return fmt.Errorf("unsupported platform %q", req.Platform)
	}
	if req.TimeoutSeconds < 1 || req.TimeoutSeconds > maxTimeoutSeconds {
		return fmt.Errorf("timeoutSeconds %d outside [1, %d]", req.TimeoutSeconds, maxTimeoutSeconds)
	}
	if req.Policy != "" && !safety.KnownPolicy(req.Policy) {
		return fmt.Errorf("unknown policy %q", req.Policy)
	}
	return nil
}
