package model

import (
	"fmt"
	"time"
)

// TaskStatus represents the aggregate state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started any stage yet.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress indicates at least one stage has started.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted indicates a terminal stage was approved.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed and was not retried.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusSplit indicates the task was decomposed into child tasks.
	TaskStatusSplit TaskStatus = "split"
)

// Valid returns true if the task status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusSplit:
		return true
	}
	return false
}

// Terminal returns true when the status admits no further stage executions.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusSplit:
		return true
	}
	return false
}

// Task represents one unit of work traversing a project pipeline.
type Task struct {
	ID           string
	ParentTaskID string // Set when a task-splitting stage created this task.
	Title        string
	Description  string

	// CurrentStageID references the active stage template, empty before the
	// task starts and after it reaches a terminal status.
	CurrentStageID string
	Status         TaskStatus

	// Context is the accumulated output context handed to subsequent stages,
	// folded per each stage's result mode.
	Context string

	Archived  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate validates the task.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required: %w", ErrNotValid)
	}
	if t.Title == "" {
		return fmt.Errorf("title is required: %w", ErrNotValid)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("unknown status %q: %w", t.Status, ErrNotValid)
	}
	return nil
}

// TaskStage is one entry of a task's concrete ordered stage list. The list
// may be a strict subset of the project's templates (selected by a stage
// selection stage, or by default all non-optional templates).
type TaskStage struct {
	TaskID   string
	StageID  string
	Position int
}
