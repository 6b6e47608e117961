package lib

import "time"

// EventKind identifies the type of a pipeline event.
type EventKind string

const (
	// EventTaskStatusChanged fires when a task changes status.
	EventTaskStatusChanged EventKind = "task_status_changed"
	// EventStageStatusChanged fires when a stage execution changes status.
	EventStageStatusChanged EventKind = "stage_status_changed"
)

// Event is one pipeline event delivered to subscribers.
type Event struct {
	// Kind is the event type.
	Kind EventKind
	// TaskID is the task the event belongs to.
	TaskID string
	// StageID is the stage template, set on stage events.
	StageID string
	// ExecutionID is the stage execution, set on stage events.
	ExecutionID string
	// TaskStatus is the new task status, set on task events.
	TaskStatus TaskStatus
	// ExecutionStatus is the new execution status, set on stage events.
	ExecutionStatus ExecutionStatus
	// At is when the event happened.
	At time.Time
}

// Events subscribes to pipeline events published by stage operations of this
// client. It returns the event channel and a stop function that ends the
// subscription and closes the channel.
//
// Slow subscribers drop events instead of blocking the pipeline, so treat
// events as hints and reload state from the API when one arrives.
func (c *Client) Events() (<-chan Event, func()) {
	internal := c.notifier.Subscribe()

	out := make(chan Event, cap(internal))
	go func() {
		defer close(out)
		for ev := range internal {
			out <- Event{
				Kind:            EventKind(ev.Kind),
				TaskID:          ev.TaskID,
				StageID:         ev.StageID,
				ExecutionID:     ev.ExecutionID,
				TaskStatus:      TaskStatus(ev.TaskStatus),
				ExecutionStatus: ExecutionStatus(ev.ExecStatus),
				At:              ev.At,
			}
		}
	}()

	stop := func() { c.notifier.Unsubscribe(internal) }
	return out, stop
}
