package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/stagegate/stagegate/internal/log"
	"github.com/stagegate/stagegate/internal/model"
)

// EventKind identifies the kind of a pipeline event.
type EventKind string

const (
	// EventTaskStatusChanged fires when a task changes status.
	EventTaskStatusChanged EventKind = "task_status_changed"
	// EventStageStatusChanged fires when a stage execution changes status.
	EventStageStatusChanged EventKind = "stage_status_changed"
)

// Event is one pipeline event delivered to subscribers.
type Event struct {
	Kind        EventKind
	TaskID      string
	StageID     string
	ExecutionID string
	TaskStatus  model.TaskStatus
	ExecStatus  model.ExecutionStatus
	At          time.Time
}

// BroadcasterConfig is the configuration for the broadcaster.
type BroadcasterConfig struct {
	// Buffer is the channel buffer of each subscriber.
	Buffer int
	Logger log.Logger
}

func (c *BroadcasterConfig) defaults() error {
	if c.Buffer == 0 {
		c.Buffer = 16
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "notify.Broadcaster"})
	return nil
}

// Broadcaster fans pipeline events out to subscribers. Delivery is best
// effort: a subscriber that stops draining its channel loses events instead
// of blocking the publisher.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	buffer int
	logger log.Logger
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster(cfg BroadcasterConfig) (*Broadcaster, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Broadcaster{
		subs:   make(map[chan Event]struct{}),
		buffer: cfg.Buffer,
		logger: cfg.Logger,
	}, nil
}

// Subscribe registers a new subscriber and returns its event channel.
func (b *Broadcaster) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	b.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		if sub == ch {
			delete(b.subs, sub)
			close(sub)
			return
		}
	}
}

// TaskStatusChanged publishes a task status change.
func (b *Broadcaster) TaskStatusChanged(taskID string, status model.TaskStatus) {
	b.publish(Event{
		Kind:       EventTaskStatusChanged,
		TaskID:     taskID,
		TaskStatus: status,
		At:         time.Now().UTC(),
	})
}

// StageStatusChanged publishes a stage execution status change.
func (b *Broadcaster) StageStatusChanged(taskID, stageID, executionID string, status model.ExecutionStatus) {
	b.publish(Event{
		Kind:        EventStageStatusChanged,
		TaskID:      taskID,
		StageID:     stageID,
		ExecutionID: executionID,
		ExecStatus:  status,
		At:          time.Now().UTC(),
	})
}

func (b *Broadcaster) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		select {
		case sub <- e:
		default:
			b.logger.Warningf("Dropping event %s for a slow subscriber", e.Kind)
		}
	}
}
