package eventbus

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type EventType string

const (
	TaskCreated  EventType = "task.created"
	TaskUpdated  EventType = "task.updated"
	TaskMoved    EventType = "task.moved"
	TaskArchived EventType = "task.archived"
	TaskRestored EventType = "task.restored"
	TaskDeleted  EventType = "task.deleted"

	SprintCreated EventType = "sprint.created"
	SprintUpdated EventType = "sprint.updated"
	SprintMoved   EventType = "sprint.moved"

	// BoardStale tells clients their snapshot of the listed sprints is no
	// longer trustworthy and must be refetched.
	BoardStale EventType = "board.stale"

	ExecutionPromptGenerated EventType = "execution.prompt_generated"
	ExecutionReconciled      EventType = "execution.reconciled"

	ImageUploaded EventType = "image.uploaded"
	ImageRemoved  EventType = "image.removed"
)

type Event struct {
	ID         string            `json:"id"`
	Type       EventType         `json:"type"`
	ResourceID string            `json:"resource_id"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan *Event
}

func New() *Bus {
	return &Bus{
		subscribers: make(map[string]chan *Event),
	}
}

func (b *Bus) Subscribe(bufSize int) (string, <-chan *Event) {
	id := ulid.Make().String()
	ch := make(chan *Event, bufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// buffer full, drop event for this subscriber
		}
	}
}

func (b *Bus) PublishNew(eventType EventType, resourceID string, metadata map[string]string) {
	b.Publish(&Event{
		ID:         ulid.Make().String(),
		Type:       eventType,
		ResourceID: resourceID,
		Metadata:   metadata,
		CreatedAt:  time.Now(),
	})
}
