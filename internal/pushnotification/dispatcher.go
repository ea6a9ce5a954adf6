package pushnotification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kazz187/sprintguild/internal/eventbus"
	"github.com/kazz187/sprintguild/pkg/panicerr"
)

// Dispatcher turns board events worth interrupting someone for into push
// notifications.
type Dispatcher struct {
	eventBus *eventbus.Bus
	sender   *Sender
}

func NewDispatcher(eventBus *eventbus.Bus, sender *Sender) *Dispatcher {
	return &Dispatcher{
		eventBus: eventBus,
		sender:   sender,
	}
}

// Start consumes events until ctx is done.
func (d *Dispatcher) Start(ctx context.Context) {
	subID, ch := d.eventBus.Subscribe(256)
	defer d.eventBus.Unsubscribe(subID)

	slog.InfoContext(ctx, "push notification dispatcher started")
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "push notification dispatcher stopped")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			payload := payloadFor(event)
			if payload == nil {
				continue
			}
			err := panicerr.Safe(func() error {
				d.sender.Send(ctx, payload)
				return nil
			})
			if err != nil {
				slog.ErrorContext(ctx, "push notification: send panicked", "event_id", event.ID, "error", err)
			}
		}
	}
}

func payloadFor(event *eventbus.Event) *NotificationPayload {
	switch event.Type {
	case eventbus.TaskArchived:
		return &NotificationPayload{
			Title: "Task archived",
			Body:  fmt.Sprintf("%s archived %q", event.Metadata["actor"], event.Metadata["title"]),
			URL:      "/archive/" + event.ResourceID,
			Tag:      event.ID,
			SprintID: event.Metadata["sprint_id"],
		}
	case eventbus.ExecutionReconciled:
		completed := event.Metadata["completed"]
		if completed == "" || completed == "0" {
			return nil
		}
		return &NotificationPayload{
			Title: "Sprint progress",
			Body:  fmt.Sprintf("%s task(s) marked completed", completed),
			URL:      "/sprints/" + event.Metadata["sprint_id"],
			Tag:      event.ResourceID,
			SprintID: event.Metadata["sprint_id"],
		}
	case eventbus.BoardStale:
		return &NotificationPayload{
			Title: "Board out of sync",
			Body:  "A reorder was only partly saved. Reload the board.",
			Tag:   event.ID,
		}
	}
	return nil
}
