// Package eventjournal persists bus events as a per-day history.
package eventjournal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/kazz187/sprintguild/internal/eventbus"
	"github.com/kazz187/sprintguild/pkg/cerr"
	"github.com/kazz187/sprintguild/pkg/storage"
)

const (
	journalPrefix = "events"
	dateLayout    = "2006-01-02"
)

// Journal records one document per event under events/<date>/<id>.json.
// Event IDs are ULIDs, so a day's keys list in publication order.
type Journal struct {
	storage storage.Storage
}

func New(s storage.Storage) *Journal {
	return &Journal{storage: s}
}

func dayPrefix(date time.Time) string {
	return fmt.Sprintf("%s/%s", journalPrefix, date.UTC().Format(dateLayout))
}

func (j *Journal) Record(ctx context.Context, event *eventbus.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return cerr.WrapEncodeError("event", err)
	}
	key := fmt.Sprintf("%s/%s.json", dayPrefix(event.CreatedAt), event.ID)
	if err := j.storage.Write(ctx, key, data); err != nil {
		return cerr.WrapStorageWriteError("event", err)
	}
	return nil
}

// Read returns the events recorded on date (UTC), oldest first. A non-empty
// eventType keeps only events of that type.
func (j *Journal) Read(ctx context.Context, date time.Time, eventType eventbus.EventType) ([]*eventbus.Event, error) {
	paths, err := j.storage.List(ctx, dayPrefix(date))
	if err != nil {
		return nil, cerr.WrapStorageReadError("events", err)
	}
	sort.Strings(paths)

	events := make([]*eventbus.Event, 0, len(paths))
	for _, p := range paths {
		data, err := j.storage.Read(ctx, p)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, cerr.WrapStorageReadError("events", err)
		}
		var event eventbus.Event
		if err := json.Unmarshal(data, &event); err != nil {
			slog.WarnContext(ctx, "skipping malformed event record", "path", p, "error", err)
			continue
		}
		if eventType != "" && event.Type != eventType {
			continue
		}
		events = append(events, &event)
	}
	return events, nil
}

// Start records every bus event until ctx is done. Events dropped by the bus
// under load are missing from the journal.
func (j *Journal) Start(ctx context.Context, bus *eventbus.Bus) {
	subID, ch := bus.Subscribe(256)
	defer bus.Unsubscribe(subID)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if err := j.Record(context.WithoutCancel(ctx), event); err != nil {
				slog.ErrorContext(ctx, "failed to journal event", "event_id", event.ID, "type", event.Type, "error", err)
			}
		}
	}
}
