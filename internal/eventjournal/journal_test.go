package eventjournal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/sprintguild/internal/eventbus"
	"github.com/kazz187/sprintguild/pkg/storage"
)

func newJournal(t *testing.T) (*Journal, storage.Storage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return New(store), store
}

func TestJournal_RecordAndRead(t *testing.T) {
	j, _ := newJournal(t)
	ctx := context.Background()
	day := time.Date(2026, 4, 2, 23, 30, 0, 0, time.UTC)

	events := []*eventbus.Event{
		{ID: "01A", Type: eventbus.TaskArchived, ResourceID: "t1", Metadata: map[string]string{"actor": "alice"}, CreatedAt: day},
		{ID: "01B", Type: eventbus.TaskMoved, ResourceID: "t2", CreatedAt: day.Add(time.Minute)},
		{ID: "01C", Type: eventbus.TaskMoved, ResourceID: "t3", CreatedAt: day.Add(time.Hour)},
	}
	for _, e := range events {
		require.NoError(t, j.Record(ctx, e))
	}

	got, err := j.Read(ctx, day, "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "01A", got[0].ID)
	assert.Equal(t, "alice", got[0].Metadata["actor"])
	assert.Equal(t, "01B", got[1].ID)

	moved, err := j.Read(ctx, day, eventbus.TaskMoved)
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.Equal(t, "t2", moved[0].ResourceID)

	nextDay, err := j.Read(ctx, day.Add(24*time.Hour), "")
	require.NoError(t, err)
	require.Len(t, nextDay, 1)
	assert.Equal(t, "01C", nextDay[0].ID)

	empty, err := j.Read(ctx, day.Add(-24*time.Hour), "")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestJournal_Start(t *testing.T) {
	j, _ := newJournal(t)
	bus := eventbus.New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Start(ctx, bus)
		close(done)
	}()

	require.Eventually(t, func() bool {
		bus.PublishNew(eventbus.SprintCreated, "s1", nil)
		got, err := j.Read(context.Background(), time.Now(), eventbus.SprintCreated)
		return err == nil && len(got) > 0
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	<-done
}
