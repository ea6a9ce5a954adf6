package archive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/sprintguild/internal/board"
	"github.com/kazz187/sprintguild/internal/eventbus"
	"github.com/kazz187/sprintguild/internal/task"
	taskrepo "github.com/kazz187/sprintguild/internal/task/repositoryimpl"
	"github.com/kazz187/sprintguild/pkg/cerr"
	"github.com/kazz187/sprintguild/pkg/storage"
)

type fakeImages struct {
	removed []string
}

func (f *fakeImages) RemoveAllForTask(_ context.Context, taskID string) error {
	f.removed = append(f.removed, taskID)
	return nil
}

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, task.Repository, *fakeImages, *eventbus.Bus) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := taskrepo.NewYAMLRepository(store)
	images := &fakeImages{}
	bus := eventbus.New()
	return NewService(repo, images, board.NewQueue(), bus), repo, images, bus
}

func seed(t *testing.T, repo task.Repository, tasks ...*task.Task) {
	t.Helper()
	for _, tk := range tasks {
		if tk.Priority == "" {
			tk.Priority = task.PriorityMedium
		}
		if tk.Status == "" {
			tk.Status = task.StatusTodo
		}
		if tk.CreatedAt.IsZero() {
			tk.CreatedAt = base
			tk.UpdatedAt = base
		}
		require.NoError(t, repo.Create(context.Background(), tk))
	}
}

func TestArchiveRestore_PreservesFields(t *testing.T) {
	svc, repo, _, bus := newService(t)
	ctx := context.Background()
	seed(t, repo,
		&task.Task{ID: "a", SprintID: "s1", Title: "Fix login bug", Description: "session expires",
			Priority: task.PriorityHigh, Status: task.StatusInProgress, Tags: []string{"bug", "urgent"}, OrderIndex: 0},
		&task.Task{ID: "b", SprintID: "s1", Title: "B", OrderIndex: 1},
		&task.Task{ID: "c", SprintID: "s1", Title: "C", OrderIndex: 2},
	)
	original, err := repo.Get(ctx, "a")
	require.NoError(t, err)

	subID, events := bus.Subscribe(4)
	defer bus.Unsubscribe(subID)

	archived, err := svc.Archive(ctx, "a", "alice", " done elsewhere ")
	require.NoError(t, err)
	require.NotNil(t, archived.ArchivedAt)
	assert.Equal(t, "alice", archived.ArchivedBy)
	assert.Equal(t, "done elsewhere", archived.ArchiveReason)
	ev := <-events
	assert.Equal(t, eventbus.TaskArchived, ev.Type)
	assert.Equal(t, "a", ev.ResourceID)

	visible, err := repo.List(ctx, task.ListFilter{SprintID: "s1", Partition: task.PartitionVisible})
	require.NoError(t, err)
	assert.Len(t, visible, 2)

	restored, err := svc.Restore(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, restored.ArchivedAt)
	assert.Empty(t, restored.ArchivedBy)
	assert.Empty(t, restored.ArchiveReason)
	assert.Equal(t, 3, restored.OrderIndex)

	stored, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, original.ID, stored.ID)
	assert.Equal(t, original.SprintID, stored.SprintID)
	assert.Equal(t, original.Title, stored.Title)
	assert.Equal(t, original.Description, stored.Description)
	assert.Equal(t, original.Priority, stored.Priority)
	assert.Equal(t, original.Status, stored.Status)
	assert.Equal(t, original.Tags, stored.Tags)
	assert.True(t, original.CreatedAt.Equal(stored.CreatedAt))
	assert.Equal(t, 3, stored.OrderIndex)
	assert.False(t, stored.Archived())
}

func TestArchive_Preconditions(t *testing.T) {
	svc, repo, _, _ := newService(t)
	ctx := context.Background()
	seed(t, repo, &task.Task{ID: "a", SprintID: "s1", Title: "A"})

	_, err := svc.Archive(ctx, "a", " ", "")
	assert.Equal(t, cerr.InvalidArgument, cerr.CodeOf(err))

	_, err = svc.Archive(ctx, "missing", "alice", "")
	assert.Equal(t, cerr.NotFound, cerr.CodeOf(err))

	_, err = svc.Restore(ctx, "a")
	assert.Equal(t, cerr.FailedPrecondition, cerr.CodeOf(err))

	err = svc.Delete(ctx, "a")
	assert.Equal(t, cerr.FailedPrecondition, cerr.CodeOf(err))

	_, err = svc.Get(ctx, "a")
	assert.Equal(t, cerr.NotFound, cerr.CodeOf(err))

	_, err = svc.Archive(ctx, "a", "alice", "")
	require.NoError(t, err)
	_, err = svc.Archive(ctx, "a", "alice", "")
	assert.Equal(t, cerr.FailedPrecondition, cerr.CodeOf(err))
}

func TestDelete(t *testing.T) {
	svc, repo, images, _ := newService(t)
	ctx := context.Background()
	seed(t, repo,
		&task.Task{ID: "a", SprintID: "s1", Title: "A"},
		&task.Task{ID: "b", SprintID: "s1", Title: "B", OrderIndex: 1},
	)
	_, err := svc.Archive(ctx, "a", "alice", "")
	require.NoError(t, err)
	_, err = svc.Archive(ctx, "b", "alice", "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "a"))
	assert.Equal(t, []string{"a"}, images.removed)

	_, err = repo.Get(ctx, "a")
	assert.Equal(t, cerr.NotFound, cerr.CodeOf(err))

	all, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "b", all[0].ID)

	err = svc.Delete(ctx, "a")
	assert.Equal(t, cerr.NotFound, cerr.CodeOf(err))
}

func TestList_Filters(t *testing.T) {
	svc, repo, _, _ := newService(t)
	ctx := context.Background()
	at := func(d time.Duration) *time.Time {
		v := base.Add(d)
		return &v
	}
	seed(t, repo,
		&task.Task{ID: "login", SprintID: "s1", Title: "Fix login bug", Priority: task.PriorityHigh,
			Tags: []string{"bug"}, ArchivedAt: at(time.Hour), ArchivedBy: "alice"},
		&task.Task{ID: "docs", SprintID: "s1", Title: "Write guide", Description: "Login walkthrough",
			Priority: task.PriorityLow, ArchivedAt: at(2 * time.Hour), ArchivedBy: "bob"},
		&task.Task{ID: "perf", SprintID: "s2", Title: "Speed up board", Priority: task.PriorityHigh,
			Tags: []string{"Performance"}, ArchivedAt: at(3 * time.Hour), ArchivedBy: "bob"},
		&task.Task{ID: "visible", SprintID: "s1", Title: "Login page"},
	)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "all, newest first", filter: Filter{}, want: []string{"perf", "docs", "login"}},
		{name: "query title or description", filter: Filter{Query: "LOGIN"}, want: []string{"docs", "login"}},
		{name: "query tag", filter: Filter{Query: "performance"}, want: []string{"perf"}},
		{name: "priority", filter: Filter{Priority: task.PriorityHigh}, want: []string{"perf", "login"}},
		{name: "sprint", filter: Filter{SprintID: "s1"}, want: []string{"docs", "login"}},
		{name: "combined", filter: Filter{Query: "login", Priority: task.PriorityHigh, SprintID: "s1"}, want: []string{"login"}},
		{name: "no match", filter: Filter{Query: "login", SprintID: "s2"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.List(ctx, tt.filter)
			require.NoError(t, err)
			ids := []string{}
			for _, tk := range got {
				ids = append(ids, tk.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	_, err := svc.List(ctx, Filter{Priority: "urgent"})
	assert.Equal(t, cerr.InvalidArgument, cerr.CodeOf(err))
}
