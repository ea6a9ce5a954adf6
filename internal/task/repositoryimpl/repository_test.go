package repositoryimpl

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/sprintguild/internal/task"
	"github.com/kazz187/sprintguild/pkg/cerr"
	"github.com/kazz187/sprintguild/pkg/storage"
)

var base = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func repositories(t *testing.T) map[string]task.Repository {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return map[string]task.Repository{
		"yaml":   NewYAMLRepository(store),
		"sqlite": db,
	}
}

func newTask(id, sprintID string, order int) *task.Task {
	return &task.Task{
		ID:         id,
		SprintID:   sprintID,
		Title:      "Task " + id,
		Priority:   task.PriorityMedium,
		Status:     task.StatusTodo,
		OrderIndex: order,
		CreatedAt:  base,
		UpdatedAt:  base,
	}
}

func ids(tasks []*task.Task) []string {
	out := []string{}
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestRepository_CRUD(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			in := newTask("a", "s1", 0)
			in.Description = "details"
			in.Tags = []string{"backend", "bug"}
			require.NoError(t, repo.Create(ctx, in))
			assert.Equal(t, cerr.AlreadyExists, cerr.CodeOf(repo.Create(ctx, in)))

			got, err := repo.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "details", got.Description)
			assert.Equal(t, []string{"backend", "bug"}, got.Tags)
			assert.True(t, base.Equal(got.CreatedAt))
			assert.Nil(t, got.ArchivedAt)

			archivedAt := base.Add(time.Hour)
			got.ArchivedAt = &archivedAt
			got.ArchivedBy = "alice"
			got.Tags = []string{"ui"}
			require.NoError(t, repo.Update(ctx, got))

			got, err = repo.Get(ctx, "a")
			require.NoError(t, err)
			require.NotNil(t, got.ArchivedAt)
			assert.True(t, archivedAt.Equal(*got.ArchivedAt))
			assert.Equal(t, "alice", got.ArchivedBy)
			assert.Equal(t, []string{"ui"}, got.Tags)

			require.NoError(t, repo.UpdateStatus(ctx, "a", task.StatusCompleted))
			got, err = repo.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, task.StatusCompleted, got.Status)

			assert.Equal(t, cerr.NotFound, cerr.CodeOf(repo.Update(ctx, newTask("missing", "s1", 0))))
			assert.Equal(t, cerr.NotFound, cerr.CodeOf(repo.UpdateStatus(ctx, "missing", task.StatusTodo)))

			require.NoError(t, repo.Delete(ctx, "a"))
			_, err = repo.Get(ctx, "a")
			assert.Equal(t, cerr.NotFound, cerr.CodeOf(err))
			assert.Equal(t, cerr.NotFound, cerr.CodeOf(repo.Delete(ctx, "a")))
		})
	}
}

func TestRepository_ListFilterAndOrder(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			later := newTask("later", "s1", 1)
			later.CreatedAt = base.Add(time.Minute)
			earlier := newTask("earlier", "s1", 1)
			archived := newTask("archived", "s1", 0)
			at := base
			archived.ArchivedAt = &at
			for _, tk := range []*task.Task{later, newTask("first", "s1", 0), earlier, archived, newTask("other", "s2", 0)} {
				require.NoError(t, repo.Create(ctx, tk))
			}

			all, err := repo.List(ctx, task.ListFilter{SprintID: "s1"})
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"first", "archived", "earlier", "later"}, ids(all))

			visible, err := repo.List(ctx, task.ListFilter{SprintID: "s1", Partition: task.PartitionVisible})
			require.NoError(t, err)
			assert.Equal(t, []string{"first", "earlier", "later"}, ids(visible))

			onlyArchived, err := repo.List(ctx, task.ListFilter{Partition: task.PartitionArchived})
			require.NoError(t, err)
			assert.Equal(t, []string{"archived"}, ids(onlyArchived))

			everything, err := repo.List(ctx, task.ListFilter{})
			require.NoError(t, err)
			assert.Len(t, everything, 5)
		})
	}
}

func TestRepository_ApplyPlacements(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i, id := range []string{"a", "b", "c"} {
				require.NoError(t, repo.Create(ctx, newTask(id, "s1", i)))
			}

			n, err := repo.ApplyPlacements(ctx, []task.Placement{
				{TaskID: "c", SprintID: "s2", OrderIndex: 0},
				{TaskID: "a", SprintID: "s1", OrderIndex: 1},
				{TaskID: "b", SprintID: "s1", OrderIndex: 0},
			})
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			s1, err := repo.List(ctx, task.ListFilter{SprintID: "s1"})
			require.NoError(t, err)
			assert.Equal(t, []string{"b", "a"}, ids(s1))
			s2, err := repo.List(ctx, task.ListFilter{SprintID: "s2"})
			require.NoError(t, err)
			assert.Equal(t, []string{"c"}, ids(s2))
		})
	}
}

func TestSQLiteRepository_ApplyPlacementsIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	defer repo.Close()
	require.NoError(t, repo.Create(ctx, newTask("a", "s1", 0)))
	require.NoError(t, repo.Create(ctx, newTask("b", "s1", 1)))

	n, err := repo.ApplyPlacements(ctx, []task.Placement{
		{TaskID: "b", SprintID: "s1", OrderIndex: 0},
		{TaskID: "missing", SprintID: "s1", OrderIndex: 1},
	})
	assert.Equal(t, cerr.NotFound, cerr.CodeOf(err))
	assert.Equal(t, 0, n)

	b, err := repo.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, b.OrderIndex)
}

func TestYAMLRepository_ApplyPlacementsReportsPrefix(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := NewYAMLRepository(store)
	require.NoError(t, repo.Create(ctx, newTask("a", "s1", 0)))
	require.NoError(t, repo.Create(ctx, newTask("b", "s1", 1)))

	n, err := repo.ApplyPlacements(ctx, []task.Placement{
		{TaskID: "b", SprintID: "s1", OrderIndex: 0},
		{TaskID: "missing", SprintID: "s1", OrderIndex: 1},
	})
	assert.Equal(t, cerr.NotFound, cerr.CodeOf(err))
	assert.Equal(t, 1, n)

	b, err := repo.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 0, b.OrderIndex)
}
