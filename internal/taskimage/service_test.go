package taskimage_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/sprintguild/internal/eventbus"
	"github.com/kazz187/sprintguild/internal/task"
	taskrepo "github.com/kazz187/sprintguild/internal/task/repositoryimpl"
	"github.com/kazz187/sprintguild/internal/taskimage"
	imagerepo "github.com/kazz187/sprintguild/internal/taskimage/repositoryimpl"
	"github.com/kazz187/sprintguild/pkg/cerr"
	"github.com/kazz187/sprintguild/pkg/storage"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// failingImageRepo fails every Create.
type failingImageRepo struct {
	taskimage.Repository
}

func (failingImageRepo) Create(context.Context, *taskimage.Image) error {
	return cerr.NewError(cerr.Unavailable, "store unavailable", errors.New("boom"))
}

type env struct {
	service *taskimage.Service
	store   storage.Storage
	repo    taskimage.Repository
	tasks   task.Repository
}

func newEnv(t *testing.T, maxBytes int64) *env {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	e := &env{
		store: store,
		repo:  imagerepo.NewYAMLRepository(store),
		tasks: taskrepo.NewYAMLRepository(store),
	}
	blobs := storage.NewBlobStore(store, "/blobs", "images")
	e.service = taskimage.NewService(e.repo, e.tasks, blobs, maxBytes, eventbus.New())

	now := time.Now()
	require.NoError(t, e.tasks.Create(context.Background(), &task.Task{
		ID: "t1", SprintID: "s1", Title: "Task", Priority: task.PriorityLow,
		Status: task.StatusTodo, CreatedAt: now, UpdatedAt: now,
	}))
	return e
}

func (e *env) blobCount(t *testing.T) int {
	t.Helper()
	paths, err := e.store.List(context.Background(), "images")
	require.NoError(t, err)
	return len(paths)
}

func TestUpload(t *testing.T) {
	e := newEnv(t, 1024)
	ctx := context.Background()

	img, err := e.service.Upload(ctx, taskimage.UploadInput{TaskID: "t1", FileName: "shot 1.png", Data: pngHeader})
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.ContentType)
	assert.Equal(t, int64(len(pngHeader)), img.FileSizeBytes)
	assert.True(t, strings.HasPrefix(img.URL, "/blobs/images/"))
	assert.True(t, strings.HasSuffix(img.URL, "shot_1.png"))

	images, err := e.service.ListForTask(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, img.ID, images[0].ID)
	assert.Equal(t, 1, e.blobCount(t))
}

func TestUpload_Rejects(t *testing.T) {
	e := newEnv(t, 32)
	ctx := context.Background()

	tests := []struct {
		name string
		in   taskimage.UploadInput
		code cerr.Code
	}{
		{name: "no owner", in: taskimage.UploadInput{Data: pngHeader}, code: cerr.InvalidArgument},
		{name: "both owners", in: taskimage.UploadInput{TaskID: "t1", DraftKey: "d", Data: pngHeader}, code: cerr.InvalidArgument},
		{name: "empty", in: taskimage.UploadInput{TaskID: "t1"}, code: cerr.InvalidArgument},
		{name: "oversize", in: taskimage.UploadInput{TaskID: "t1", Data: append(pngHeader, bytes.Repeat([]byte{0}, 64)...)}, code: cerr.InvalidArgument},
		{name: "not an image", in: taskimage.UploadInput{TaskID: "t1", Data: []byte("hello world")}, code: cerr.InvalidArgument},
		{name: "unknown task", in: taskimage.UploadInput{TaskID: "nope", Data: pngHeader}, code: cerr.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.service.Upload(ctx, tt.in)
			assert.Equal(t, tt.code, cerr.CodeOf(err))
		})
	}
	assert.Equal(t, 0, e.blobCount(t))
}

func TestUpload_RecordFailureRemovesBlob(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	tasks := taskrepo.NewYAMLRepository(store)
	blobs := storage.NewBlobStore(store, "/blobs", "images")
	service := taskimage.NewService(failingImageRepo{}, tasks, blobs, 1024, eventbus.New())

	_, err = service.Upload(context.Background(), taskimage.UploadInput{DraftKey: "d1", Data: pngHeader})
	assert.Equal(t, cerr.Unavailable, cerr.CodeOf(err))

	paths, err := store.List(context.Background(), "images")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestClaimDraftsAndRemove(t *testing.T) {
	e := newEnv(t, 1024)
	ctx := context.Background()

	d1, err := e.service.Upload(ctx, taskimage.UploadInput{DraftKey: "draft", FileName: "a.png", Data: pngHeader})
	require.NoError(t, err)
	_, err = e.service.Upload(ctx, taskimage.UploadInput{DraftKey: "draft", FileName: "b.png", Data: pngHeader})
	require.NoError(t, err)
	_, err = e.service.Upload(ctx, taskimage.UploadInput{DraftKey: "other", FileName: "c.png", Data: pngHeader})
	require.NoError(t, err)

	require.NoError(t, e.service.ClaimDrafts(ctx, "draft", "t1"))
	images, err := e.service.ListForTask(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, images, 2)
	for _, img := range images {
		assert.Empty(t, img.DraftKey)
		assert.False(t, img.Draft())
	}
	remaining, err := e.repo.ListByDraft(ctx, "draft")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	require.NoError(t, e.service.Remove(ctx, d1.ID))
	assert.Equal(t, 2, e.blobCount(t))
	_, err = e.repo.Get(ctx, d1.ID)
	assert.Equal(t, cerr.NotFound, cerr.CodeOf(err))

	require.NoError(t, e.service.RemoveAllForTask(ctx, "t1"))
	images, err = e.service.ListForTask(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, images)
	assert.Equal(t, 1, e.blobCount(t))
}
