package taskimage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kazz187/sprintguild/internal/eventbus"
	"github.com/kazz187/sprintguild/internal/task"
	"github.com/kazz187/sprintguild/pkg/cerr"
	"github.com/kazz187/sprintguild/pkg/storage"
)

type UploadInput struct {
	// Exactly one of TaskID and DraftKey is set.
	TaskID   string
	DraftKey string
	FileName string
	Data     []byte
}

type Service struct {
	repo     Repository
	taskRepo task.Repository
	blobs    *storage.BlobStore
	maxBytes int64
	eventBus *eventbus.Bus
}

func NewService(repo Repository, taskRepo task.Repository, blobs *storage.BlobStore, maxBytes int64, eventBus *eventbus.Bus) *Service {
	return &Service{
		repo:     repo,
		taskRepo: taskRepo,
		blobs:    blobs,
		maxBytes: maxBytes,
		eventBus: eventBus,
	}
}

func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// Upload stores the image bytes and records the attachment. The blob is
// removed again if the record cannot be written.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*Image, error) {
	if (in.TaskID == "") == (in.DraftKey == "") {
		return nil, cerr.NewValidationError("task_id", "image.owner", "exactly one of task_id and draft_key is required")
	}
	if len(in.Data) == 0 {
		return nil, cerr.NewValidationError("file", "image.empty", "file is empty")
	}
	if int64(len(in.Data)) > s.maxBytes {
		return nil, cerr.NewValidationError("file", "image.size", fmt.Sprintf("file exceeds %d bytes", s.maxBytes))
	}
	contentType := http.DetectContentType(in.Data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, cerr.NewValidationError("file", "image.type", fmt.Sprintf("unsupported content type %q", contentType))
	}
	if in.TaskID != "" {
		if _, err := s.taskRepo.Get(ctx, in.TaskID); err != nil {
			if cerr.IsCode(err, cerr.NotFound) {
				return nil, cerr.NewValidationError("task_id", "task.exists", "task does not exist")
			}
			return nil, err
		}
	}

	fileName := in.FileName
	if fileName == "" {
		fileName = "image"
	}
	url, err := s.blobs.Upload(ctx, in.Data, fileName)
	if err != nil {
		return nil, cerr.NewError(cerr.Unavailable, "object storage unavailable", err)
	}

	img := &Image{
		ID:            ulid.Make().String(),
		TaskID:        in.TaskID,
		DraftKey:      in.DraftKey,
		URL:           url,
		FileName:      fileName,
		FileSizeBytes: int64(len(in.Data)),
		ContentType:   contentType,
		CreatedAt:     time.Now(),
	}
	if err := s.repo.Create(ctx, img); err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), url); delErr != nil {
			slog.WarnContext(ctx, "failed to remove orphaned blob", "url", url, "error", delErr)
		}
		return nil, err
	}

	s.eventBus.PublishNew(eventbus.ImageUploaded, img.ID, map[string]string{"task_id": img.TaskID})
	return img, nil
}

// Remove deletes the blob and then the record.
func (s *Service) Remove(ctx context.Context, imageID string) error {
	img, err := s.repo.Get(ctx, imageID)
	if err != nil {
		return err
	}
	return s.remove(ctx, img)
}

func (s *Service) remove(ctx context.Context, img *Image) error {
	ctx = context.WithoutCancel(ctx)
	if err := s.blobs.Delete(ctx, img.URL); err != nil && !errors.Is(err, storage.ErrForeignURL) {
		return cerr.NewError(cerr.Unavailable, "object storage unavailable", err)
	}
	if err := s.repo.Delete(ctx, img.ID); err != nil {
		return err
	}
	s.eventBus.PublishNew(eventbus.ImageRemoved, img.ID, map[string]string{"task_id": img.TaskID})
	return nil
}

func (s *Service) ListForTask(ctx context.Context, taskID string) ([]*Image, error) {
	return s.repo.ListByTask(ctx, taskID)
}

// ClaimDrafts attaches every image uploaded under draftKey to taskID.
func (s *Service) ClaimDrafts(ctx context.Context, draftKey, taskID string) error {
	drafts, err := s.repo.ListByDraft(ctx, draftKey)
	if err != nil {
		return err
	}
	var errs []error
	for _, img := range drafts {
		img.TaskID = taskID
		img.DraftKey = ""
		if err := s.repo.Update(ctx, img); err != nil {
			errs = append(errs, fmt.Errorf("image %s: %w", img.ID, err))
		}
	}
	return errors.Join(errs...)
}

// RemoveAllForTask deletes every attachment of the task, blobs included.
func (s *Service) RemoveAllForTask(ctx context.Context, taskID string) error {
	images, err := s.repo.ListByTask(ctx, taskID)
	if err != nil {
		return err
	}
	var errs []error
	for _, img := range images {
		if err := s.remove(ctx, img); err != nil {
			errs = append(errs, fmt.Errorf("image %s: %w", img.ID, err))
		}
	}
	return errors.Join(errs...)
}
