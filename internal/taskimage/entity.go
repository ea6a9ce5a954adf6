package taskimage

import (
	"errors"
	"fmt"
	"time"
)

// Image is an attachment of a task. TaskID is empty while the image belongs
// to a task that has not been saved yet; DraftKey groups such uploads until
// the task is created and claims them.
type Image struct {
	ID            string    `json:"id" yaml:"id"`
	TaskID        string    `json:"task_id,omitempty" yaml:"task_id,omitempty"`
	DraftKey      string    `json:"draft_key,omitempty" yaml:"draft_key,omitempty"`
	URL           string    `json:"url" yaml:"url"`
	FileName      string    `json:"file_name" yaml:"file_name"`
	FileSizeBytes int64     `json:"file_size_bytes" yaml:"file_size_bytes"`
	ContentType   string    `json:"content_type" yaml:"content_type"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
}

func (i *Image) Draft() bool {
	return i.TaskID == ""
}

func (i *Image) Validate() error {
	if i.ID == "" {
		return errors.New("image id is empty")
	}
	if i.TaskID == "" && i.DraftKey == "" {
		return fmt.Errorf("image %s: neither task id nor draft key is set", i.ID)
	}
	if i.URL == "" {
		return fmt.Errorf("image %s: url is empty", i.ID)
	}
	if i.FileSizeBytes < 0 {
		return fmt.Errorf("image %s: negative size", i.ID)
	}
	return nil
}
