package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode"

	"github.com/oklog/ulid/v2"
)

// ErrForeignURL is returned by BlobStore.Delete for URLs it did not issue.
var ErrForeignURL = errors.New("url was not issued by this blob store")

// BlobStore stores opaque binary objects (task image attachments) in a
// Storage and hands out stable retrieval URLs for them.
type BlobStore struct {
	storage Storage
	baseURL string
	prefix  string
}

// NewBlobStore returns a BlobStore writing under prefix and issuing URLs of
// the form <baseURL>/<prefix>/<key>.
func NewBlobStore(s Storage, baseURL, prefix string) *BlobStore {
	return &BlobStore{
		storage: s,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		prefix:  strings.Trim(prefix, "/"),
	}
}

// Upload writes data under a fresh key derived from suggestedName and returns
// its URL. Two uploads with the same name never collide.
func (b *BlobStore) Upload(ctx context.Context, data []byte, suggestedName string) (string, error) {
	key := path.Join(b.prefix, ulid.Make().String()+"-"+sanitizeName(suggestedName))
	if err := b.storage.Write(ctx, key, data); err != nil {
		return "", fmt.Errorf("failed to upload blob %s: %w", key, err)
	}
	return b.baseURL + "/" + key, nil
}

// Delete removes the blob behind url. Deleting a blob that is already gone
// is not an error.
func (b *BlobStore) Delete(ctx context.Context, url string) error {
	key, err := b.KeyFromURL(url)
	if err != nil {
		return err
	}
	if err := b.storage.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}
	return nil
}

// Open streams the blob stored under key for the HTTP blob handler. Keys
// outside the blob prefix are reported as missing.
func (b *BlobStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if !strings.HasPrefix(key, b.prefix+"/") {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return b.storage.Open(ctx, key)
}

func (b *BlobStore) KeyFromURL(url string) (string, error) {
	key, ok := strings.CutPrefix(url, b.baseURL+"/")
	if !ok || !strings.HasPrefix(key, b.prefix+"/") {
		return "", fmt.Errorf("%s: %w", url, ErrForeignURL)
	}
	return key, nil
}

func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			sb.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	out := strings.Trim(sb.String(), "._")
	if out == "" {
		return "blob"
	}
	if len(out) > 80 {
		out = out[len(out)-80:]
	}
	return out
}
