package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStore(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	b := NewBlobStore(s, "https://cdn.example.com/blobs/", "/images/")
	ctx := context.Background()

	url1, err := b.Upload(ctx, []byte("one"), "../../My Shot.png")
	require.NoError(t, err)
	url2, err := b.Upload(ctx, []byte("two"), "../../My Shot.png")
	require.NoError(t, err)
	assert.NotEqual(t, url1, url2)
	assert.True(t, strings.HasPrefix(url1, "https://cdn.example.com/blobs/images/"))
	assert.True(t, strings.HasSuffix(url1, "-My_Shot.png"))

	key, err := b.KeyFromURL(url1)
	require.NoError(t, err)
	rc, err := b.Open(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, []byte("one"), data)

	require.NoError(t, s.Write(ctx, "tasks/secret.yaml", []byte("x")))
	_, err = b.Open(ctx, "tasks/secret.yaml")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.Delete(ctx, url1))
	require.NoError(t, b.Delete(ctx, url1))
	_, err = b.Open(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, b.Delete(ctx, "https://elsewhere.example.com/x.png"), ErrForeignURL)
	_, err = b.KeyFromURL("https://cdn.example.com/blobs/other/x.png")
	assert.ErrorIs(t, err, ErrForeignURL)
}
