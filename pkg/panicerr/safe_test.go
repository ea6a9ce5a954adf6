package panicerr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafe(t *testing.T) {
	assert.NoError(t, Safe(func() error { return nil }))

	want := errors.New("plain")
	assert.ErrorIs(t, Safe(func() error { return want }), want)

	err := Safe(func() error { panic("boom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestSafeContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), struct{}{}, "v")
	err := SafeContext(ctx, func(got context.Context) error {
		assert.Equal(t, "v", got.Value(struct{}{}))
		return nil
	})
	assert.NoError(t, err)

	err = SafeContext(ctx, func(context.Context) error {
		var m map[string]int
		m["x"] = 1
		return nil
	})
	assert.Error(t, err)
}
