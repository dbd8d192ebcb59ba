package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMarkerStore_MarkOnce(t *testing.T) {
	store := NewMemoryMarkerStore()
	ctx := context.Background()

	first, err := store.MarkOnce(ctx, "post:1:visitor:abc", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.MarkOnce(ctx, "post:1:visitor:abc", time.Hour)
	require.NoError(t, err)
	assert.False(t, again)

	other, err := store.MarkOnce(ctx, "post:1:visitor:def", time.Hour)
	require.NoError(t, err)
	assert.True(t, other)
}

func TestMemoryMarkerStore_MarkerExpires(t *testing.T) {
	current := time.Unix(1_700_000_000, 0)
	store := NewMemoryMarkerStore().WithClock(func() time.Time { return current })
	ctx := context.Background()

	first, err := store.MarkOnce(ctx, "scroll:s1:1:50", 30*time.Minute)
	require.NoError(t, err)
	require.True(t, first)

	current = current.Add(10 * time.Minute)
	mid, err := store.MarkOnce(ctx, "scroll:s1:1:50", 30*time.Minute)
	require.NoError(t, err)
	assert.False(t, mid, "marker still live inside the TTL")

	current = current.Add(25 * time.Minute)
	late, err := store.MarkOnce(ctx, "scroll:s1:1:50", 30*time.Minute)
	require.NoError(t, err)
	assert.True(t, late, "expired marker can be set again")
}
