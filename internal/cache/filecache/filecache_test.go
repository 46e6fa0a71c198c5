package filecache_test

import (
	"testing"
	"time"

	"github.com/mprcore/reviewd/internal/cache/filecache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_PutGet_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := filecache.New[string](dir, 1, time.Hour)

	require.NoError(t, store.Put("key1", "hello"))

	got, ok := store.Get("key1")
	require.True(t, ok)
	assert.Equal(t, "hello", got)
}

func TestStore_Get_Miss(t *testing.T) {
	dir := t.TempDir()
	store := filecache.New[string](dir, 1, time.Hour)

	_, ok := store.Get("absent")
	assert.False(t, ok)
}

func TestStore_Get_VersionMismatch(t *testing.T) {
	dir := t.TempDir()
	writer := filecache.New[string](dir, 1, time.Hour)
	require.NoError(t, writer.Put("key1", "hello"))

	reader := filecache.New[string](dir, 2, time.Hour)
	_, ok := reader.Get("key1")
	assert.False(t, ok)
}

func TestStore_Get_ExpiredTTL(t *testing.T) {
	dir := t.TempDir()
	store := filecache.New[string](dir, 1, -time.Hour)
	require.NoError(t, store.Put("key1", "hello"))

	_, ok := store.Get("key1")
	assert.False(t, ok)
}
