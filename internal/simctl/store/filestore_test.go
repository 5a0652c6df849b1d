package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	s := NewFileStore(path)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "a", []byte(`{"v":1}`)))
	require.NoError(t, s.Set(ctx, "b", []byte(`{"v":2}`)))

	value, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"v":1}`, string(value))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)

	require.NoError(t, s.Remove(ctx, "a"))
	_, ok, err = s.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	// removing an absent key is fine
	require.NoError(t, s.Remove(ctx, "never-there"))
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	ctx := context.Background()

	first := NewFileStore(path)
	require.NoError(t, first.Set(ctx, "job-1", []byte(`{"id":"job-1"}`)))

	second := NewFileStore(path)
	value, ok, err := second.Get(ctx, "job-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"job-1"}`, string(value))
}

func TestFileStore_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	s := NewFileStore(path)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", []byte(`1`)))
	require.NoError(t, s.Set(ctx, "b", []byte(`2`)))
	require.NoError(t, s.Clear(ctx))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	// cleared state is persisted
	reopened := NewFileStore(path)
	keys, err = reopened.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	s := NewFileStore(path)
	_, _, err := s.Get(context.Background(), "a")
	assert.Error(t, err)
}

func TestFileStore_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "jobs.json")
	s := NewFileStore(path)

	require.NoError(t, s.Set(context.Background(), "a", []byte(`1`)))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestFileStore_CancelledContext(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "jobs.json"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Set(ctx, "a", []byte(`1`)), context.Canceled)
}

func TestMemStore_RoundTrip(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", []byte(`{"v":1}`)))

	value, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"v":1}`, string(value))

	// stored values are copies, not aliases
	value[0] = 'X'
	again, _, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(again))

	require.NoError(t, s.Clear(ctx))
	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}
