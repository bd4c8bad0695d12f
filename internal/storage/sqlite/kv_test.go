package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestKV(t *testing.T) *KV {
	t.Helper()
	kv, err := Open(filepath.Join(t.TempDir(), "gifs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func TestKV_GetMissing(t *testing.T) {
	kv := openTestKV(t)
	ctx := context.Background()

	v, ok, err := kv.Get(ctx, "GifFolders:gifs:1")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, v)
}

func TestKV_SetGetOverwrite(t *testing.T) {
	kv := openTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", []byte(`{"a":1}`)))
	v, ok, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte(`{"a":1}`), v)

	require.NoError(t, kv.Set(ctx, "k", []byte(`{"a":2}`)))
	v, _, err = kv.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte(`{"a":2}`), v)
}

func TestKV_Delete(t *testing.T) {
	kv := openTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", []byte("x")))
	require.NoError(t, kv.Delete(ctx, "k"))
	_, ok, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	// absent key is not an error
	require.NoError(t, kv.Delete(ctx, "k"))
}
