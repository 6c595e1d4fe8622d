package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"campus-store/core"
	"campus-store/stores/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentStore(t *testing.T) {
	store, err := NewDocumentStore(t.TempDir())
	require.NoError(t, err)
	storetest.Run(t, store)
}

func TestDocumentStore_Layout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewDocumentStore(dir)
	require.NoError(t, err)

	_, err = store.Put(ctx, "vr-sessions.json", core.NewDocument([]byte(`[]`), core.ContentTypeJSON), core.PutOptions{})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "vr-sessions.json"))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	// no temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-")
	}
}

func TestDocumentStore_VersionIsContentHash(t *testing.T) {
	ctx := context.Background()
	store, err := NewDocumentStore(t.TempDir())
	require.NoError(t, err)

	v1, err := store.Put(ctx, "a.json", core.NewDocument([]byte(`[1]`), core.ContentTypeJSON), core.PutOptions{})
	require.NoError(t, err)
	v2, err := store.Put(ctx, "b.json", core.NewDocument([]byte(`[1]`), core.ContentTypeJSON), core.PutOptions{})
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}

func TestDocumentStore_ReservedKeys(t *testing.T) {
	store, err := NewDocumentStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), ".locks/vr-sessions.json.lock")
	assert.True(t, core.IsCode(err, core.CodeValidation))
}
