package mirror

import (
	"context"
	"errors"
	"testing"

	"campus-store/core"
	"campus-store/stores/memory"
	"campus-store/stores/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := NewCache(CacheConfig{Size: 8})
	require.NoError(t, err)
	return cache
}

func TestCache_LastWriteWins(t *testing.T) {
	cache := newCache(t)

	_, ok := cache.Lookup("submitted:Design 101")
	assert.False(t, ok)

	require.NoError(t, cache.Set("submitted:Design 101", []byte("1")))
	require.NoError(t, cache.Set("submitted:Design 101", []byte("2")))

	got, ok := cache.Lookup("submitted:Design 101")
	require.True(t, ok)
	assert.Equal(t, "2", string(got))
}

func TestDocumentStore(t *testing.T) {
	storetest.Run(t, NewDocumentStore(newCache(t)))
}

// flaky fails every call with the configured error while it is set.
type flaky struct {
	core.DocumentStore
	err error
}

func (f *flaky) Get(ctx context.Context, key string) (*core.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.DocumentStore.Get(ctx, key)
}

func (f *flaky) Put(ctx context.Context, key string, doc *core.Document, opts core.PutOptions) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.DocumentStore.Put(ctx, key, doc, opts)
}

func TestFallbackStore(t *testing.T) {
	ctx := context.Background()
	remote := &flaky{DocumentStore: memory.NewDocumentStore()}
	store := NewFallbackStore(remote, newCache(t))

	version, err := store.Put(ctx, "vr-sessions.json", core.NewDocument([]byte(`[{"id":"a"}]`), core.ContentTypeJSON), core.PutOptions{})
	require.NoError(t, err)

	t.Run("serves mirror on transient failure", func(t *testing.T) {
		remote.err = core.Transient("unreachable", errors.New("dial tcp: i/o timeout"))
		defer func() { remote.err = nil }()

		got, err := store.Get(ctx, "vr-sessions.json")
		require.NoError(t, err)
		assert.Equal(t, `[{"id":"a"}]`, got.Data.String())
		assert.Equal(t, version, got.Version)
	})

	t.Run("writes never fall back", func(t *testing.T) {
		remote.err = core.Transient("unreachable", errors.New("dial tcp: i/o timeout"))
		defer func() { remote.err = nil }()

		_, err := store.Put(ctx, "vr-sessions.json", core.NewDocument([]byte(`[]`), core.ContentTypeJSON), core.PutOptions{IfMatch: version})
		assert.True(t, core.IsCode(err, core.CodeTransient))
	})

	t.Run("permission errors are not masked", func(t *testing.T) {
		remote.err = core.Permission("denied", nil)
		defer func() { remote.err = nil }()

		_, err := store.Get(ctx, "vr-sessions.json")
		assert.True(t, core.IsCode(err, core.CodePermission))
	})

	t.Run("remote is authoritative", func(t *testing.T) {
		_, err := remote.DocumentStore.Put(ctx, "vr-sessions.json", core.NewDocument([]byte(`[]`), core.ContentTypeJSON), core.PutOptions{})
		require.NoError(t, err)

		got, err := store.Get(ctx, "vr-sessions.json")
		require.NoError(t, err)
		assert.Equal(t, `[]`, got.Data.String())
	})

	t.Run("miss without mirror", func(t *testing.T) {
		remote.err = core.Transient("unreachable", errors.New("dial tcp: i/o timeout"))
		defer func() { remote.err = nil }()

		_, err := store.Get(ctx, "never-mirrored.json")
		assert.True(t, core.IsCode(err, core.CodeTransient))
	})

	t.Run("delete clears mirror", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "vr-sessions.json"))

		remote.err = core.Transient("unreachable", errors.New("dial tcp: i/o timeout"))
		defer func() { remote.err = nil }()
		_, err := store.Get(ctx, "vr-sessions.json")
		assert.True(t, core.IsCode(err, core.CodeTransient))
	})
}

func TestFallbackStore_SkipsNestedKeys(t *testing.T) {
	ctx := context.Background()
	cache := newCache(t)
	remote := &flaky{DocumentStore: memory.NewDocumentStore()}
	store := NewFallbackStore(remote, cache)

	_, err := store.Put(ctx, "assignments/1714557600000_sketch.png", core.NewDocument([]byte("large upload"), "image/png"), core.PutOptions{})
	require.NoError(t, err)
	_, err = store.Get(ctx, "assignments/1714557600000_sketch.png")
	require.NoError(t, err)

	_, ok := cache.Lookup("assignments/1714557600000_sketch.png")
	assert.False(t, ok)

	remote.err = core.Transient("unreachable", errors.New("dial tcp: i/o timeout"))
	defer func() { remote.err = nil }()
	_, err = store.Get(ctx, "assignments/1714557600000_sketch.png")
	assert.True(t, core.IsCode(err, core.CodeTransient))
}
