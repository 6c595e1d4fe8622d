// Package storetest is a conformance suite run against every
// core.DocumentStore backend.
package storetest

import (
	"context"
	"sync"
	"testing"

	"campus-store/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises store. Keys are prefixed with the test name, so one store
// may be shared between suites.
func Run(t *testing.T, store core.DocumentStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		_, err := store.Get(ctx, "missing.json")
		assert.True(t, core.IsCode(err, core.CodeNotFound), err)
	})

	t.Run("put and get", func(t *testing.T) {
		version, err := store.Put(ctx, "put-get.json", core.NewDocument([]byte(`[{"id":"a"}]`), core.ContentTypeJSON), core.PutOptions{})
		require.NoError(t, err)
		assert.NotEmpty(t, version)

		got, err := store.Get(ctx, "put-get.json")
		require.NoError(t, err)
		assert.Equal(t, `[{"id":"a"}]`, got.Data.String())
		assert.Equal(t, version, got.Version)
		assert.Contains(t, got.ContentType, "json")
	})

	t.Run("put overwrites", func(t *testing.T) {
		_, err := store.Put(ctx, "overwrite.json", core.NewDocument([]byte(`[1]`), core.ContentTypeJSON), core.PutOptions{})
		require.NoError(t, err)
		_, err = store.Put(ctx, "overwrite.json", core.NewDocument([]byte(`[2]`), core.ContentTypeJSON), core.PutOptions{})
		require.NoError(t, err)

		got, err := store.Get(ctx, "overwrite.json")
		require.NoError(t, err)
		assert.Equal(t, `[2]`, got.Data.String())
	})

	t.Run("nested keys", func(t *testing.T) {
		_, err := store.Put(ctx, "assignments/1714557600000_notes.txt", core.NewDocument([]byte("hello"), core.ContentTypeText), core.PutOptions{})
		require.NoError(t, err)

		got, err := store.Get(ctx, "assignments/1714557600000_notes.txt")
		require.NoError(t, err)
		assert.Equal(t, "hello", got.Data.String())
		assert.Contains(t, got.ContentType, "text/plain")
	})

	t.Run("if not exists", func(t *testing.T) {
		_, err := store.Put(ctx, "create-once.json", core.NewDocument([]byte(`[]`), core.ContentTypeJSON), core.PutOptions{IfNotExists: true})
		require.NoError(t, err)

		_, err = store.Put(ctx, "create-once.json", core.NewDocument([]byte(`[1]`), core.ContentTypeJSON), core.PutOptions{IfNotExists: true})
		assert.True(t, core.IsCode(err, core.CodeConflict), err)

		got, err := store.Get(ctx, "create-once.json")
		require.NoError(t, err)
		assert.Equal(t, `[]`, got.Data.String())
	})

	t.Run("if match", func(t *testing.T) {
		v1, err := store.Put(ctx, "cas.json", core.NewDocument([]byte(`[1]`), core.ContentTypeJSON), core.PutOptions{})
		require.NoError(t, err)

		v2, err := store.Put(ctx, "cas.json", core.NewDocument([]byte(`[1,2]`), core.ContentTypeJSON), core.PutOptions{IfMatch: v1})
		require.NoError(t, err)
		assert.NotEqual(t, v1, v2)

		// stale version loses
		_, err = store.Put(ctx, "cas.json", core.NewDocument([]byte(`[1,3]`), core.ContentTypeJSON), core.PutOptions{IfMatch: v1})
		assert.True(t, core.IsCode(err, core.CodeConflict), err)
		assert.ErrorIs(t, err, core.ErrVersionMismatch)

		got, err := store.Get(ctx, "cas.json")
		require.NoError(t, err)
		assert.Equal(t, `[1,2]`, got.Data.String())
		assert.Equal(t, v2, got.Version)
	})

	t.Run("if match on missing key", func(t *testing.T) {
		_, err := store.Put(ctx, "never-written.json", core.NewDocument([]byte(`[]`), core.ContentTypeJSON), core.PutOptions{IfMatch: "some-version"})
		assert.True(t, core.IsCode(err, core.CodeConflict), err)
	})

	t.Run("concurrent conditional writers", func(t *testing.T) {
		v, err := store.Put(ctx, "race.json", core.NewDocument([]byte(`[]`), core.ContentTypeJSON), core.PutOptions{})
		require.NoError(t, err)

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Put(ctx, "race.json", core.NewDocument([]byte(`[1]`), core.ContentTypeJSON), core.PutOptions{IfMatch: v})
				if err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, successes)
	})

	t.Run("delete", func(t *testing.T) {
		_, err := store.Put(ctx, "doomed.json", core.NewDocument([]byte(`[]`), core.ContentTypeJSON), core.PutOptions{})
		require.NoError(t, err)
		require.NoError(t, store.Delete(ctx, "doomed.json"))

		_, err = store.Get(ctx, "doomed.json")
		assert.True(t, core.IsCode(err, core.CodeNotFound), err)

		// idempotent
		assert.NoError(t, store.Delete(ctx, "doomed.json"))
	})

	t.Run("invalid keys", func(t *testing.T) {
		for _, key := range []string{"", "../escape.json", "/abs.json"} {
			_, err := store.Get(ctx, key)
			assert.True(t, core.IsCode(err, core.CodeValidation), key)
			_, err = store.Put(ctx, key, core.NewDocument(nil, core.ContentTypeJSON), core.PutOptions{})
			assert.True(t, core.IsCode(err, core.CodeValidation), key)
		}
	})
}
