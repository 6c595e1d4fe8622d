package stores

import (
	"context"
	"testing"
	"time"

	"campus-store/core"
	"campus-store/metrics"
	"campus-store/stores/memory"
	"campus-store/stores/storetest"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type slowStore struct {
	core.DocumentStore
}

func (s *slowStore) Get(ctx context.Context, key string) (*core.Document, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestInstrument(t *testing.T) {
	storetest.Run(t, Instrument(memory.NewDocumentStore(), "memory-instrumented", time.Second))
}

func TestInstrument_TimeoutIsTransient(t *testing.T) {
	store := Instrument(&slowStore{DocumentStore: memory.NewDocumentStore()}, "slow", 10*time.Millisecond)

	_, err := store.Get(context.Background(), "vr-sessions.json")
	assert.True(t, core.IsCode(err, core.CodeTransient), err)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.StoreOperations.WithLabelValues("slow", "get", "transient")))
}

func TestInstrument_CountsOutcomes(t *testing.T) {
	store := Instrument(memory.NewDocumentStore(), "counted", time.Second)
	ctx := context.Background()

	_, _ = store.Get(ctx, "missing.json")
	_, _ = store.Put(ctx, "a.json", core.NewDocument([]byte(`[]`), core.ContentTypeJSON), core.PutOptions{})

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.StoreOperations.WithLabelValues("counted", "get", "not_found")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.StoreOperations.WithLabelValues("counted", "put", "ok")))
}
