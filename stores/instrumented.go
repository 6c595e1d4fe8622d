package stores

import (
	"context"
	"errors"
	"strings"
	"time"

	"campus-store/core"
	"campus-store/metrics"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds every store call.
const DefaultTimeout = 10 * time.Second

// instrumented bounds each call with a timeout and records metrics.
type instrumented struct {
	core.DocumentStore
	backend string
	timeout time.Duration
}

// Instrument wraps store so that each call carries a timeout, and a call
// that hits it fails with a transient error.
func Instrument(store core.DocumentStore, backend string, timeout time.Duration) core.DocumentStore {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &instrumented{DocumentStore: store, backend: backend, timeout: timeout}
}

func (s *instrumented) Get(ctx context.Context, key string) (doc *core.Document, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	defer s.observe("get", key, time.Now(), &err)

	doc, err = s.DocumentStore.Get(ctx, key)
	err = s.translate(ctx, err)
	return doc, err
}

func (s *instrumented) Put(ctx context.Context, key string, document *core.Document, opts core.PutOptions) (version string, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	defer s.observe("put", key, time.Now(), &err)

	version, err = s.DocumentStore.Put(ctx, key, document, opts)
	err = s.translate(ctx, err)
	return version, err
}

func (s *instrumented) Delete(ctx context.Context, key string) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	defer s.observe("delete", key, time.Now(), &err)

	err = s.DocumentStore.Delete(ctx, key)
	err = s.translate(ctx, err)
	return err
}

func (s *instrumented) translate(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !core.IsCode(err, core.CodeTransient) {
		return core.Transient("store call timed out after "+s.timeout.String(), err)
	}
	return err
}

func (s *instrumented) observe(op, key string, start time.Time, err *error) {
	metrics.StoreLatency.WithLabelValues(s.backend, op).Observe(time.Since(start).Seconds())

	outcome := "ok"
	if *err != nil {
		outcome = strings.ToLower(string(core.CodeOf(*err)))
	}
	metrics.StoreOperations.WithLabelValues(s.backend, op, outcome).Inc()

	if *err != nil && !core.IsCode(*err, core.CodeNotFound) {
		logrus.WithFields(logrus.Fields{
			"backend": s.backend,
			"op":      op,
			"key":     key,
			"error":   *err,
		}).Debug("Store call failed")
	}
}
