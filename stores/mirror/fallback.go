package mirror

import (
	"context"
	"strings"

	"campus-store/core"

	"github.com/sirupsen/logrus"
)

// FallbackStore decorates a remote store with the mirror. Reads refresh the
// mirror; a read the remote store fails transiently is answered from the
// mirror instead. Writes always go to the remote store. Only top-level keys,
// the collection documents, are mirrored; nested keys hold uploads.
type FallbackStore struct {
	remote core.DocumentStore
	cache  *Cache
}

func NewFallbackStore(remote core.DocumentStore, cache *Cache) *FallbackStore {
	return &FallbackStore{remote: remote, cache: cache}
}

func (s *FallbackStore) Get(ctx context.Context, key string) (*core.Document, error) {
	doc, err := s.remote.Get(ctx, key)
	if !Mirrored(key) {
		return doc, err
	}
	switch {
	case err == nil:
		s.remember(key, doc, doc.Version)
		return doc, nil
	case core.IsCode(err, core.CodeNotFound):
		_ = s.cache.BigCache.Delete(key)
		return nil, err
	case !core.IsCode(err, core.CodeTransient):
		return nil, err
	}

	raw, ok := s.cache.Lookup(key)
	if !ok {
		return nil, err
	}
	mirrored, derr := decodeEntry(raw)
	if derr != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"key": key, "error": err}).Warn("Remote store unreachable, serving mirrored document")
	return mirrored, nil
}

func (s *FallbackStore) Put(ctx context.Context, key string, document *core.Document, opts core.PutOptions) (string, error) {
	version, err := s.remote.Put(ctx, key, document, opts)
	if err != nil {
		return "", err
	}
	s.remember(key, document, version)
	return version, nil
}

func (s *FallbackStore) Delete(ctx context.Context, key string) error {
	if err := s.remote.Delete(ctx, key); err != nil {
		return err
	}
	_ = s.cache.BigCache.Delete(key)
	return nil
}

func (s *FallbackStore) remember(key string, doc *core.Document, version string) {
	if !Mirrored(key) {
		return
	}
	raw, err := encodeEntry(doc, version)
	if err == nil {
		err = s.cache.Set(key, raw)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{"key": key, "error": err}).Warn("Failed to mirror document")
	}
}

// Mirrored reports whether the fallback keeps a copy of key.
func Mirrored(key string) bool {
	return !strings.Contains(key, "/")
}
