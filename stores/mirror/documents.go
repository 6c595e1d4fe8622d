package mirror

import (
	"bytes"
	"context"
	"sync"

	"campus-store/core"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// entry is the cached form of a document.
type entry struct {
	Version     string            `msgpack:"v"`
	ContentType string            `msgpack:"ct"`
	Metadata    map[string]string `msgpack:"md,omitempty"`
	Data        []byte            `msgpack:"d"`
}

func encodeEntry(doc *core.Document, version string) ([]byte, error) {
	return msgpack.Marshal(&entry{
		Version:     version,
		ContentType: doc.ContentType,
		Metadata:    doc.Metadata,
		Data:        doc.Data.Bytes(),
	})
}

func decodeEntry(raw []byte) (*core.Document, error) {
	var e entry
	if err := msgpack.Unmarshal(raw, &e); err != nil {
		return nil, err
	}
	return &core.Document{
		Data:        *bytes.NewBuffer(e.Data),
		ContentType: e.ContentType,
		Metadata:    e.Metadata,
		Version:     e.Version,
	}, nil
}

// documentStore serves documents out of the cache alone. Versions are only
// compared within this process, so it must own every writer.
type documentStore struct {
	cache *Cache
	mu    sync.Mutex
}

func NewDocumentStore(cache *Cache) core.DocumentStore {
	return &documentStore{cache: cache}
}

func (s *documentStore) Get(ctx context.Context, key string) (*core.Document, error) {
	if err := core.ValidateKey(key); err != nil {
		return nil, err
	}
	raw, ok := s.cache.Lookup(key)
	if !ok {
		return nil, core.NotFound("document " + key)
	}
	doc, err := decodeEntry(raw)
	if err != nil {
		return nil, core.Internal("decoding mirrored "+key, err)
	}
	return doc, nil
}

func (s *documentStore) Put(ctx context.Context, key string, document *core.Document, opts core.PutOptions) (string, error) {
	if err := core.ValidateKey(key); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if opts.IfMatch != "" || opts.IfNotExists {
		current, err := s.Get(ctx, key)
		exists := err == nil
		if err != nil && !core.IsCode(err, core.CodeNotFound) {
			return "", err
		}
		if opts.IfNotExists && exists {
			return "", core.Conflict(key, core.ErrVersionMismatch)
		}
		if opts.IfMatch != "" && (!exists || current.Version != opts.IfMatch) {
			return "", core.Conflict(key, core.ErrVersionMismatch)
		}
	}

	version := uuid.NewString()
	raw, err := encodeEntry(document, version)
	if err != nil {
		return "", core.Internal("encoding "+key, err)
	}
	if err := s.cache.Set(key, raw); err != nil {
		return "", core.Internal("caching "+key, err)
	}
	return version, nil
}

func (s *documentStore) Delete(ctx context.Context, key string) error {
	if err := core.ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// bigcache reports deleting an absent key as an error
	_ = s.cache.BigCache.Delete(key)
	return nil
}
