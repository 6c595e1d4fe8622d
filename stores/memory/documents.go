package memory

import (
	"bytes"
	"context"
	"maps"
	"sync"

	"campus-store/core"

	"github.com/google/uuid"
)

type entry struct {
	data        []byte
	contentType string
	metadata    map[string]string
	version     string
}

type documentStore struct {
	mu        sync.RWMutex
	documents map[string]entry
}

func NewDocumentStore() core.DocumentStore {
	return &documentStore{documents: make(map[string]entry)}
}

func (s *documentStore) Get(ctx context.Context, key string) (*core.Document, error) {
	if err := core.ValidateKey(key); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.documents[key]
	if !ok {
		return nil, core.NotFound("document " + key)
	}
	return &core.Document{
		Data:        *bytes.NewBuffer(bytes.Clone(e.data)),
		ContentType: e.contentType,
		Metadata:    maps.Clone(e.metadata),
		Version:     e.version,
	}, nil
}

func (s *documentStore) Put(ctx context.Context, key string, document *core.Document, opts core.PutOptions) (string, error) {
	if err := core.ValidateKey(key); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.documents[key]
	if opts.IfNotExists && exists {
		return "", core.Conflict(key, core.ErrVersionMismatch)
	}
	if opts.IfMatch != "" && (!exists || current.version != opts.IfMatch) {
		return "", core.Conflict(key, core.ErrVersionMismatch)
	}

	version := uuid.NewString()
	s.documents[key] = entry{
		data:        document.Bytes(),
		contentType: document.ContentType,
		metadata:    maps.Clone(document.Metadata),
		version:     version,
	}
	return version, nil
}

func (s *documentStore) Delete(ctx context.Context, key string) error {
	if err := core.ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.documents, key)
	return nil
}
