package core

import (
	"bytes"
	"context"
	"path"
	"strings"
)

type (
	// Document is a whole blob held under one key of a DocumentStore.
	Document struct {
		Data        bytes.Buffer
		ContentType string
		Metadata    map[string]string
		// Version is assigned by the store on every write and is opaque to
		// callers. It is only meaningful when passed back in PutOptions.
		Version string
	}

	// PutOptions conditions a write. The zero value is an unconditional
	// overwrite.
	PutOptions struct {
		// IfMatch fails the write with a conflict unless the stored version
		// equals it.
		IfMatch string
		// IfNotExists fails the write with a conflict if the key is present.
		IfNotExists bool
	}

	// DocumentStore gets and puts entire documents by key.
	DocumentStore interface {
		Get(ctx context.Context, key string) (*Document, error)
		Put(ctx context.Context, key string, document *Document, opts PutOptions) (string, error)
		Delete(ctx context.Context, key string) error
	}
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"
)

// NewDocument builds a document from raw bytes.
func NewDocument(data []byte, contentType string) *Document {
	return &Document{Data: *bytes.NewBuffer(data), ContentType: contentType}
}

// Bytes returns a copy of the document content.
func (d *Document) Bytes() []byte {
	return bytes.Clone(d.Data.Bytes())
}

// ValidateKey rejects keys that could escape a store's namespace.
func ValidateKey(key string) error {
	if key == "" {
		return Validation("key is required")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return Validation("key %q must be relative", key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return Validation("key %q has an invalid path segment", key)
		}
	}
	if path.Clean(key) != key {
		return Validation("key %q is not canonical", key)
	}
	return nil
}
