package filesystem

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"campus-store/core"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
)

const (
	lockDir        = ".locks"
	lockRetryDelay = 10 * time.Millisecond
)

// documentStore keeps one file per key below basePath. Content type and
// metadata are not persisted; the content type is sniffed on read.
type documentStore struct {
	basePath string // Directory where documents are stored.
}

func NewDocumentStore(basePath string) (core.DocumentStore, error) {
	if err := os.MkdirAll(filepath.Join(basePath, lockDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &documentStore{basePath: basePath}, nil
}

func (s *documentStore) Get(ctx context.Context, key string) (*core.Document, error) {
	filePath, err := s.path(key)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"key": key, "file_path": filePath})

	log.Debug("Retrieving document")
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.NotFound("document " + key)
		}
		log.WithField("error", err).Error("Failed to retrieve document")
		return nil, classify("reading "+key, err)
	}

	return &core.Document{
		Data:        *bytes.NewBuffer(data),
		ContentType: mimetype.Detect(data).String(),
		Version:     version(data),
	}, nil
}

func (s *documentStore) Put(ctx context.Context, key string, document *core.Document, opts core.PutOptions) (string, error) {
	filePath, err := s.path(key)
	if err != nil {
		return "", err
	}
	log := logrus.WithFields(logrus.Fields{"key": key, "file_path": filePath})

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", classify("creating directory for "+key, err)
	}
	lockPath := filepath.Join(s.basePath, lockDir, strings.ReplaceAll(key, "/", "__")+".lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return "", core.Transient("locking "+key, err)
	}
	if !locked {
		return "", core.Transient("locking "+key, ctx.Err())
	}
	defer lock.Unlock()

	if opts.IfMatch != "" || opts.IfNotExists {
		current, err := os.ReadFile(filePath)
		exists := err == nil
		if err != nil && !os.IsNotExist(err) {
			return "", classify("reading "+key, err)
		}
		if opts.IfNotExists && exists {
			return "", core.Conflict(key, core.ErrVersionMismatch)
		}
		if opts.IfMatch != "" && (!exists || version(current) != opts.IfMatch) {
			return "", core.Conflict(key, core.ErrVersionMismatch)
		}
	}

	data := document.Data.Bytes()
	if err := writeAtomic(filePath, data); err != nil {
		log.WithField("error", err).Error("Failed to write document")
		return "", classify("writing "+key, err)
	}
	log.WithField("data_length", len(data)).Debug("Document written")
	return version(data), nil
}

func (s *documentStore) Delete(ctx context.Context, key string) error {
	filePath, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return classify("deleting "+key, err)
	}
	return nil
}

func (s *documentStore) path(key string) (string, error) {
	if err := core.ValidateKey(key); err != nil {
		return "", err
	}
	if strings.HasPrefix(key, ".") {
		return "", core.Validation("key %q is reserved", key)
	}
	return filepath.Join(s.basePath, filepath.FromSlash(key)), nil
}

// writeAtomic writes to a temporary file in the target directory and renames
// it over the target, so readers see either the old or the new content.
func writeAtomic(filePath string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filePath)
}

func version(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func classify(msg string, err error) error {
	if errors.Is(err, os.ErrPermission) {
		return core.Permission(msg, err)
	}
	return core.Transient(msg, err)
}
