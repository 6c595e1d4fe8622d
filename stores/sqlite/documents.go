package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"campus-store/core"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

const schema = `CREATE TABLE IF NOT EXISTS documents (
	key          TEXT PRIMARY KEY,
	data         BLOB NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	metadata     TEXT NOT NULL DEFAULT '{}',
	version      TEXT NOT NULL
);`

type DocumentStore struct {
	db *sql.DB
}

func NewDocumentStore(dataSourceName string) (*DocumentStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// a single connection serializes writers and keeps :memory: databases
	// shared between calls
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating documents table: %w", err)
	}
	return &DocumentStore{db: db}, nil
}

func (s *DocumentStore) Close() error {
	return s.db.Close()
}

func (s *DocumentStore) Get(ctx context.Context, key string) (*core.Document, error) {
	if err := core.ValidateKey(key); err != nil {
		return nil, err
	}
	log := logrus.WithField("key", key)
	log.Debug("Retrieving document")

	var (
		data        []byte
		contentType string
		rawMeta     string
		version     string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT data, content_type, metadata, version FROM documents WHERE key = ?", key,
	).Scan(&data, &contentType, &rawMeta, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NotFound("document " + key)
		}
		log.WithField("error", err).Error("Failed to retrieve document")
		return nil, classify("reading "+key, err)
	}

	var metadata map[string]string
	if err := json.Unmarshal([]byte(rawMeta), &metadata); err != nil {
		return nil, core.Internal("decoding metadata of "+key, err)
	}
	if len(metadata) == 0 {
		metadata = nil
	}
	return &core.Document{
		Data:        *bytes.NewBuffer(data),
		ContentType: contentType,
		Metadata:    metadata,
		Version:     version,
	}, nil
}

func (s *DocumentStore) Put(ctx context.Context, key string, document *core.Document, opts core.PutOptions) (string, error) {
	if err := core.ValidateKey(key); err != nil {
		return "", err
	}
	rawMeta, err := json.Marshal(document.Metadata)
	if err != nil {
		return "", core.Validation("metadata of %s is not encodable: %v", key, err)
	}
	if document.Metadata == nil {
		rawMeta = []byte("{}")
	}
	data := document.Data.Bytes()
	version := uuid.NewString()
	log := logrus.WithFields(logrus.Fields{"key": key, "data_length": len(data)})

	var res sql.Result
	switch {
	case opts.IfNotExists:
		res, err = s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO documents (key, data, content_type, metadata, version) VALUES (?, ?, ?, ?, ?)`,
			key, data, document.ContentType, string(rawMeta), version)
	case opts.IfMatch != "":
		res, err = s.db.ExecContext(ctx,
			`UPDATE documents SET data = ?, content_type = ?, metadata = ?, version = ? WHERE key = ? AND version = ?`,
			data, document.ContentType, string(rawMeta), version, key, opts.IfMatch)
	default:
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO documents (key, data, content_type, metadata, version) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET data = excluded.data, content_type = excluded.content_type,
			 metadata = excluded.metadata, version = excluded.version`,
			key, data, document.ContentType, string(rawMeta), version)
	}
	if err != nil {
		log.WithField("error", err).Error("Failed to write document")
		return "", classify("writing "+key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", classify("writing "+key, err)
	}
	if n == 0 {
		return "", core.Conflict(key, core.ErrVersionMismatch)
	}
	log.Debug("Document written")
	return version, nil
}

func (s *DocumentStore) Delete(ctx context.Context, key string) error {
	if err := core.ValidateKey(key); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE key = ?", key); err != nil {
		return classify("deleting "+key, err)
	}
	return nil
}

func classify(msg string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrPerm, sqlite3.ErrAuth, sqlite3.ErrReadonly:
			return core.Permission(msg, err)
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr, sqlite3.ErrFull:
			return core.Transient(msg, err)
		}
		return core.Internal(msg, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return core.Transient(msg, err)
	}
	return core.Internal(msg, err)
}
