// Package collections keeps named collections of records, each stored as a
// single JSON array document. Writers never lock: every mutation reads the
// document with its version, rewrites it and stores it conditioned on that
// version, starting over from a fresh read when another writer got there
// first.
package collections

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"campus-store/core"
	"campus-store/metrics"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

const (
	DefaultRetryMaxElapsed = 10 * time.Second

	retryInitialInterval = 20 * time.Millisecond
	retryMaxInterval     = time.Second
)

var nameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Key returns the document key of a collection.
func Key(name string) string {
	return name + ".json"
}

// ValidateName rejects collection names that cannot be used as a key.
func ValidateName(name string) error {
	if !nameRegex.MatchString(name) {
		return core.Validation("invalid collection name %q", name)
	}
	return nil
}

type Options struct {
	// Schemas restricts the fields callers may set, per collection.
	// Collections without an entry accept any field.
	Schemas map[string][]string
	// RetryMaxElapsed bounds the time spent retrying one operation.
	RetryMaxElapsed time.Duration
	Notifier        Notifier
	// Clock defaults to time.Now.
	Clock func() time.Time
	// IDs returns the generator of a collection. Defaults to a ULID
	// generator prefixed after the collection name.
	IDs func(collection string) core.IDGenerator
}

type Repository struct {
	store      core.DocumentStore
	schemas    map[string]map[string]struct{}
	maxElapsed time.Duration
	notifier   Notifier
	now        func() time.Time
	newIDs     func(string) core.IDGenerator

	mu  sync.Mutex
	ids map[string]core.IDGenerator
}

func NewRepository(store core.DocumentStore, opts Options) *Repository {
	r := &Repository{
		store:      store,
		schemas:    make(map[string]map[string]struct{}, len(opts.Schemas)),
		maxElapsed: opts.RetryMaxElapsed,
		notifier:   opts.Notifier,
		now:        opts.Clock,
		newIDs:     opts.IDs,
		ids:        make(map[string]core.IDGenerator),
	}
	for name, fields := range opts.Schemas {
		allowed := make(map[string]struct{}, len(fields))
		for _, f := range fields {
			allowed[f] = struct{}{}
		}
		r.schemas[name] = allowed
	}
	if r.maxElapsed <= 0 {
		r.maxElapsed = DefaultRetryMaxElapsed
	}
	if r.notifier == nil {
		r.notifier = Discard
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.newIDs == nil {
		r.newIDs = func(name string) core.IDGenerator {
			return core.NewIDGenerator(core.IDPrefix(name))
		}
	}
	return r
}

// List returns every record of the collection. A collection that was never
// written is empty.
func (r *Repository) List(ctx context.Context, name string) ([]core.Record, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	records, _, err := r.load(ctx, name)
	return records, err
}

// ListWhere returns the records whose fields render equal to every value
// of filter.
func (r *Repository) ListWhere(ctx context.Context, name string, filter map[string]string) ([]core.Record, error) {
	records, err := r.List(ctx, name)
	if err != nil || len(filter) == 0 {
		return records, err
	}
	matched := make([]core.Record, 0, len(records))
	for _, rec := range records {
		if matches(rec, filter) {
			matched = append(matched, rec)
		}
	}
	return matched, nil
}

func (r *Repository) Get(ctx context.Context, name, id string) (core.Record, error) {
	records, err := r.List(ctx, name)
	if err != nil {
		return core.Record{}, err
	}
	for _, rec := range records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return core.Record{}, core.NotFound("record " + id)
}

// Create appends a record built from payload. Reserved keys in payload are
// ignored. The id and timestamps are assigned once, so a retried write
// stores exactly the record that is returned.
func (r *Repository) Create(ctx context.Context, name string, payload map[string]any) (core.Record, error) {
	if err := ValidateName(name); err != nil {
		return core.Record{}, err
	}
	fields, err := r.fields(name, payload)
	if err != nil {
		return core.Record{}, err
	}
	now := core.Timestamp(r.now())
	record := core.Record{
		ID:        r.idGenerator(name).Next(),
		CreatedAt: now,
		UpdatedAt: now,
		Fields:    fields,
	}

	err = r.mutate(ctx, name, func(records []core.Record) ([]core.Record, bool, error) {
		// an earlier attempt may have landed even though it reported failure
		if indexOf(records, record.ID) >= 0 {
			return records, false, nil
		}
		return append(records, record.Clone()), true, nil
	})
	if err != nil {
		return core.Record{}, err
	}
	r.notifier.Notify(Event{Collection: name, Type: EventCreated, ID: record.ID})
	return record, nil
}

// Update merges patch into the record named by patch["id"]. The stored id
// and createdAt always win over the patch, and updatedAt moves forward even
// when the clock does not.
func (r *Repository) Update(ctx context.Context, name string, patch map[string]any) (core.Record, error) {
	if err := ValidateName(name); err != nil {
		return core.Record{}, err
	}
	id, _ := patch[core.FieldID].(string)
	if id == "" {
		return core.Record{}, core.Validation("record id is required")
	}
	fields, err := r.fields(name, patch)
	if err != nil {
		return core.Record{}, err
	}
	now := core.Timestamp(r.now())

	var merged core.Record
	err = r.mutate(ctx, name, func(records []core.Record) ([]core.Record, bool, error) {
		i := indexOf(records, id)
		if i < 0 {
			return nil, false, core.NotFound("record " + id)
		}
		merged = records[i].Clone()
		if merged.Fields == nil {
			merged.Fields = make(map[string]any, len(fields))
		}
		for k, v := range fields {
			merged.Fields[k] = v
		}
		merged.UpdatedAt = now
		if next := records[i].UpdatedAt.Add(time.Millisecond); !merged.UpdatedAt.After(records[i].UpdatedAt) {
			merged.UpdatedAt = next
		}
		records[i] = merged.Clone()
		return records, true, nil
	})
	if err != nil {
		return core.Record{}, err
	}
	r.notifier.Notify(Event{Collection: name, Type: EventUpdated, ID: id})
	return merged, nil
}

// Delete removes the record with the given id and reports whether it
// existed. Deleting an absent record writes nothing.
func (r *Repository) Delete(ctx context.Context, name, id string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	if id == "" {
		return false, core.Validation("record id is required")
	}

	var removed bool
	err := r.mutate(ctx, name, func(records []core.Record) ([]core.Record, bool, error) {
		i := indexOf(records, id)
		if i < 0 {
			// removed stays true when an earlier attempt landed
			return records, false, nil
		}
		removed = true
		return append(records[:i], records[i+1:]...), true, nil
	})
	if err != nil {
		return false, err
	}
	if removed {
		r.notifier.Notify(Event{Collection: name, Type: EventDeleted, ID: id})
	}
	return removed, nil
}

// mutate runs one read-modify-write cycle, restarting it from a fresh read
// on conflicts and transient failures. fn reports whether the document
// must be written.
func (r *Repository) mutate(ctx context.Context, name string, fn func([]core.Record) ([]core.Record, bool, error)) error {
	key := Key(name)
	log := logrus.WithFields(logrus.Fields{"collection": name, "key": key})

	attempt := func() error {
		records, version, err := r.load(ctx, name)
		if err != nil {
			return permanent(err)
		}
		next, changed, err := fn(records)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !changed {
			return nil
		}
		data, err := core.EncodeRecords(next)
		if err != nil {
			return backoff.Permanent(core.Internal("encoding collection "+name, err))
		}
		opts := core.PutOptions{IfMatch: version, IfNotExists: version == ""}
		_, err = r.store.Put(ctx, key, core.NewDocument(data, core.ContentTypeJSON), opts)
		return permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.MaxElapsedTime = r.maxElapsed
	b.Reset()

	err := backoff.RetryNotify(attempt, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		reason := strings.ToLower(string(core.CodeOf(err)))
		metrics.CollectionRetries.WithLabelValues(name, reason).Inc()
		log.WithFields(logrus.Fields{"error": err, "retry_in": next}).Warn("Collection write interrupted, retrying")
	})
	if cerr := ctx.Err(); cerr != nil && errors.Is(err, cerr) {
		return core.Transient("writing collection "+name, err)
	}
	return err
}

// load reads the collection document. The version is empty when the
// document does not exist yet.
func (r *Repository) load(ctx context.Context, name string) ([]core.Record, string, error) {
	doc, err := r.store.Get(ctx, Key(name))
	if core.IsCode(err, core.CodeNotFound) {
		return []core.Record{}, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	records, err := core.DecodeRecords(doc.Data.Bytes())
	if err != nil {
		return nil, "", fmt.Errorf("collection %s: %w", name, err)
	}
	return records, doc.Version, nil
}

// fields validates a caller payload against the collection schema and
// returns it without reserved keys, in its decoded JSON form.
func (r *Repository) fields(name string, payload map[string]any) (map[string]any, error) {
	allowed, restricted := r.schemas[name]
	fields := make(map[string]any, len(payload))
	for k, v := range payload {
		if core.IsReserved(k) {
			continue
		}
		if restricted {
			if _, ok := allowed[k]; !ok {
				return nil, core.Validation("field %q is not allowed in collection %s", k, name)
			}
		}
		fields[k] = v
	}
	return core.NormalizeFields(fields)
}

func (r *Repository) idGenerator(name string) core.IDGenerator {
	r.mu.Lock()
	defer r.mu.Unlock()

	gen, ok := r.ids[name]
	if !ok {
		gen = r.newIDs(name)
		r.ids[name] = gen
	}
	return gen
}

func permanent(err error) error {
	if err == nil || core.Retryable(err) {
		return err
	}
	return backoff.Permanent(err)
}

func indexOf(records []core.Record, id string) int {
	for i, rec := range records {
		if rec.ID == id {
			return i
		}
	}
	return -1
}

func matches(rec core.Record, filter map[string]string) bool {
	for k, want := range filter {
		var got string
		switch k {
		case core.FieldID:
			got = rec.ID
		case core.FieldCreatedAt:
			got = rec.CreatedAt.Format(core.TimeLayout)
		case core.FieldUpdatedAt:
			got = rec.UpdatedAt.Format(core.TimeLayout)
		default:
			v, ok := rec.Fields[k]
			if !ok {
				return false
			}
			got = fmt.Sprint(v)
		}
		if got != want {
			return false
		}
	}
	return true
}
