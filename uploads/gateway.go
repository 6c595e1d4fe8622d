// Package uploads stores submitted files and notes, each as its own
// object, and hands back the URL it can be fetched from.
package uploads

import (
	"context"
	"encoding/json"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"campus-store/core"
	"campus-store/metrics"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
)

type Kind string

const (
	KindText   Kind = "text"
	KindBinary Kind = "binary"
)

const (
	DefaultCategory  = "assignments"
	DefaultName      = "assignment"
	DefaultExtension = ".txt"
	DefaultMaxSize   = 10 << 20

	// MetadataOriginalName holds the escaped, unsanitized file name.
	MetadataOriginalName = "original-name"

	// keys are derived from the clock, so a colliding key is retried one
	// millisecond later
	maxKeyAttempts = 5
)

type Payload struct {
	Kind          Kind
	Content       []byte
	SuggestedName string
	Category      string
	// ContentType of a binary payload. Sniffed from the content when empty.
	ContentType string
	Metadata    map[string]string
}

type Receipt struct {
	URL          string
	Key          string
	OriginalName string
	ContentType  string
	Size         int64
}

type Options struct {
	MaxSize int64
	// PublicBaseURL is prepended to object keys to form their URL.
	PublicBaseURL string
	Clock         func() time.Time
}

type Gateway struct {
	store   core.DocumentStore
	maxSize int64
	baseURL string
	now     func() time.Time
}

func NewGateway(store core.DocumentStore, opts Options) *Gateway {
	g := &Gateway{
		store:   store,
		maxSize: opts.MaxSize,
		baseURL: strings.TrimSuffix(opts.PublicBaseURL, "/"),
		now:     opts.Clock,
	}
	if g.maxSize <= 0 {
		g.maxSize = DefaultMaxSize
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

// MaxSize is the largest payload Submit accepts, in bytes.
func (g *Gateway) MaxSize() int64 {
	return g.maxSize
}

// Submit stores p under <category>/<unix-ms>_<sanitized name>.
func (g *Gateway) Submit(ctx context.Context, p Payload) (Receipt, error) {
	if err := g.check(int64(len(p.Content))); err != nil {
		return Receipt{}, err
	}
	category, err := sanitizeCategory(p.Category)
	if err != nil {
		return Receipt{}, err
	}
	original := p.SuggestedName
	if original == "" {
		original = DefaultName
	}
	name := Sanitize(original)

	contentType := p.ContentType
	switch {
	case p.Kind == KindText:
		contentType = core.ContentTypeText
	case contentType == "":
		contentType = mimetype.Detect(p.Content).String()
	}

	metadata := make(map[string]string, len(p.Metadata)+1)
	for k, v := range p.Metadata {
		metadata[k] = v
	}
	metadata[MetadataOriginalName] = url.PathEscape(original)

	doc := core.NewDocument(p.Content, contentType)
	doc.Metadata = metadata
	key, err := g.put(ctx, doc, func(ms int64) string {
		return category + "/" + strconv.FormatInt(ms, 10) + "_" + name
	})
	if err != nil {
		return Receipt{}, err
	}
	metrics.UploadBytes.WithLabelValues(category).Add(float64(len(p.Content)))
	return Receipt{
		URL:          g.URL(key),
		Key:          key,
		OriginalName: original,
		ContentType:  contentType,
		Size:         int64(len(p.Content)),
	}, nil
}

// SubmitJSON stores v as a JSON object under
// <category>/<sanitized name>_<unix-ms>.json.
func (g *Gateway) SubmitJSON(ctx context.Context, category, name string, v any) (Receipt, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Receipt{}, core.Validation("value is not JSON encodable: %v", err)
	}
	if err := g.check(int64(len(data))); err != nil {
		return Receipt{}, err
	}
	category, err = sanitizeCategory(category)
	if err != nil {
		return Receipt{}, err
	}
	if name == "" {
		name = DefaultName
	}
	base := sanitizeSegment(name)

	key, err := g.put(ctx, core.NewDocument(data, core.ContentTypeJSON), func(ms int64) string {
		return category + "/" + base + "_" + strconv.FormatInt(ms, 10) + ".json"
	})
	if err != nil {
		return Receipt{}, err
	}
	metrics.UploadBytes.WithLabelValues(category).Add(float64(len(data)))
	return Receipt{
		URL:          g.URL(key),
		Key:          key,
		OriginalName: name,
		ContentType:  core.ContentTypeJSON,
		Size:         int64(len(data)),
	}, nil
}

// URL returns the public URL of an object key.
func (g *Gateway) URL(key string) string {
	return g.baseURL + "/" + key
}

func (g *Gateway) check(size int64) error {
	if size == 0 {
		return core.ErrEmptyPayload
	}
	if size > g.maxSize {
		return core.SizeLimit(size, g.maxSize)
	}
	return nil
}

func (g *Gateway) put(ctx context.Context, doc *core.Document, keyAt func(ms int64) string) (string, error) {
	ms := g.now().UnixMilli()
	for attempt := 1; ; attempt++ {
		key := keyAt(ms)
		_, err := g.store.Put(ctx, key, doc, core.PutOptions{IfNotExists: true})
		if err == nil {
			logrus.WithFields(logrus.Fields{
				"key":          key,
				"content_type": doc.ContentType,
				"data_length":  doc.Data.Len(),
			}).Info("Stored upload")
			return key, nil
		}
		if !core.IsCode(err, core.CodeConflict) || attempt == maxKeyAttempts {
			return "", err
		}
		ms++
	}
}

// Sanitize makes name safe for use in an object key. Every run of
// characters outside [A-Za-z0-9.-] becomes a single underscore, and names
// without an extension get DefaultExtension.
func Sanitize(name string) string {
	if name == "" {
		name = DefaultName
	}
	s := sanitizeSegment(name)
	if path.Ext(s) == "" {
		s += DefaultExtension
	}
	return s
}

func sanitizeSegment(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	replaced := false
	for _, c := range s {
		if allowed(c) {
			b.WriteRune(c)
			replaced = false
			continue
		}
		if !replaced {
			b.WriteByte('_')
			replaced = true
		}
	}
	return b.String()
}

func allowed(c rune) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '.' || c == '-'
}

// sanitizeCategory sanitizes every segment of a slash separated category.
func sanitizeCategory(category string) (string, error) {
	category = strings.Trim(category, "/")
	if category == "" {
		return DefaultCategory, nil
	}
	segments := strings.Split(category, "/")
	for i, seg := range segments {
		seg = sanitizeSegment(seg)
		if seg == "" || strings.Trim(seg, ".") == "" {
			return "", core.Validation("invalid category %q", category)
		}
		segments[i] = seg
	}
	return strings.Join(segments, "/"), nil
}
