package uploads

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"campus-store/core"
	"campus-store/stores/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.UnixMilli(1714557600000)

func newGateway(t *testing.T, store core.DocumentStore, opts Options) *Gateway {
	t.Helper()
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return epoch }
	}
	if opts.PublicBaseURL == "" {
		opts.PublicBaseURL = "https://cdn.example.com/"
	}
	return NewGateway(store, opts)
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"notes!!.txt", "notes_.txt"},
		{"report.pdf", "report.pdf"},
		{"my essay final", "my_essay_final.txt"},
		{"ünïcode.md", "_n_code.md"},
		{"", "assignment.txt"},
		{"a/../b.png", "a_.._b.png"},
		{"model-v2.3.obj", "model-v2.3.obj"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.name))
		})
	}
}

func TestGateway_SubmitText(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	gw := newGateway(t, store, Options{})

	receipt, err := gw.Submit(ctx, Payload{Kind: KindText, Content: []byte("hello"), SuggestedName: "notes!!.txt"})
	require.NoError(t, err)
	assert.Equal(t, "assignments/1714557600000_notes_.txt", receipt.Key)
	assert.True(t, strings.HasSuffix(receipt.Key, "notes_.txt"))
	assert.Equal(t, "https://cdn.example.com/assignments/1714557600000_notes_.txt", receipt.URL)
	assert.Equal(t, "notes!!.txt", receipt.OriginalName)
	assert.Equal(t, core.ContentTypeText, receipt.ContentType)
	assert.Equal(t, int64(5), receipt.Size)

	doc, err := store.Get(ctx, receipt.Key)
	require.NoError(t, err)
	assert.Equal(t, "hello", doc.Data.String())
	assert.Equal(t, core.ContentTypeText, doc.ContentType)
	assert.Equal(t, "notes%21%21.txt", doc.Metadata[MetadataOriginalName])
}

func TestGateway_SubmitBinary(t *testing.T) {
	ctx := context.Background()
	gw := newGateway(t, memory.NewDocumentStore(), Options{})
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	receipt, err := gw.Submit(ctx, Payload{Kind: KindBinary, Content: png, SuggestedName: "sketch.png", Category: "portfolio"})
	require.NoError(t, err)
	assert.Equal(t, "portfolio/1714557600000_sketch.png", receipt.Key)
	assert.Equal(t, "image/png", receipt.ContentType)

	receipt, err = gw.Submit(ctx, Payload{Kind: KindBinary, Content: png, SuggestedName: "sketch.png", ContentType: "application/x-custom"})
	require.NoError(t, err)
	assert.Equal(t, "application/x-custom", receipt.ContentType)
}

func TestGateway_Defaults(t *testing.T) {
	gw := newGateway(t, memory.NewDocumentStore(), Options{})

	receipt, err := gw.Submit(context.Background(), Payload{Kind: KindText, Content: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, "assignments/1714557600000_assignment.txt", receipt.Key)
	assert.Equal(t, "assignment", receipt.OriginalName)
	assert.Equal(t, int64(DefaultMaxSize), gw.MaxSize())
}

func TestGateway_Rejections(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{DocumentStore: memory.NewDocumentStore()}
	gw := newGateway(t, store, Options{MaxSize: 4})

	_, err := gw.Submit(ctx, Payload{Kind: KindText})
	assert.ErrorIs(t, err, core.ErrEmptyPayload)
	assert.True(t, core.IsCode(err, core.CodeValidation))

	_, err = gw.Submit(ctx, Payload{Kind: KindText, Content: []byte("hello")})
	assert.True(t, core.IsCode(err, core.CodeSizeLimit), err)

	_, err = gw.Submit(ctx, Payload{Kind: KindText, Content: []byte("ok"), Category: "../.."})
	assert.True(t, core.IsCode(err, core.CodeValidation), err)

	assert.Zero(t, store.puts)
}

func TestGateway_SameMillisecond(t *testing.T) {
	ctx := context.Background()
	gw := newGateway(t, memory.NewDocumentStore(), Options{})

	first, err := gw.Submit(ctx, Payload{Kind: KindText, Content: []byte("one"), SuggestedName: "a.txt"})
	require.NoError(t, err)
	second, err := gw.Submit(ctx, Payload{Kind: KindText, Content: []byte("two"), SuggestedName: "a.txt"})
	require.NoError(t, err)

	assert.Equal(t, "assignments/1714557600000_a.txt", first.Key)
	assert.Equal(t, "assignments/1714557600001_a.txt", second.Key)
}

func TestGateway_SubmitJSON(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	gw := newGateway(t, store, Options{})

	note := map[string]string{"courseTitle": "Design 101", "documentTitle": "Week 1"}
	receipt, err := gw.SubmitJSON(ctx, "course-notes/Design 101", "week1.md", note)
	require.NoError(t, err)
	assert.Equal(t, "course-notes/Design_101/week1.md_1714557600000.json", receipt.Key)
	assert.Equal(t, core.ContentTypeJSON, receipt.ContentType)

	doc, err := store.Get(ctx, receipt.Key)
	require.NoError(t, err)
	var got map[string]string
	require.NoError(t, json.Unmarshal(doc.Data.Bytes(), &got))
	assert.Equal(t, note, got)
}

type countingStore struct {
	core.DocumentStore
	puts int
}

func (s *countingStore) Put(ctx context.Context, key string, doc *core.Document, opts core.PutOptions) (string, error) {
	s.puts++
	return s.DocumentStore.Put(ctx, key, doc, opts)
}
