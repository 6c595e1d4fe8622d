package assignments

import (
	"context"
	"testing"

	"campus-store/collections"
	"campus-store/core"
	"campus-store/stores/memory"
	"campus-store/stores/mirror"
	"campus-store/uploads"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*Service, core.DocumentStore) {
	t.Helper()
	store := memory.NewDocumentStore()
	cache, err := mirror.NewCache(mirror.CacheConfig{Size: 8})
	require.NoError(t, err)
	repo := collections.NewRepository(store, collections.Options{})
	gateway := uploads.NewGateway(store, uploads.Options{PublicBaseURL: "/objects"})
	return NewService(repo, gateway, cache), store
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	assert.False(t, svc.Submitted("Design 101"))

	rec, err := svc.Submit(ctx, Submission{
		CourseTitle: "Design 101",
		Kind:        uploads.KindText,
		Content:     []byte("my reflection"),
		FileName:    "reflection.txt",
	})
	require.NoError(t, err)
	assert.Equal(t, "Design 101", rec.Fields["courseTitle"])
	assert.Equal(t, "text", rec.Fields["uploadType"])
	assert.Equal(t, "reflection.txt", rec.Fields["fileName"])
	assert.Equal(t, StatusSubmitted, rec.Fields["status"])

	blobName, _ := rec.Fields["blobName"].(string)
	assert.Regexp(t, `^assignments/\d+_reflection\.txt$`, blobName)
	assert.Equal(t, "/objects/"+blobName, rec.Fields["fileUrl"])

	doc, err := store.Get(ctx, blobName)
	require.NoError(t, err)
	assert.Equal(t, "my reflection", doc.Data.String())

	assert.True(t, svc.Submitted("Design 101"))
	assert.False(t, svc.Submitted("Sculpture"))
}

func TestService_ForCourse(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	for _, course := range []string{"Design 101", "Sculpture", "Design 101"} {
		_, err := svc.Submit(ctx, Submission{CourseTitle: course, Kind: uploads.KindText, Content: []byte("x")})
		require.NoError(t, err)
	}

	got, err := svc.ForCourse(ctx, "Design 101")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = svc.ForCourse(ctx, "Painting")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = svc.ForCourse(ctx, "")
	assert.True(t, core.IsCode(err, core.CodeValidation))
}

func TestService_SubmitValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.Submit(ctx, Submission{Kind: uploads.KindText, Content: []byte("x")})
	assert.True(t, core.IsCode(err, core.CodeValidation))

	_, err = svc.Submit(ctx, Submission{CourseTitle: "Design 101", Kind: "video", Content: []byte("x")})
	assert.True(t, core.IsCode(err, core.CodeValidation))

	_, err = svc.Submit(ctx, Submission{CourseTitle: "Design 101", Kind: uploads.KindText})
	assert.ErrorIs(t, err, core.ErrEmptyPayload)

	assert.False(t, svc.Submitted("Design 101"))
}
