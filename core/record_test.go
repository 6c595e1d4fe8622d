package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_JSON(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rec := Record{
		ID:        "vr_session_01",
		CreatedAt: created,
		UpdatedAt: created.Add(time.Second),
		Fields:    map[string]any{"title": "Studio Critique", "date": "2024-05-01"},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, "vr_session_01", flat["id"])
	assert.Equal(t, "2024-05-01T10:00:00.000Z", flat["createdAt"])
	assert.Equal(t, "2024-05-01T10:00:01.000Z", flat["updatedAt"])
	assert.Equal(t, "Studio Critique", flat["title"])

	var got Record
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, rec, got)
}

func TestRecord_ReservedFieldsNeverLeak(t *testing.T) {
	rec := Record{ID: "a", Fields: map[string]any{"id": "b", "createdAt": "nope"}}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, "a", flat["id"])
	assert.Equal(t, "0001-01-01T00:00:00.000Z", flat["createdAt"])
}

func TestRecord_UnmarshalRejectsNonStringID(t *testing.T) {
	var rec Record
	err := json.Unmarshal([]byte(`{"id": 7}`), &rec)
	assert.Error(t, err)
}

func TestRecord_Clone(t *testing.T) {
	rec := Record{ID: "a", Fields: map[string]any{
		"tags":  []any{"x"},
		"owner": map[string]any{"name": "ana"},
	}}
	c := rec.Clone()
	c.Fields["tags"].([]any)[0] = "y"
	c.Fields["owner"].(map[string]any)["name"] = "bo"

	assert.Equal(t, "x", rec.Fields["tags"].([]any)[0])
	assert.Equal(t, "ana", rec.Fields["owner"].(map[string]any)["name"])
}

func TestDecodeRecords(t *testing.T) {
	t.Run("empty content", func(t *testing.T) {
		got, err := DecodeRecords(nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("null", func(t *testing.T) {
		got, err := DecodeRecords([]byte("null"))
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("object is corrupt", func(t *testing.T) {
		_, err := DecodeRecords([]byte(`{"id":"a"}`))
		assert.True(t, IsCode(err, CodeInternal))
	})

	t.Run("numbers survive round trip", func(t *testing.T) {
		in := []byte(`[{"id":"a","createdAt":"2024-05-01T10:00:00.000Z","updatedAt":"2024-05-01T10:00:00.000Z","capacity":12345678901234567890}]`)
		records, err := DecodeRecords(in)
		require.NoError(t, err)
		out, err := EncodeRecords(records)
		require.NoError(t, err)
		again, err := DecodeRecords(out)
		require.NoError(t, err)
		assert.Equal(t, json.Number("12345678901234567890"), again[0].Fields["capacity"])
	})
}

func TestNormalizeFields(t *testing.T) {
	got, err := NormalizeFields(map[string]any{"n": 3, "nested": map[string]string{"a": "b"}})
	require.NoError(t, err)
	assert.Equal(t, json.Number("3"), got["n"])
	assert.Equal(t, map[string]any{"a": "b"}, got["nested"])

	_, err = NormalizeFields(map[string]any{"ch": make(chan int)})
	assert.True(t, IsCode(err, CodeValidation))
}
