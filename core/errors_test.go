package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors_Classification(t *testing.T) {
	wrapped := fmt.Errorf("creating record: %w", NotFound("record"))
	assert.True(t, IsCode(wrapped, CodeNotFound))
	assert.False(t, Retryable(wrapped))

	assert.True(t, Retryable(Conflict("vr-sessions.json", ErrVersionMismatch)))
	assert.True(t, Retryable(Transient("store timed out", errors.New("deadline"))))
	assert.False(t, Retryable(Permission("denied", nil)))

	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.False(t, IsCode(nil, CodeInternal))
}

func TestErrors_Sentinels(t *testing.T) {
	err := fmt.Errorf("upload: %w", ErrEmptyPayload)
	assert.ErrorIs(t, err, ErrEmptyPayload)
	assert.True(t, IsCode(err, CodeValidation))

	conflict := Conflict("k", ErrVersionMismatch)
	assert.ErrorIs(t, conflict, ErrVersionMismatch)
	assert.Equal(t, "conflicting write to k: document version mismatch", conflict.Error())
}

func TestValidateKey(t *testing.T) {
	for _, key := range []string{"vr-sessions.json", "assignments/1714557600000_notes_.txt"} {
		assert.NoError(t, ValidateKey(key), key)
	}
	for _, key := range []string{"", "/etc/passwd", "../x", "a//b", "a/./b", "a/", `a\b`} {
		assert.True(t, IsCode(ValidateKey(key), CodeValidation), key)
	}
}
