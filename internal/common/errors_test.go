package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStorageWrapsKindAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("append: %w", Storage("insert message", cause))

	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Nil(t, Storage("noop", nil))
}

func TestNewULID(t *testing.T) {
	a, err := NewULID()
	assert.NoError(t, err)
	b, err := NewULID()
	assert.NoError(t, err)

	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}
