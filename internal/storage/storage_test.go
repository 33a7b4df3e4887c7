package storage_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/OCAP2/helmsync/internal/storage"
	"github.com/stretchr/testify/assert"
)

func TestSentinelErrorsWrap(t *testing.T) {
	err := fmt.Errorf("load vessel v-1: %w", storage.ErrNotFound)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	assert.False(t, errors.Is(err, storage.ErrConflict))
}
