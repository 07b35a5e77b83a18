package storage_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/OCAP2/sitac/internal/storage"
	"github.com/stretchr/testify/assert"
)

func TestSentinelsWrap(t *testing.T) {
	err := fmt.Errorf("loading %q: %w", "Op Alpha", storage.ErrNotFound)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	assert.False(t, errors.Is(err, storage.ErrUnsupported))
}
