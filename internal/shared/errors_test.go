package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFound(t *testing.T) {
	err := NotFound("Project not found")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Project not found", err.Error())
	assert.True(t, errors.Is(fmt.Errorf("load: %w", err), ErrNotFound))
}
