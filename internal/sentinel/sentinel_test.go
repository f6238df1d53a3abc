package sentinel_test

import (
	"errors"
	"fmt"
	"testing"

	"denuncia/backend/internal/sentinel"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("create: %w", sentinel.Invalid("status", "unknown value"))

	assert.ErrorIs(t, err, sentinel.ErrValidation)
	assert.NotErrorIs(t, err, sentinel.ErrStorage)

	var ve *sentinel.ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "status", ve.Field)
	assert.Equal(t, "create: status: unknown value", err.Error())
}

func TestStorageHidesCause(t *testing.T) {
	err := sentinel.Storage("apply transition")

	assert.ErrorIs(t, err, sentinel.ErrStorage)
	assert.Equal(t, "apply transition: storage failure", err.Error())
}
