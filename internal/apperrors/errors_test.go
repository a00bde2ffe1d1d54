package apperrors_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/SscSPs/mma_rates/internal/apperrors"
	"github.com/stretchr/testify/assert"
)

func TestAppError_UnwrapsToSentinels(t *testing.T) {
	notFound := apperrors.NewNotFoundError("exchange rate not found")
	assert.ErrorIs(t, notFound, apperrors.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, notFound.Code)

	validation := apperrors.NewValidationError("rate must be positive")
	assert.ErrorIs(t, validation, apperrors.ErrValidation)
	assert.Contains(t, validation.Error(), "rate must be positive")

	dup := apperrors.NewDuplicateError("rate exists")
	assert.ErrorIs(t, dup, apperrors.ErrDuplicate)
	assert.Equal(t, http.StatusConflict, dup.Code)
}

func TestAppError_WrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := apperrors.NewAppError(500, "failed to begin transaction", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to begin transaction: connection reset", err.Error())

	noCause := apperrors.NewAppError(500, "boom", nil)
	assert.Equal(t, "boom", noCause.Error())
}

func TestIdentityNotFound_IsNotFound(t *testing.T) {
	err := fmt.Errorf("%w: code 'XYZ'", apperrors.ErrIdentityNotFound)
	assert.ErrorIs(t, err, apperrors.ErrIdentityNotFound)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
