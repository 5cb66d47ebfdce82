package errors

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidationError(t *testing.T) {
	structural := NewConfigValidationError("missing column CSVImport")
	assert.Contains(t, structural.Error(), "missing column CSVImport")
	assert.True(t, IsConfigValidation(structural))
	assert.True(t, IsConfigValidation(fmt.Errorf("reload: %w", structural)))
	assert.False(t, IsConfigValidation(errors.New("plain")))

	row := NewRowValidationError(7, "OutlierMAD", "must be positive")
	assert.Contains(t, row.Error(), "row 7")
	assert.Contains(t, row.Error(), "OutlierMAD")
}

func TestSourceReadError_Unwrap(t *testing.T) {
	err := NewSourceReadError("/import/a.csv", "unreadable", io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "/import/a.csv")
}

func TestSliceProcessingError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := NewSliceProcessingError("12|PT01|2024-01-01T00:00:00Z", inner)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "PT01")
}

func TestCachePersistenceError_Unwrap(t *testing.T) {
	inner := errors.New("disk full")
	err := NewCachePersistenceError("/tmp/.amts_cache.json", inner)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), ".amts_cache.json")
}

func TestAPIError(t *testing.T) {
	e := NewAPIError(404, "NOT_FOUND", "no such point")
	assert.Equal(t, "no such point", e.Error())
	assert.Equal(t, 404, e.StatusCode)

	withDetails := InvalidRequestWithError(errors.New("bad json"))
	assert.Equal(t, "bad json", withDetails.Details)
}
