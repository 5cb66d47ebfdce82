// Package errors defines the pipeline error taxonomy and the structured
// API error responses used by the HTTP layer.
package errors

import (
	"errors"
	"fmt"
)

// ConfigValidationError reports a malformed or logically inconsistent
// settings row or workbook. It is fatal for the reload cycle that hit it.
type ConfigValidationError struct {
	Row    int    // 1-based workbook row, 0 if structural
	Field  string // offending column, empty if structural
	Reason string
}

func (e *ConfigValidationError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("settings row %d: %s: %s", e.Row, e.Field, e.Reason)
	}
	return fmt.Sprintf("settings: %s", e.Reason)
}

// NewConfigValidationError builds a structural (workbook-level) validation error
func NewConfigValidationError(reason string) *ConfigValidationError {
	return &ConfigValidationError{Reason: reason}
}

// NewRowValidationError builds a row-level validation error
func NewRowValidationError(row int, field, reason string) *ConfigValidationError {
	return &ConfigValidationError{Row: row, Field: field, Reason: reason}
}

// IsConfigValidation reports whether err is (or wraps) a ConfigValidationError
func IsConfigValidation(err error) bool {
	var cve *ConfigValidationError
	return errors.As(err, &cve)
}

// SourceReadError reports a single raw file that could not be read or
// parsed. The file is skipped; the slice continues with remaining files.
type SourceReadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("raw source %s: %s", e.Path, e.Reason)
}

func (e *SourceReadError) Unwrap() error { return e.Err }

// NewSourceReadError wraps a per-file read failure
func NewSourceReadError(path, reason string, err error) *SourceReadError {
	return &SourceReadError{Path: path, Reason: reason, Err: err}
}

// SliceProcessingError reports an unexpected failure inside one slice's
// pipeline. It carries the slice identity so the batch loop can log it
// and move on without touching the watermark.
type SliceProcessingError struct {
	Key string
	Err error
}

func (e *SliceProcessingError) Error() string {
	return fmt.Sprintf("slice %s: %v", e.Key, e.Err)
}

func (e *SliceProcessingError) Unwrap() error { return e.Err }

// NewSliceProcessingError wraps err with the slice identity
func NewSliceProcessingError(key string, err error) *SliceProcessingError {
	return &SliceProcessingError{Key: key, Err: err}
}

// CachePersistenceError reports a failed cache save. In-memory state stays
// authoritative; the next successful save catches up.
type CachePersistenceError struct {
	Path string
	Err  error
}

func (e *CachePersistenceError) Error() string {
	return fmt.Sprintf("cache %s: %v", e.Path, e.Err)
}

func (e *CachePersistenceError) Unwrap() error { return e.Err }

// NewCachePersistenceError wraps a cache write failure
func NewCachePersistenceError(path string, err error) *CachePersistenceError {
	return &CachePersistenceError{Path: path, Err: err}
}
