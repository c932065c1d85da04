package services

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks against the typed errors below.
var (
	ErrValidation      = errors.New("validation failed")
	ErrMediaUpload     = errors.New("media upload failed")
	ErrStorage         = errors.New("storage failure")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("already exists")
)

// ValidationError reports missing or malformed input. It is never persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// MediaUploadError aborts a send before anything is persisted.
type MediaUploadError struct {
	Err error
}

func (e *MediaUploadError) Error() string { return "media upload failed: " + e.Err.Error() }
func (e *MediaUploadError) Unwrap() error { return e.Err }
func (e *MediaUploadError) Is(target error) bool {
	return target == ErrMediaUpload
}

// StorageError wraps a persistence fault. It is surfaced, not retried.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// UnauthenticatedError is returned when no caller identity is present.
type UnauthenticatedError struct {
	Reason string
}

func (e *UnauthenticatedError) Error() string {
	if e.Reason == "" {
		return "unauthenticated"
	}
	return "unauthenticated: " + e.Reason
}

func (e *UnauthenticatedError) Is(target error) bool { return target == ErrUnauthenticated }
