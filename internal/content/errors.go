package content

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrPersistence = errors.New("persistence failure")
	ErrMoved       = errors.New("moved permanently")
	// markdown
	ErrMDConversion = errors.New("could not convert MD to HTML")
	// media
	ErrUploadType = errors.New("only JPEG, PNG and WEBP images are allowed")
	// importer
	ErrReadingFile  = errors.New("could not open file")
	ErrFileTooLarge = errors.New("file too large")
)

// ValidationError rejects a write before anything is mutated.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// PersistenceError wraps a storage failure. Its message is never shown to
// API callers.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// MovedError is returned when a post is requested by a slug it used to
// have. Slug holds the current one.
type MovedError struct {
	Slug string
}

func (e *MovedError) Error() string {
	return "post moved to " + e.Slug
}

func (e *MovedError) Is(target error) bool { return target == ErrMoved }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

func persistence(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
