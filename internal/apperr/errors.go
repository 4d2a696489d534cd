// Package apperr holds the sentinel errors shared by the service and its front ends.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidPath   = errors.New("invalid document path")
	ErrInvalidInput  = errors.New("invalid input")
)
