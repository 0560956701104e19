package util

import "errors"

var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotFound           = errors.New("not found")
	ErrNoExtractableText  = errors.New("no extractable text found in document")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
	ErrUnsupportedBackend = errors.New("unsupported backend")
)
