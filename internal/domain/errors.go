// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity or document does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates a request or entity failed domain validation.
var ErrValidation = errors.New("validation failed")
