package services

import (
	"errors"
	"fmt"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("not found")
	ErrUnauthorized         = errors.New("not authorized")
	ErrForbidden            = errors.New("not authorized as an admin")
	ErrConflict             = errors.New("conflict")
	ErrNotPremium           = errors.New("this image is free, no payment required")
	ErrAlreadyPurchased     = errors.New("you have already purchased this image")
	ErrUnsupportedMediaType = errors.New("only images are allowed")
	ErrPaymentProvider      = errors.New("payment provider failure")
	ErrInvalidSignature     = errors.New("webhook signature verification failed")
	ErrStoreUnavailable     = errors.New("store unavailable")
)

// ValidationError carries field-level messages alongside ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", ErrValidation, e.Fields)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}
