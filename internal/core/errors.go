package core

import (
	"errors"

	"github.com/vovakirdan/wirechat-dm/internal/service/messages"
	"github.com/vovakirdan/wirechat-dm/internal/store"
)

// Error codes for domain errors.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeValidation       = "validation_error"
	ErrCodeStoreUnavailable = "store_unavailable"
	ErrCodeNotJoined        = "not_joined"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInvalidMessage   = "invalid_message"
	ErrCodeInternal         = "internal_error"
)

var (
	ErrNotJoined      = errors.New("join before sending")
	ErrSenderMismatch = errors.New("senderId does not match joined user")
	ErrHubStopped     = errors.New("presence hub stopped")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// ErrorFor classifies err into a client-facing CoreError.
func ErrorFor(err error) *CoreError {
	var ce *CoreError
	switch {
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, messages.ErrValidation):
		return coreError(ErrCodeValidation, err.Error())
	case errors.Is(err, store.ErrUnavailable):
		return coreError(ErrCodeStoreUnavailable, "message store unavailable, retry later")
	case errors.Is(err, ErrNotJoined):
		return coreError(ErrCodeNotJoined, err.Error())
	case errors.Is(err, ErrSenderMismatch):
		return coreError(ErrCodeBadRequest, err.Error())
	default:
		return coreError(ErrCodeInternal, "internal error")
	}
}

// NewError builds a CoreError with the given code.
func NewError(code, msg string) *CoreError {
	return coreError(code, msg)
}
