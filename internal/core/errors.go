package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeBadRequest        = "bad_request"
	ErrCodeUnauthorized      = "unauthorized"
	ErrCodeValidationFailed  = "validation_failed"
	ErrCodePersistenceFailed = "persistence_failed"
	ErrCodeIdentityMismatch  = "identity_mismatch"
	ErrCodeRateLimited       = "rate_limited"
	ErrCodeNotMember         = "not_member"
)

var (
	// ErrValidation is returned when a message has neither text nor image.
	ErrValidation = errors.New("message requires text or image")
	// ErrPersistence is returned when the store rejected a write or update.
	ErrPersistence = errors.New("persistence failed")
	// ErrIdentityMismatch is returned when a session acts for an identity it is not registered as.
	ErrIdentityMismatch = errors.New("identity does not match registered session")
	// ErrNotMember is returned when the parties of a command are not the
	// members of the conversation it names, or the conversation does not exist.
	ErrNotMember = errors.New("not a member of the conversation")
	// ErrBadRequest is returned for commands missing required fields.
	ErrBadRequest = errors.New("bad request")
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

// ErrorCode maps core errors to protocol error codes.
func ErrorCode(err error) string {
	var ce *CoreError
	switch {
	case errors.As(err, &ce):
		return ce.Code
	case errors.Is(err, ErrValidation):
		return ErrCodeValidationFailed
	case errors.Is(err, ErrPersistence):
		return ErrCodePersistenceFailed
	case errors.Is(err, ErrIdentityMismatch):
		return ErrCodeIdentityMismatch
	case errors.Is(err, ErrNotMember):
		return ErrCodeNotMember
	default:
		return ErrCodeBadRequest
	}
}
