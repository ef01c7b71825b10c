package models

import (
	"errors"
	"fmt"
)

// Error codes used in audit results and internal error handling. The
// classification drives user-facing remediation text, so codes are part of
// the contract.
const (
	ErrCodeNotConfigured     = "NOT_CONFIGURED"
	ErrCodeInvalidCredential = "INVALID_CREDENTIAL"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeServerError       = "PROVIDER_SERVER_ERROR"
	ErrCodeTokenLimit        = "TOKEN_LIMIT_EXCEEDED"
	ErrCodeBadResponse       = "UNEXPECTED_RESPONSE"
	ErrCodeProviderFailure   = "PROVIDER_FAILURE"
	ErrCodePageInaccessible  = "PAGE_INACCESSIBLE"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// AuditError is the internal error type carrying an error code.
// It implements the error interface and supports wrapping via Unwrap.
type AuditError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *AuditError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AuditError) Unwrap() error {
	return e.Err
}

// NewAuditError creates a new AuditError.
func NewAuditError(code, message string, err error) *AuditError {
	return &AuditError{Code: code, Message: message, Err: err}
}

// ErrorCode extracts the audit error code from err, or ErrCodeInternal if
// err carries none.
func ErrorCode(err error) string {
	var ae *AuditError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ErrCodeInternal
}

// ErrorMessage extracts the user-facing message from err without the code
// prefix, falling back to err.Error().
func ErrorMessage(err error) string {
	var ae *AuditError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}
