package errors

import (
	"fmt"
)

// ErrorCode represents different categories of errors
type ErrorCode string

const (
	// ErrCodeNotFound indicates a ledger account that does not exist (yet).
	// It is an expected state, not a failure.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeDecode indicates malformed or truncated ledger account bytes
	ErrCodeDecode ErrorCode = "DECODE"

	// ErrCodeTransport indicates catalog, ledger RPC or network failures
	ErrCodeTransport ErrorCode = "TRANSPORT"

	// ErrCodeDatabase indicates cache store or run log failures
	ErrCodeDatabase ErrorCode = "DATABASE"

	// ErrCodeConfig indicates missing credentials or endpoints
	ErrCodeConfig ErrorCode = "CONFIG"

	// ErrCodeTimeout indicates a bounded step ran out of time
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeInternal indicates internal system errors
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Severity represents the severity level of an error
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// SyncError is a classified error raised by the sync pipeline.
type SyncError struct {
	Code     ErrorCode              `json:"code"`
	Message  string                 `json:"message"`
	Source   string                 `json:"source,omitempty"`
	Severity Severity               `json:"severity"`
	Cause    error                  `json:"-"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

// NewSyncError creates a new SyncError. source names the collaborator that failed
// (catalog, ledger, cache, run_log, config).
func NewSyncError(code ErrorCode, source, message string, cause error) *SyncError {
	return &SyncError{
		Code:     code,
		Message:  message,
		Source:   source,
		Severity: determineSeverity(code),
		Cause:    cause,
		Context:  make(map[string]interface{}),
	}
}

// Error implements the error interface
func (e *SyncError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.Source != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Source, e.Code, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying cause
func (e *SyncError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *SyncError) WithContext(key string, value interface{}) *SyncError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsRetryable returns true if the error is retryable
func (e *SyncError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeTransport, ErrCodeTimeout:
		return true
	case ErrCodeDatabase:
		return e.Severity != SeverityCritical
	default:
		return false
	}
}

func determineSeverity(code ErrorCode) Severity {
	switch code {
	case ErrCodeInternal:
		return SeverityCritical
	case ErrCodeDatabase, ErrCodeConfig:
		return SeverityHigh
	case ErrCodeTransport, ErrCodeTimeout:
		return SeverityMedium
	case ErrCodeDecode:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// NewNotFoundError creates a not-found error
func NewNotFoundError(source, message string) *SyncError {
	return NewSyncError(ErrCodeNotFound, source, message, nil)
}

// NewDecodeError creates a decode error
func NewDecodeError(source, message string, cause error) *SyncError {
	return NewSyncError(ErrCodeDecode, source, message, cause)
}

// NewTransportError creates a transport error
func NewTransportError(source, message string, cause error) *SyncError {
	return NewSyncError(ErrCodeTransport, source, message, cause)
}

// NewDatabaseError creates a database error
func NewDatabaseError(source, message string, cause error) *SyncError {
	return NewSyncError(ErrCodeDatabase, source, message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(message string) *SyncError {
	return NewSyncError(ErrCodeConfig, "config", message, nil)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(source, message string, cause error) *SyncError {
	return NewSyncError(ErrCodeTimeout, source, message, cause)
}

// NewInternalError creates an internal error
func NewInternalError(source, message string, cause error) *SyncError {
	return NewSyncError(ErrCodeInternal, source, message, cause)
}
