package errors

import (
	"context"
	"errors"
	"strings"
)

// WrapSyncError wraps an error as a SyncError if it isn't already one.
// Deadline errors are always classified as timeouts.
func WrapSyncError(err error, code ErrorCode, source, message string) *SyncError {
	if err == nil {
		return nil
	}

	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		syncErr.WithContext("wrapped_message", message)
		if source != "" && syncErr.Source == "" {
			syncErr.Source = source
		}
		return syncErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		code = ErrCodeTimeout
	}
	return NewSyncError(code, source, message, err)
}

// Is checks if an error is of a specific type
func Is(err error, target error) bool {
	return errors.Is(err, target)
}

// As checks if an error can be assigned to a target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// IsCode checks if an error is a SyncError with specific code
func IsCode(err error, code ErrorCode) bool {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Code == code
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.IsRetryable()
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"too many requests",
		"rate limit",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
