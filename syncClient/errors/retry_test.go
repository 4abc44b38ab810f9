package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:     attempts,
		InitialDelay:    1 * time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		Multiplier:      2.0,
		RetryableErrors: []ErrorCode{ErrCodeTransport, ErrCodeTimeout},
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	assert.Equal(t, 2, config.MaxAttempts)
	assert.Contains(t, config.RetryableErrors, ErrCodeTransport)
	assert.Contains(t, config.RetryableErrors, ErrCodeTimeout)
	assert.NotContains(t, config.RetryableErrors, ErrCodeDecode)
}

func TestRetryWithConfig(t *testing.T) {
	t.Run("succeeds on first attempt", func(t *testing.T) {
		attempts := 0
		err := RetryWithConfig(context.Background(), func() error {
			attempts++
			return nil
		}, fastRetryConfig(2))
		require.NoError(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("single retry on transport error", func(t *testing.T) {
		attempts := 0
		err := RetryWithConfig(context.Background(), func() error {
			attempts++
			if attempts == 1 {
				return NewTransportError("ledger", "rpc unavailable", nil)
			}
			return nil
		}, fastRetryConfig(2))
		require.NoError(t, err)
		assert.Equal(t, 2, attempts)
	})

	t.Run("gives up after max attempts and keeps classification", func(t *testing.T) {
		attempts := 0
		err := RetryWithConfig(context.Background(), func() error {
			attempts++
			return NewTransportError("catalog", "connection refused", nil)
		}, fastRetryConfig(2))
		require.Error(t, err)
		assert.Equal(t, 2, attempts)
		assert.True(t, IsCode(err, ErrCodeTransport))
	})

	t.Run("non-retryable error returns immediately", func(t *testing.T) {
		attempts := 0
		err := RetryWithConfig(context.Background(), func() error {
			attempts++
			return NewDecodeError("ledger", "short buffer", nil)
		}, fastRetryConfig(3))
		require.Error(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("non-positive attempts runs once and leaves the config untouched", func(t *testing.T) {
		config := fastRetryConfig(0)
		attempts := 0
		err := RetryWithConfig(context.Background(), func() error {
			attempts++
			return NewTransportError("ledger", "rpc unavailable", nil)
		}, config)
		require.Error(t, err)
		assert.Equal(t, 1, attempts)
		assert.Zero(t, config.MaxAttempts)
	})

	t.Run("canceled context stops retrying", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := RetryWithConfig(ctx, func() error { return nil }, fastRetryConfig(2))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestWrapSyncError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, WrapSyncError(nil, ErrCodeTransport, "catalog", "x"))
	})

	t.Run("deadline becomes timeout", func(t *testing.T) {
		err := WrapSyncError(fmt.Errorf("query: %w", context.DeadlineExceeded), ErrCodeTransport, "catalog", "fetch battles")
		assert.Equal(t, ErrCodeTimeout, err.Code)
		assert.True(t, err.IsRetryable())
	})

	t.Run("existing sync error keeps its code", func(t *testing.T) {
		inner := NewDecodeError("ledger", "bad bytes", nil)
		err := WrapSyncError(inner, ErrCodeTransport, "syncer", "enrich")
		assert.Equal(t, ErrCodeDecode, err.Code)
		assert.Equal(t, "enrich", err.Context["wrapped_message"])
	})

	t.Run("not found carries no cause", func(t *testing.T) {
		err := NewNotFoundError("ledger", "battle 9 account does not exist")
		assert.Equal(t, "[ledger:NOT_FOUND] battle 9 account does not exist", err.Error())
		assert.False(t, err.IsRetryable())
	})

	t.Run("database errors are retryable", func(t *testing.T) {
		err := NewDatabaseError("cache", "failed to upsert 3 battles", errors.New("database is locked"))
		assert.Equal(t, SeverityHigh, err.Severity)
		assert.True(t, err.IsRetryable())
	})

	t.Run("error message includes cause", func(t *testing.T) {
		err := NewTransportError("ledger", "batch read failed", errors.New("503 Service Unavailable"))
		assert.Equal(t, "[ledger:TRANSPORT] batch read failed: 503 Service Unavailable", err.Error())
	})
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(errors.New("dial tcp: connection refused")))
	assert.True(t, IsRetryable(errors.New("429 Too Many Requests")))
	assert.False(t, IsRetryable(errors.New("syntax error at or near")))
	assert.False(t, IsRetryable(NewConfigError("missing rpc url")))
}
