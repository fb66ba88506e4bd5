package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/spice-inbox/internal/service"
)

var fastRetry = service.RetryOptions{
	MaxAttempts:  3,
	InitialDelay: time.Millisecond,
	MaxDelay:     5 * time.Millisecond,
}

func TestWithRetry(t *testing.T) {
	transient := errors.New("503")

	tests := []struct {
		failures  []error
		wantErr   error
		name      string
		wantCalls int
	}{
		{name: "first try", wantCalls: 1},
		{name: "recovers", failures: []error{transient, transient}, wantCalls: 3},
		{name: "gives up", failures: []error{transient, transient, transient}, wantCalls: 3, wantErr: ErrMaxRetries},
		{
			name:      "non retryable stops",
			failures:  []error{&RetryableError{Err: transient, Retryable: false}},
			wantCalls: 1,
			wantErr:   transient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := WithRetry(context.Background(), func() error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			}, fastRetry)

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestWithRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, func() error { return errors.New("down") }, service.RetryOptions{
		MaxAttempts:  3,
		InitialDelay: time.Hour,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrRateLimit))
	assert.True(t, IsRetryable(ErrLedgerUnavailable))
	assert.True(t, IsRetryable(&RetryableError{Err: errors.New("x"), Retryable: true}))
	assert.False(t, IsRetryable(&RetryableError{Err: errors.New("x")}))
	assert.False(t, IsRetryable(ErrInvalidConfig))
}

func TestUserError(t *testing.T) {
	cause := errors.New("no such file")
	err := NewUserError("Could not read messages", cause)

	assert.Equal(t, "Could not read messages: no such file", err.Error())
	assert.ErrorIs(t, err, cause)

	var userErr *UserError
	assert.True(t, errors.As(err, &userErr))
	assert.Equal(t, "Could not read messages", NewUserError("Could not read messages", nil).Error())
}
