package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry_RetriesStaleState(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return fmt.Errorf("%w: version moved", ErrStaleState)
		}
		return nil
	}, service.RetryOptions{MaxAttempts: 5, InitialDelay: time.Millisecond})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetry_DoesNotRetryConflicts(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		return fmt.Errorf("%w: already matched", ErrConflict)
	}, service.RetryOptions{MaxAttempts: 5, InitialDelay: time.Millisecond})

	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, attempts)
}

func TestWithRetry_GivesUp(t *testing.T) {
	err := WithRetry(context.Background(), func() error {
		return ErrStaleState
	}, service.RetryOptions{MaxAttempts: 2, InitialDelay: time.Millisecond})

	require.ErrorIs(t, err, ErrMaxRetries)
	assert.ErrorIs(t, err, ErrStaleState)
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, func() error {
		return ErrStaleState
	}, service.RetryOptions{MaxAttempts: 3, InitialDelay: time.Second})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpaque(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SetupLoggerTo(&buf, slog.LevelInfo, "json"))

	domain := fmt.Errorf("%w: missing id", ErrValidation)
	assert.Same(t, domain, Opaque(domain, "confirm"))

	internal := errors.New("sqlite: disk I/O error")
	got := Opaque(internal, "confirm")
	require.ErrorIs(t, got, ErrInternal)
	assert.NotContains(t, got.Error(), "disk I/O")
	assert.Contains(t, buf.String(), "disk I/O")

	assert.NoError(t, Opaque(nil, "confirm"))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "info", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUserError(t *testing.T) {
	err := NewUserError("could not confirm match", ErrConflict)
	assert.Equal(t, "could not confirm match: conflicting match", err.Error())
	assert.ErrorIs(t, err, ErrConflict)
}
