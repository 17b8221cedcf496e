package utils_test

import (
	"errors"
	"testing"
	"time"

	"shopflow-backend/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) utils.RetryConfig {
	return utils.RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: time.Microsecond,
		Multiplier:   2,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := utils.Retry(fastConfig(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	wantErr := errors.New("still broken")
	calls := 0
	err := utils.Retry(fastConfig(3), func() error {
		calls++
		return wantErr
	})

	require.ErrorIs(t, err, wantErr)
	assert.Equal(t, 3, calls)
}

func TestRetry_UnretryableFailsImmediately(t *testing.T) {
	sentinel := errors.New("not found")
	calls := 0
	err := utils.Retry(fastConfig(5), func() error {
		calls++
		return sentinel
	}, sentinel)

	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestRetry_WrappedUnretryable(t *testing.T) {
	sentinel := errors.New("not found")
	calls := 0
	err := utils.Retry(fastConfig(5), func() error {
		calls++
		return errors.Join(errors.New("lookup failed"), sentinel)
	}, sentinel)

	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}
