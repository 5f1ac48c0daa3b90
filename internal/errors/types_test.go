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

func TestClassifyWrappedErrors(t *testing.T) {
	base := errors.New("boom")

	input := fmt.Errorf("build: %w", NewInputError("slides", base))
	slide := fmt.Errorf("loop: %w", NewSlideError(2, "02_intro", StageRaster, base))
	packaging := fmt.Errorf("repack: %w", NewPackagingError("write archive", base))

	assert.Equal(t, ErrorTypeInput, Classify(input))
	assert.Equal(t, ErrorTypeSlide, Classify(slide))
	assert.Equal(t, ErrorTypePackaging, Classify(packaging))
	assert.Equal(t, ErrorTypeUnknown, Classify(base))
	assert.Equal(t, ErrorTypeUnknown, Classify(nil))

	assert.True(t, IsRecoverable(slide))
	assert.False(t, IsRecoverable(packaging))
	assert.ErrorIs(t, slide, base)
}

func TestSlideErrorMessage(t *testing.T) {
	err := NewSlideError(3, "", StageSource, errors.New("missing"))
	require.Equal(t, "slide 3 (#3) source: missing", err.Error())
}

func TestFormatForUser(t *testing.T) {
	err := NewInputError("slides", errors.New("no slide sources supplied"))
	assert.Equal(t, "Input error: invalid slides: no slide sources supplied", FormatForUser(err))
	assert.Empty(t, FormatForUser(nil))
}

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker("raster", CircuitBreakerConfig{FailureThreshold: 2, Timeout: time.Minute})
	now := time.Unix(0, 0)
	cb.now = func() time.Time { return now }

	cb.Mark(errors.New("fail"))
	require.Equal(t, StateClosed, cb.State())
	cb.Mark(errors.New("fail"))
	require.Equal(t, StateOpen, cb.State())

	err := cb.Allow()
	require.ErrorIs(t, err, ErrCircuitOpen)

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Allow())
	require.Equal(t, StateHalfOpen, cb.State())

	cb.Mark(nil)
	require.Equal(t, StateClosed, cb.State())
}

func TestExecuteFuncSkipsWhenOpen(t *testing.T) {
	cb := NewCircuitBreaker("raster", CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Hour})
	_, _ = ExecuteFunc(cb, context.Background(), func(_ context.Context) (int, error) { return 0, errors.New("fail") })

	calls := 0
	_, err := ExecuteFunc(cb, context.Background(), func(_ context.Context) (int, error) {
		calls++
		return 1, nil
	})
	require.ErrorIs(t, err, ErrCircuitOpen)
	require.Zero(t, calls)
}
