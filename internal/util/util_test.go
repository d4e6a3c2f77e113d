package util

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry(t *testing.T) {
	attempts := 0
	targetAttempts := 3

	err := Retry(context.Background(), 5, 0, func() error {
		attempts++
		if attempts < targetAttempts {
			return errors.New("transient error")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, targetAttempts, attempts)
}

func TestRetryAllFail(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	err := Retry(context.Background(), maxAttempts, time.Millisecond, func() error {
		attempts++
		return errors.New("persistent error")
	})

	assert.EqualError(t, err, "persistent error")
	assert.Equal(t, maxAttempts, attempts)
}

func TestRetryPermanent(t *testing.T) {
	sentinel := errors.New("bad request")
	attempts := 0

	err := Retry(context.Background(), 5, 0, func() error {
		attempts++
		return Permanent(sentinel)
	})

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, attempts)
	assert.NoError(t, Permanent(nil))
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, 3, time.Hour, func() error { return errors.New("fail") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRateLimiterBurst(t *testing.T) {
	rl := NewBurstLimiter(60, 3)
	for i := 0; i < 3; i++ {
		require.True(t, rl.Allow(), "Allow() #%d within burst", i)
	}
	assert.False(t, rl.Allow(), "Allow() past burst")

	// The next token is a second away, past the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.Wait(ctx))
}

func TestRateLimiterWait(t *testing.T) {
	rl := NewRateLimiter(6000) // one token every 10ms
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Wait(ctx))
	}
	assert.Less(t, time.Since(start), time.Second)

	unlimited := NewBurstLimiter(0, 1)
	for i := 0; i < 100; i++ {
		require.True(t, unlimited.Allow())
	}
}

func TestYearSpans(t *testing.T) {
	start := time.Date(2015, 6, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2017, 2, 1, 0, 0, 0, 0, time.UTC)

	spans := YearSpans(start, end)
	require.Len(t, spans, 3)
	assert.True(t, spans[0].Start.Equal(start), "first span starts %v", spans[0].Start)
	assert.Equal(t, 2016, spans[1].Start.Year())
	assert.Equal(t, time.December, spans[1].End.Month())
	assert.True(t, spans[2].End.Equal(end), "last span ends %v", spans[2].End)
	assert.Nil(t, YearSpans(end, start), "inverted range")
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2016-02-29")
	require.NoError(t, err)
	assert.Equal(t, 29, d.Day())

	d, err = ParseDate("")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = ParseDate("02/29/2016")
	assert.Error(t, err, "non-ISO date")
}

func TestNewLoggerTo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "warn", "text")
	logger.Info("hidden")
	logger.Warn("shown", "symbol", "MMM")

	out := buf.String()
	assert.NotContains(t, out, "hidden", "info record logged at warn level")
	assert.Contains(t, out, "symbol=MMM")

	buf.Reset()
	NewLoggerTo(&buf, "debug", "json").Debug("hello")
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("{")), "json handler output = %q", buf.String())

	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
