// Package retry re-runs transient failing operations with jittered exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/slok/devdroid/internal/safemath"
	"github.com/slok/devdroid/internal/utils/env"
)

// Predicate decides if an error should be retried.
type Predicate func(error) bool

// Config controls the retry behavior.
type Config struct {
	// MaxAttempts is the total number of tries, 0 or 1 means no retries.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// ShouldRetry defaults to IsTransient.
	ShouldRetry Predicate
	// OnRetry is called before waiting for the next attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

const (
	maxAttemptsLimit = 6
	maxDelayLimit    = 60 * time.Second
)

// NoRetry runs the operation once.
var NoRetry = Config{MaxAttempts: 1}

// ConfigFromEnv builds the command retry configuration from the DEVDROID_CMD_RETRIES and
// DEVDROID_CMD_RETRY_DELAY_MS knobs. Invalid values fall back to no retries.
func ConfigFromEnv() Config {
	// Clamp falls back to its min, no retries.
	retries := safemath.Clamp(strings.TrimSpace(os.Getenv(env.CmdRetries)), 0, maxAttemptsLimit-1)
	delayMS := env.Int(env.CmdRetryDelayMS, 1000, 0, int(maxDelayLimit/time.Millisecond))

	return Config{
		MaxAttempts: retries + 1,
		BaseDelay:   time.Duration(delayMS) * time.Millisecond,
		MaxDelay:    maxDelayLimit,
	}
}

// Do executes fn until it succeeds, the error is not retryable, attempts are exhausted
// or the context is done.
func Do(ctx context.Context, config Config, fn func(ctx context.Context, attempt int) error) error {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.MaxAttempts > maxAttemptsLimit {
		config.MaxAttempts = maxAttemptsLimit
	}
	shouldRetry := config.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var err error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if attempt == config.MaxAttempts || !shouldRetry(err) {
			return err
		}

		delay := backoffDelay(config.BaseDelay, config.MaxDelay, attempt)
		if config.OnRetry != nil {
			config.OnRetry(attempt, err, delay)
		}
		if delay <= 0 {
			continue
		}
		if !sleep(ctx, delay) {
			return ctx.Err()
		}
	}

	return err
}

// IsTransient returns true for errors that are likely to go away by trying again: network
// timeouts and commands that exited with a nonzero status (mirrors and package locks are flaky).
// Cancellation and commands that could not be started are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode() > 0
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}

	delay := base << (attempt - 1)
	if delay <= 0 || (max > 0 && delay > max) {
		delay = max
	}

	// Half fixed, half jitter so retries never collapse to zero wait.
	half := int64(delay) / 2
	if half <= 0 {
		return delay
	}
	return time.Duration(half + rand.Int64N(half+1))
}

func sleep(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
