package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/loykin/apiverify/internal/common"
)

// Config controls retries of history store operations.
type Config struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// Retryable holds lower-case error fragments that trigger another attempt.
	Retryable []string
}

func DefaultConfig() *Config {
	return &Config{
		MaxRetries:    3,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		Retryable: []string{
			"database is locked",
			"sqlite_busy",
			"connection refused",
			"connection reset",
			"broken pipe",
			"deadlock",
		},
	}
}

func (c *Config) retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, frag := range c.Retryable {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}

// delay is InitialDelay * BackoffFactor^attempt, capped at MaxDelay.
func (c *Config) delay(attempt int) time.Duration {
	d := time.Duration(float64(c.InitialDelay) * math.Pow(c.BackoffFactor, float64(attempt)))
	if c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// attempts are exhausted. A nil cfg uses DefaultConfig.
func Do[T any](ctx context.Context, cfg *Config, op func() (T, error)) (T, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger := common.GetLogger().WithComponent("store-retry")

	var zero T
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		v, err := op()
		if err == nil {
			if attempt > 0 {
				logger.Debug("store operation succeeded after retry", "attempt", attempt+1)
			}
			return v, nil
		}
		lastErr = err
		if !cfg.retryable(err) {
			return zero, err
		}
		if attempt == cfg.MaxRetries {
			break
		}
		d := cfg.delay(attempt)
		logger.Warn("store operation failed, retrying", "error", err, "attempt", attempt+1, "retry_delay", d)
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(d):
		}
	}
	return zero, fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxRetries+1, lastErr)
}
