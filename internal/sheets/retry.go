package sheets

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
)

// BackoffPolicy bounds retries for transient backend failures.
type BackoffPolicy struct {
	MaxAttempts int
	Base        time.Duration
}

// DefaultBackoff matches the backend's documented rate-limit window:
// up to 5 attempts, sleeping 2^attempt seconds between them.
func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{MaxAttempts: 5, Base: time.Second}
}

// Retry runs op, retrying only while isTransient reports the error as
// retryable. Non-transient errors surface immediately; the transient
// error itself surfaces after the final attempt.
func Retry(ctx context.Context, policy BackoffPolicy, isTransient func(error) bool, op func() error) error {
	var err error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			wait := policy.Base << uint(attempt-1)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err = op()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
	}
	return err
}

// IsRateLimit reports whether the error is the backend's rate-limit
// signal (HTTP 429).
func IsRateLimit(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429
	}
	return strings.Contains(err.Error(), "429")
}
