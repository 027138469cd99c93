package storage

import (
	"context"
	"errors"
	"time"

	"fintrack/internal/core"
)

// MaxMutateAttempts bounds the retry-on-conflict loop of the SQL stores.
const MaxMutateAttempts = 3

// RetryOnConflict runs fn until it succeeds, fails with an error other than
// core.ErrConflict, or MaxMutateAttempts is reached. Between attempts it waits
// with a linear backoff that stops early when ctx is done.
func RetryOnConflict(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= MaxMutateAttempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, core.ErrConflict) {
			return err
		}
		if attempt == MaxMutateAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
		}
	}
	return err
}
