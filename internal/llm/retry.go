package llm

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"clinsight/internal/domain"
)

// Retry runs fn up to 1+maxRetries times with linear backoff. Rate limits,
// contract violations and context errors are returned immediately since
// repeating the call cannot help within this deadline.
func Retry(ctx context.Context, op string, maxRetries int, backoff time.Duration, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(err, ctx.Err())
			case <-time.After(time.Duration(attempt) * backoff):
			}
			log.Debug().Str("op", op).Int("attempt", attempt+1).Msg("llm.Retry: retrying")
		}
		err = fn(ctx)
		if err == nil || !retryable(ctx, err) {
			return err
		}
	}
	return err
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return false
	}
	if errors.Is(err, domain.ErrContractViolation) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
