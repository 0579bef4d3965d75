package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"clinsight/internal/port"
)

// circuitState tracks rate-limit backoff for a single provider.
type circuitState struct {
	mu      sync.RWMutex
	resetAt time.Time // zero value = closed (healthy)
}

func (c *circuitState) isOpenWithReset(now time.Time) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resetAt, !c.resetAt.IsZero() && now.Before(c.resetAt)
}

func (c *circuitState) open(resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetAt = resetAt
}

// FallbackDescriber tries vision providers in order, skipping those whose
// circuit is open after a rate limit.
type FallbackDescriber struct {
	describers []port.VisionDescriber
	circuits   []*circuitState
	names      []string
	now        func() time.Time
}

// NewFallbackDescriber creates a FallbackDescriber from an ordered list of
// describers and their names.
func NewFallbackDescriber(describers []port.VisionDescriber, names []string) *FallbackDescriber {
	circuits := make([]*circuitState, len(describers))
	for i := range circuits {
		circuits[i] = &circuitState{}
	}
	return &FallbackDescriber{
		describers: describers,
		circuits:   circuits,
		names:      names,
		now:        time.Now,
	}
}

func (f *FallbackDescriber) Describe(ctx context.Context, input port.VisionInput) (string, error) {
	now := f.now()
	var lastErr error
	allRateLimited := true
	var earliestReset time.Time

	for i, d := range f.describers {
		if resetAt, open := f.circuits[i].isOpenWithReset(now); open {
			log.Debug().Str("provider", f.names[i]).Time("reset_at", resetAt).
				Msg("llm.FallbackDescriber: skipping provider, circuit open")
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
			continue
		}

		out, err := d.Describe(ctx, input)
		if err == nil {
			return out, nil
		}

		log.Warn().Err(err).Str("provider", f.names[i]).Msg("llm.FallbackDescriber: provider failed")
		lastErr = err
		if ctx.Err() != nil {
			return "", fmt.Errorf("vision canceled: %w", err)
		}

		var rlErr *RateLimitError
		if errors.As(err, &rlErr) {
			resetAt := now.Add(rlErr.RetryAfter)
			f.circuits[i].open(resetAt)
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
		} else {
			allRateLimited = false
		}
	}

	if lastErr == nil || allRateLimited {
		retryAfter := earliestReset.Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return "", NewRateLimitError("all", errors.New("all vision providers rate limited"), int(retryAfter.Seconds()))
	}

	return "", fmt.Errorf("all vision providers failed: %w", lastErr)
}
