package llm_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"clinsight/internal/domain"
	"clinsight/internal/llm"
	"clinsight/internal/port"
)

type slowResearcher struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (s *slowResearcher) Research(ctx context.Context, _ string) (*domain.ResearchReport, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-time.After(20 * time.Millisecond):
		return &domain.ResearchReport{Report: "ok"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestGate_BoundsConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t)

	inner := &slowResearcher{}
	r := llm.NewGate(2).Researcher(inner)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Research(context.Background(), "case")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, inner.peak.Load(), int32(2))
	assert.GreaterOrEqual(t, inner.peak.Load(), int32(1))
}

type blockingReasoner struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingReasoner) Reason(ctx context.Context, _ port.ReasoningInput) (*domain.StructuredAnalysis, error) {
	close(b.started)
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return &domain.StructuredAnalysis{}, nil
}

func TestGate_WaitingCountsAgainstDeadline(t *testing.T) {
	defer goleak.VerifyNone(t)

	holder := &blockingReasoner{started: make(chan struct{}), release: make(chan struct{})}
	gate := llm.NewGate(1)
	held := gate.Reasoner(holder)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = held.Reason(context.Background(), port.ReasoningInput{})
	}()
	<-holder.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := gate.Reasoner(holder).Reason(ctx, port.ReasoningInput{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(holder.release)
	<-done
}
