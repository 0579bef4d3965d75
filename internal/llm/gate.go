package llm

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"clinsight/internal/domain"
	"clinsight/internal/port"
)

// Gate bounds how many research and reasoning calls run at once across the
// whole process. Waiting for a slot counts against the caller's deadline.
type Gate struct {
	sem *semaphore.Weighted
}

// NewGate creates a Gate admitting up to limit concurrent calls. A
// non-positive limit falls back to 1.
func NewGate(limit int64) *Gate {
	if limit <= 0 {
		limit = 1
	}
	return &Gate{sem: semaphore.NewWeighted(limit)}
}

func (g *Gate) do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for model capacity: %w", err)
	}
	defer g.sem.Release(1)
	return fn(ctx)
}

// Reasoner wraps r so every call passes through the gate.
func (g *Gate) Reasoner(r port.Reasoner) port.Reasoner {
	return &gatedReasoner{gate: g, next: r}
}

// Researcher wraps r so every call passes through the gate.
func (g *Gate) Researcher(r port.Researcher) port.Researcher {
	return &gatedResearcher{gate: g, next: r}
}

type gatedReasoner struct {
	gate *Gate
	next port.Reasoner
}

func (g *gatedReasoner) Reason(ctx context.Context, input port.ReasoningInput) (*domain.StructuredAnalysis, error) {
	var out *domain.StructuredAnalysis
	err := g.gate.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.next.Reason(ctx, input)
		return err
	})
	return out, err
}

type gatedResearcher struct {
	gate *Gate
	next port.Researcher
}

func (g *gatedResearcher) Research(ctx context.Context, caseText string) (*domain.ResearchReport, error) {
	var out *domain.ResearchReport
	err := g.gate.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.next.Research(ctx, caseText)
		return err
	})
	return out, err
}
